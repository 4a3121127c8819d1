package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/urbanquest/internal/dbx"
	"github.com/dmitrijs2005/urbanquest/internal/models"
)

func sampleCollection() models.Collection {
	created := models.NewTimestamp(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	last := models.NewTimestamp(time.Date(2024, 3, 2, 11, 30, 0, 500, time.UTC))
	return models.Collection{Users: []models.User{
		{
			UserName:  "ana",
			Name:      "Ana",
			Email:     "ana@example.com",
			Password:  "digest-a",
			CreatedAt: created,
			LastLogin: &last,
			Status:    models.StatusActive,
		},
		{
			UserName:  "bob",
			Name:      "Bob Ñandú <b>",
			Password:  "digest-b",
			CreatedAt: created,
			Status:    models.StatusLocked,
		},
	}}
}

func TestFileBackend_MissingFile(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "Users.json"))
	_, err := b.Load(context.Background())
	require.ErrorIs(t, err, ErrMissing)
}

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Users.json")
	b := NewFileBackend(path)
	want := sampleCollection()

	require.NoError(t, b.Save(context.Background(), want))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n    \"users\": ["), "4-space indented document, got %q", raw[:20])
	assert.Contains(t, string(raw), "Bob Ñandú <b>")

	got, err := b.Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFileBackend_EmptyCollectionWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Users.json")
	b := NewFileBackend(path)
	require.NoError(t, b.Save(context.Background(), models.Collection{}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"users": []`)
}

func TestFileBackend_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "{not json"},
		{"empty", ""},
		{"whitespace", "  \n"},
		{"wrong shape", `{"users": 42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Users.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := NewFileBackend(path).Load(context.Background())
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestFileBackend_LegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Users.json")
	doc := `{"users": [{"username": "old", "name": "Old", "email": "old@x.io",
		"password": "5b11618c2e44027877d0cd0921ed166b9f176f50587fc91e7534dd2946db77d6",
		"created_at": "2023-05-01T12:00:00.123456", "last_login": null, "status": "active"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := NewFileBackend(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Users, 1)
	u := c.Users[0]
	assert.Equal(t, "old", u.UserName)
	assert.Equal(t, 2023, u.CreatedAt.Year())
	assert.Equal(t, 123456000, u.CreatedAt.Nanosecond())
	assert.Nil(t, u.LastLogin)
}

func TestFileBackend_UnrecognisedTimestampsSurviveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Users.json")
	doc := `{"users": [
		{"username": "a", "name": "A", "email": "", "password": "d", "created_at": "2025-01-15T10:20:30+0700", "last_login": null, "status": "active"},
		{"username": "b", "name": "B", "email": "", "password": "d", "created_at": "sometime", "last_login": 1736936430, "status": "active"}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	b := NewFileBackend(path)

	c, err := b.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Users, 2)
	assert.True(t, c.Users[0].CreatedAt.Equal(time.Date(2025, 1, 15, 3, 20, 30, 0, time.UTC)))
	assert.True(t, c.Users[1].CreatedAt.Unparsed())

	require.NoError(t, b.Save(context.Background(), c))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"created_at": "sometime"`)
	assert.Contains(t, string(raw), `"last_login": "1736936430"`)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
	puts    int
	ctype   string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.ctype = aws.ToString(in.ContentType)
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func TestS3Backend_MissingObject(t *testing.T) {
	b := newS3Backend(newFakeS3(), "bucket", "users.json")
	_, err := b.Load(context.Background())
	require.ErrorIs(t, err, ErrMissing)
}

func TestS3Backend_RoundTrip(t *testing.T) {
	api := newFakeS3()
	b := newS3Backend(api, "bucket", "users.json")
	want := sampleCollection()

	require.NoError(t, b.Save(context.Background(), want))
	assert.Equal(t, 1, api.puts)
	assert.Equal(t, "application/json", api.ctype)

	got, err := b.Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestS3Backend_Errors(t *testing.T) {
	api := newFakeS3()
	api.getErr = errors.New("connection reset")
	api.putErr = errors.New("access denied")
	b := newS3Backend(api, "bucket", "users.json")

	_, err := b.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "connection reset")

	err = b.Save(context.Background(), sampleCollection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3Backend_CorruptObject(t *testing.T) {
	api := newFakeS3()
	api.objects["bucket/users.json"] = []byte("<html>")
	_, err := newS3Backend(api, "bucket", "users.json").Load(context.Background())
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestNewS3Backend_RequiresBucketAndKey(t *testing.T) {
	_, err := NewS3Backend(context.Background(), S3Options{Region: "us-east-1", Bucket: "b"})
	require.Error(t, err)
}

func TestNewS3Backend_UsesLoadedConfig(t *testing.T) {
	old := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = old })

	var called bool
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		called = true
		return aws.Config{Region: "eu-west-1"}, nil
	}

	b, err := NewS3Backend(context.Background(), S3Options{
		Region:       "eu-west-1",
		AccessKey:    "key",
		SecretKey:    "secret",
		Bucket:       "bucket",
		Key:          "users.json",
		BaseEndpoint: "http://localhost:9000",
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "s3", b.Name())
}

func openTestSQL(t *testing.T) *SQLBackend {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := OpenSQL(context.Background(), dbx.DialectSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLBackend(db, dbx.DialectSQLite)
}

func TestSQLBackend_EmptyTable(t *testing.T) {
	b := openTestSQL(t)
	c, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, c.Len())
	assert.Equal(t, "sqlite", b.Name())
}

func TestSQLBackend_RoundTripPreservesOrder(t *testing.T) {
	b := openTestSQL(t)
	want := sampleCollection()
	// zeta sorts last by name but was appended first
	want.Users = append([]models.User{{
		UserName:  "zeta",
		Name:      "Zeta",
		Password:  "digest-z",
		CreatedAt: want.Users[0].CreatedAt,
		Status:    models.StatusActive,
	}}, want.Users...)

	require.NoError(t, b.Save(context.Background(), want))
	got, err := b.Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLBackend_SaveReplacesRows(t *testing.T) {
	b := openTestSQL(t)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, sampleCollection()))
	smaller := sampleCollection()
	smaller.Users = smaller.Users[:1]
	require.NoError(t, b.Save(ctx, smaller))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Users, 1)
	assert.Equal(t, "ana", got.Users[0].UserName)
}

func TestSQLBackend_DuplicateRollsBack(t *testing.T) {
	b := openTestSQL(t)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, sampleCollection()))

	dup := sampleCollection()
	dup.Users = append(dup.Users, dup.Users[0])
	require.Error(t, b.Save(ctx, dup))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Users, 2, "failed save must leave previous rows intact")
}

func TestSQLBackend_UnrecognisedTimestampIsKept(t *testing.T) {
	b := openTestSQL(t)
	ctx := context.Background()
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO users (username, position, name, email, password, created_at, last_login, status)
		 VALUES ('odd', 0, 'Odd', '', 'd', 'sometime', 'yesterday', 'active')`)
	require.NoError(t, err)

	c, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, c.Users, 1)
	assert.Equal(t, "sometime", c.Users[0].CreatedAt.String())
	require.NotNil(t, c.Users[0].LastLogin)
	assert.Equal(t, "yesterday", c.Users[0].LastLogin.String())
}

func TestOpenSQL_UnknownDialect(t *testing.T) {
	_, err := OpenSQL(context.Background(), dbx.Dialect("oracle"), "")
	require.Error(t, err)
}
