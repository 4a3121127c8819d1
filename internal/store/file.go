package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/urbanquest/internal/filex"
	"github.com/dmitrijs2005/urbanquest/internal/models"
)

// FileBackend keeps the collection in a single JSON file.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Name() string { return "file" }

// Path returns the users file location.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Load(_ context.Context) (models.Collection, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Collection{}, fmt.Errorf("%w: %s", ErrMissing, b.path)
		}
		return models.Collection{}, fmt.Errorf("read %s: %w", b.path, err)
	}
	return decodeCollection(data)
}

func (b *FileBackend) Save(_ context.Context, c models.Collection) error {
	data, err := encodeCollection(c)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return filex.WriteFileAtomic(b.path, data, 0o600)
}
