package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/urbanquest/internal/models"
)

var (
	// ErrMissing reports that the backend holds no user document yet.
	ErrMissing = errors.New("user store missing")
	// ErrCorrupt reports a user document that could not be decoded.
	ErrCorrupt = errors.New("user store corrupt")
)

// Backend reads and writes the whole user collection in one piece.
// Load returns ErrMissing or ErrCorrupt (possibly wrapped) for the two
// recoverable conditions; Save must be atomic from a reader's view.
type Backend interface {
	Name() string
	Load(ctx context.Context) (models.Collection, error)
	Save(ctx context.Context, c models.Collection) error
}

// encodeCollection renders the document the way the original users
// file looks: 4-space indent, non-ASCII and HTML characters verbatim.
func encodeCollection(c models.Collection) ([]byte, error) {
	if c.Users == nil {
		c.Users = []models.User{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCollection(b []byte) (models.Collection, error) {
	var c models.Collection
	if len(bytes.TrimSpace(b)) == 0 {
		return c, fmt.Errorf("%w: empty document", ErrCorrupt)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return models.Collection{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return c, nil
}
