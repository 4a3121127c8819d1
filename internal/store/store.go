// Package store is the durable user repository. A Store wraps a
// Backend (JSON file, S3 object or SQL table) with a read cache whose
// staleness is bounded by a TTL.
package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/urbanquest/internal/clock"
	"github.com/dmitrijs2005/urbanquest/internal/common"
	"github.com/dmitrijs2005/urbanquest/internal/logging"
	"github.com/dmitrijs2005/urbanquest/internal/models"
)

// DefaultCacheTTL bounds how stale a cached read may be.
const DefaultCacheTTL = 300 * time.Second

// Store serializes backend access on storeMu and guards the snapshot
// with cacheMu. The two are never held at the same time, so a cached
// read does not wait for a slow save.
type Store struct {
	backend Backend
	log     logging.Logger
	clock   clock.Clock
	ttl     time.Duration

	storeMu sync.Mutex

	cacheMu    sync.RWMutex
	snapshot   *models.Collection
	takenAt    time.Time
	generation uint64

	loads singleflight.Group
}

type Option func(*Store)

// WithTTL sets the cache lifetime. Zero or negative disables caching.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		log:     logging.Discard(),
		clock:   clock.Real(),
		ttl:     DefaultCacheTTL,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "store", "backend", backend.Name())
	return s
}

// Load reads the collection straight from the backend. A missing or
// corrupt document yields an empty collection; the condition is only
// reported through the logger.
func (s *Store) Load(ctx context.Context) models.Collection {
	c, _ := s.load(ctx)
	return c
}

// load reports whether the result reflects the backend. Transient
// failures (network, cancelled context) must not be cached.
func (s *Store) load(ctx context.Context) (models.Collection, bool) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	c, err := s.backend.Load(ctx)
	if err != nil {
		s.reportLoadError(ctx, err)
		return models.Collection{}, errors.Is(err, ErrMissing) || errors.Is(err, ErrCorrupt)
	}
	return c, true
}

func (s *Store) reportLoadError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ErrMissing):
		s.log.Warn(ctx, "user store not found, starting empty", "error", err)
	case errors.Is(err, ErrCorrupt):
		s.log.Error(ctx, "user store is corrupt, treating as empty", "error", err)
	default:
		s.log.Error(ctx, "user store read failed, treating as empty", "error", err)
	}
}

// Save persists c as a whole and invalidates the cache.
func (s *Store) Save(ctx context.Context, c models.Collection) error {
	s.storeMu.Lock()
	err := s.saveLocked(ctx, c)
	s.storeMu.Unlock()

	s.Invalidate()
	return err
}

func (s *Store) saveLocked(ctx context.Context, c models.Collection) error {
	if err := s.backend.Save(ctx, c); err != nil {
		s.log.Error(ctx, "user store write failed", "error", err)
		return common.Wrap(common.ErrPersistence, "could not save user data", err)
	}
	s.log.Debug(ctx, "user store saved", "users", c.Len())
	return nil
}

// Update runs a read-modify-write cycle under the store lock. fn sees
// a fresh backend read, never the cache; an error from fn aborts the
// cycle without writing. The cache is invalidated before Update
// returns whenever a write was attempted.
func (s *Store) Update(ctx context.Context, fn func(c *models.Collection) error) error {
	s.storeMu.Lock()

	c, err := s.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrMissing) && !errors.Is(err, ErrCorrupt) {
			s.storeMu.Unlock()
			s.log.Error(ctx, "user store read failed, update aborted", "error", err)
			return common.Wrap(common.ErrPersistence, "could not save user data", err)
		}
		s.reportLoadError(ctx, err)
		c = models.Collection{}
	}

	if err := fn(&c); err != nil {
		s.storeMu.Unlock()
		return err
	}

	err = s.saveLocked(ctx, c)
	s.storeMu.Unlock()

	s.Invalidate()
	return err
}

// Read returns a copy of the cached collection while it is younger
// than the TTL and cold-loads otherwise. Concurrent cold loads share a
// single backend read.
func (s *Store) Read(ctx context.Context) models.Collection {
	s.cacheMu.RLock()
	if s.freshLocked() {
		c := s.snapshot.Clone()
		s.cacheMu.RUnlock()
		return c
	}
	gen := s.generation
	s.cacheMu.RUnlock()

	v, _, shared := s.loads.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		c, ok := s.load(ctx)

		s.cacheMu.Lock()
		// an invalidation during the load means c may predate a write
		if ok && s.generation == gen {
			snap := c.Clone()
			s.snapshot = &snap
			s.takenAt = s.clock.Now()
		}
		s.cacheMu.Unlock()
		return c, nil
	})
	if shared {
		s.log.Debug(ctx, "cold load shared")
	}
	return v.(models.Collection).Clone()
}

// Invalidate drops the snapshot so the next Read goes to the backend.
func (s *Store) Invalidate() {
	s.cacheMu.Lock()
	s.snapshot = nil
	s.generation++
	s.cacheMu.Unlock()
}

// CacheValid reports whether a Read right now would be served from
// the cache.
func (s *Store) CacheValid() bool {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.freshLocked()
}

func (s *Store) freshLocked() bool {
	return s.snapshot != nil && s.clock.Now().Sub(s.takenAt) < s.ttl
}
