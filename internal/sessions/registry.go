// Package sessions keeps the bounded table of live login sessions.
package sessions

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/urbanquest/internal/clock"
	"github.com/dmitrijs2005/urbanquest/internal/models"
)

const DefaultMaxSessions = 100

// EvictionPolicy picks the victim when the registry is full.
type EvictionPolicy string

const (
	// EvictOldestLogin removes the session with the earliest login time.
	EvictOldestLogin EvictionPolicy = "oldest-login"
	// EvictLeastActive removes the session idle for the longest time.
	EvictLeastActive EvictionPolicy = "least-active"
)

// ParseEvictionPolicy validates a policy name from configuration.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch p := EvictionPolicy(s); p {
	case EvictOldestLogin, EvictLeastActive:
		return p, nil
	case "":
		return EvictOldestLogin, nil
	}
	return "", fmt.Errorf("unknown session eviction policy %q", s)
}

// Registry holds at most one session per username and at most max
// sessions overall.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	max      int
	policy   EvictionPolicy
	clock    clock.Clock
}

type Option func(*Registry)

// WithMaxSessions bounds the table. Values below 1 are ignored.
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		if n >= 1 {
			r.max = n
		}
	}
}

func WithEvictionPolicy(p EvictionPolicy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]models.Session),
		max:      DefaultMaxSessions,
		policy:   EvictOldestLogin,
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create inserts or replaces the session for s.UserName. When the table
// is full and the user has no session yet, one session is evicted
// first; its username is returned with ok set.
func (r *Registry) Create(s models.Session) (evicted string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.UserName]; !exists && len(r.sessions) >= r.max {
		evicted = r.victimLocked()
		delete(r.sessions, evicted)
		ok = true
	}
	r.sessions[s.UserName] = s
	return evicted, ok
}

// Remove deletes the session for username and reports whether one
// existed.
func (r *Registry) Remove(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[username]; !ok {
		return false
	}
	delete(r.sessions, username)
	return true
}

// Touch refreshes the last-activity time of an existing session.
func (r *Registry) Touch(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[username]
	if !ok {
		return false
	}
	s.LastActivity = r.clock.Now()
	r.sessions[username] = s
	return true
}

func (r *Registry) Contains(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[username]
	return ok
}

func (r *Registry) Get(username string) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Max returns the configured capacity.
func (r *Registry) Max() int {
	return r.max
}

// List returns a copy of all sessions ordered by login time.
func (r *Registry) List() []models.Session {
	r.mu.Lock()
	out := make([]models.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LoginTime.Equal(out[j].LoginTime) {
			return out[i].LoginTime.Before(out[j].LoginTime)
		}
		return out[i].UserName < out[j].UserName
	})
	return out
}

func (r *Registry) victimLocked() string {
	var (
		victim string
		oldest time.Time
		first  = true
	)
	for name, s := range r.sessions {
		at := s.LoginTime
		if r.policy == EvictLeastActive {
			at = s.LastActivity
		}
		if first || at.Before(oldest) || (at.Equal(oldest) && name < victim) {
			victim, oldest, first = name, at, false
		}
	}
	return victim
}
