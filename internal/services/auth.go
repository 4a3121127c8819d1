// Package services contains the authentication business logic. AuthService
// is the only entry point other layers call: it combines the credential
// store, the failed-login limiter and the session registry to implement
// register, login, logout and password changes.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/urbanquest/internal/clock"
	"github.com/dmitrijs2005/urbanquest/internal/common"
	"github.com/dmitrijs2005/urbanquest/internal/cryptox"
	"github.com/dmitrijs2005/urbanquest/internal/logging"
	"github.com/dmitrijs2005/urbanquest/internal/models"
)

// DefaultMinPasswordLength is the shortest password Register and
// ChangePassword accept, counted in characters.
const DefaultMinPasswordLength = 6

// UserStore is the part of store.Store the service needs.
type UserStore interface {
	Read(ctx context.Context) models.Collection
	Update(ctx context.Context, fn func(c *models.Collection) error) error
	CacheValid() bool
}

// AttemptLimiter is the part of ratelimit.Limiter the service needs.
type AttemptLimiter interface {
	Check(principal string) (allowed bool, reason string)
	RecordFailure(principal string)
	Clear(principal string)
	Tracked() int
}

// SessionTable is the part of sessions.Registry the service needs.
type SessionTable interface {
	Create(s models.Session) (evicted string, ok bool)
	Remove(username string) bool
	Touch(username string) bool
	Contains(username string) bool
	Get(username string) (models.Session, bool)
	Count() int
	Max() int
	List() []models.Session
}

// Statistics is a point-in-time summary of the service state.
type Statistics struct {
	TotalUsers        int
	ActiveSessions    int
	MaxSessions       int
	CacheValid        bool
	TrackedPrincipals int
}

// AuthService orchestrates registration, login and session handling.
// All methods are safe for concurrent use.
type AuthService struct {
	store    UserStore
	limiter  AttemptLimiter
	sessions SessionTable
	hasher   cryptox.Hasher
	log      logging.Logger
	clock    clock.Clock
	minLen   int

	dummyOnce   sync.Once
	dummyDigest string
}

type Option func(*AuthService)

func WithLogger(l logging.Logger) Option {
	return func(s *AuthService) { s.log = l }
}

func WithClock(c clock.Clock) Option {
	return func(s *AuthService) { s.clock = c }
}

// WithMinPasswordLength overrides DefaultMinPasswordLength. Values
// below 1 are ignored.
func WithMinPasswordLength(n int) Option {
	return func(s *AuthService) {
		if n > 0 {
			s.minLen = n
		}
	}
}

// NewAuthService wires the service. hasher produces digests for new
// and upgraded passwords; existing digests of any known scheme verify.
func NewAuthService(store UserStore, limiter AttemptLimiter, sessions SessionTable, hasher cryptox.Hasher, opts ...Option) *AuthService {
	s := &AuthService{
		store:    store,
		limiter:  limiter,
		sessions: sessions,
		hasher:   hasher,
		log:      logging.Discard(),
		clock:    clock.Real(),
		minLen:   DefaultMinPasswordLength,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "auth")
	return s
}

// Register creates an active account. Email is optional.
func (s *AuthService) Register(ctx context.Context, name, username, password, email string) (models.UserView, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if name == "" || username == "" || password == "" {
		return models.UserView{}, common.Fail(common.ErrValidation, "all fields are required")
	}
	if err := s.validatePassword(password); err != nil {
		return models.UserView{}, err
	}
	if err := validateEmail(email); err != nil {
		return models.UserView{}, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Error(ctx, "hash password", "error", err)
		return models.UserView{}, common.Wrap(common.ErrPersistence, "could not save user data", err)
	}

	user := models.User{
		UserName:  username,
		Name:      name,
		Email:     email,
		Password:  digest,
		CreatedAt: models.NewTimestamp(s.clock.Now()),
		Status:    models.StatusActive,
	}

	err = s.store.Update(ctx, func(c *models.Collection) error {
		if _, exists := c.ByUserName(username); exists {
			return common.Fail(common.ErrDuplicateUser, "account already exists")
		}
		if _, exists := c.ByEmail(email); exists {
			return common.Fail(common.ErrDuplicateUser, "email already in use")
		}
		c.Users = append(c.Users, user)
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUser) {
			s.log.Info(ctx, "registration rejected", "username", username, "reason", common.Message(err))
		}
		return models.UserView{}, err
	}

	s.log.Info(ctx, "user registered", "username", username)
	return user.View(), nil
}

// Login authenticates principal (username, email or email local part)
// and opens a session keyed by the account's username.
func (s *AuthService) Login(ctx context.Context, principal, password string) (models.UserView, error) {
	principal = strings.TrimSpace(principal)
	password = strings.TrimSpace(password)

	if principal == "" {
		return models.UserView{}, common.Fail(common.ErrValidation, "all fields are required")
	}

	if allowed, reason := s.limiter.Check(principal); !allowed {
		s.log.Warn(ctx, "login throttled", "principal", principal)
		return models.UserView{}, common.Fail(common.ErrRateLimited, reason)
	}

	snapshot := s.store.Read(ctx)
	user, ok := snapshot.ByPrincipal(principal)
	if !ok {
		// burn comparable time so a miss is not distinguishable by latency
		cryptox.Verify(s.dummy(), password)
		s.limiter.RecordFailure(principal)
		s.log.Info(ctx, "login failed, account not found", "principal", principal)
		return models.UserView{}, common.Fail(common.ErrAuthentication, "account not found")
	}

	if !cryptox.Verify(user.Password, password) {
		s.limiter.RecordFailure(principal)
		s.log.Info(ctx, "login failed, incorrect password", "username", user.UserName)
		return models.UserView{}, common.Fail(common.ErrAuthentication, "incorrect password")
	}

	if !user.IsActive() {
		s.log.Info(ctx, "login refused, account locked", "username", user.UserName)
		return models.UserView{}, common.Fail(common.ErrAuthentication, "account locked")
	}

	s.limiter.Clear(principal)

	verified := user.Password
	var upgraded string
	if cryptox.NeedsRehash(verified, s.hasher.Scheme()) {
		if d, err := s.hasher.Hash(password); err == nil {
			upgraded = d
		} else {
			s.log.Warn(ctx, "digest upgrade skipped", "username", user.UserName, "error", err)
		}
	}

	now := s.clock.Now()
	var stored models.User
	err := s.store.Update(ctx, func(c *models.Collection) error {
		u, ok := c.ByUserName(user.UserName)
		if !ok {
			return common.Fail(common.ErrAuthentication, "account not found")
		}
		ts := models.NewTimestamp(now)
		u.LastLogin = &ts
		// only replace the digest that was actually verified
		if upgraded != "" && u.Password == verified {
			u.Password = upgraded
		}
		stored = *u
		return nil
	})
	if err != nil {
		return models.UserView{}, err
	}
	if upgraded != "" && stored.Password == upgraded {
		s.log.Info(ctx, "password digest upgraded", "username", stored.UserName, "scheme", s.hasher.Scheme())
	}

	session := models.Session{
		ID:           uuid.NewString(),
		UserName:     stored.UserName,
		Name:         stored.Name,
		Email:        stored.Email,
		LoginTime:    now,
		LastActivity: now,
	}
	if evicted, ok := s.sessions.Create(session); ok {
		s.log.Warn(ctx, "session table full, evicted session", "evicted", evicted)
	}

	s.log.Info(ctx, "user logged in", "username", stored.UserName, "sessions", s.sessions.Count())
	return stored.View(), nil
}

// Logout ends the session for username and reports whether one existed.
func (s *AuthService) Logout(ctx context.Context, username string) bool {
	if !s.sessions.Remove(username) {
		return false
	}
	s.log.Info(ctx, "user logged out", "username", username)
	return true
}

// ChangePassword replaces the digest after checking oldPassword.
func (s *AuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.log.Error(ctx, "hash password", "error", err)
		return common.Wrap(common.ErrPersistence, "could not save user data", err)
	}

	err = s.store.Update(ctx, func(c *models.Collection) error {
		u, ok := c.ByUserName(username)
		if !ok {
			return common.Fail(common.ErrAuthentication, "account not found")
		}
		if !cryptox.Verify(u.Password, oldPassword) {
			return common.Fail(common.ErrAuthentication, "incorrect password")
		}
		u.Password = digest
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "password changed", "username", username)
	return nil
}

// GetUserInfo returns the account without its digest.
func (s *AuthService) GetUserInfo(ctx context.Context, username string) (models.UserView, error) {
	c := s.store.Read(ctx)
	u, ok := c.ByUserName(username)
	if !ok {
		return models.UserView{}, common.Fail(common.ErrorNotFound, "account not found")
	}
	return u.View(), nil
}

// SetStatus locks or unlocks an account. Locking also ends the user's
// session.
func (s *AuthService) SetStatus(ctx context.Context, username string, status models.Status) (models.UserView, error) {
	if !status.Valid() {
		return models.UserView{}, common.Failf(common.ErrValidation, "unknown status %q", status)
	}

	var updated models.User
	err := s.store.Update(ctx, func(c *models.Collection) error {
		u, ok := c.ByUserName(username)
		if !ok {
			return common.Fail(common.ErrorNotFound, "account not found")
		}
		u.Status = status
		updated = *u
		return nil
	})
	if err != nil {
		return models.UserView{}, err
	}

	if status == models.StatusLocked && s.sessions.Remove(username) {
		s.log.Info(ctx, "session closed for locked account", "username", username)
	}
	s.log.Info(ctx, "account status changed", "username", username, "status", string(status))
	return updated.View(), nil
}

// Touch records activity on the user's session.
func (s *AuthService) Touch(_ context.Context, username string) bool {
	return s.sessions.Touch(username)
}

func (s *AuthService) IsOnline(username string) bool {
	return s.sessions.Contains(username)
}

// Session returns the live session for username.
func (s *AuthService) Session(username string) (models.Session, bool) {
	return s.sessions.Get(username)
}

// ActiveSessions lists live sessions ordered by login time.
func (s *AuthService) ActiveSessions() []models.Session {
	return s.sessions.List()
}

func (s *AuthService) Statistics(ctx context.Context) Statistics {
	return Statistics{
		TotalUsers:        s.store.Read(ctx).Len(),
		ActiveSessions:    s.sessions.Count(),
		MaxSessions:       s.sessions.Max(),
		CacheValid:        s.store.CacheValid(),
		TrackedPrincipals: s.limiter.Tracked(),
	}
}

// validatePassword enforces the length policy. Passwords with leading
// or trailing whitespace are refused because Login trims its input.
func (s *AuthService) validatePassword(password string) error {
	if utf8.RuneCountInString(password) < s.minLen {
		return common.Failf(common.ErrValidation, "password must be at least %d characters", s.minLen)
	}
	if strings.TrimSpace(password) != password {
		return common.Fail(common.ErrValidation, "password must not start or end with whitespace")
	}
	return nil
}

// validateEmail accepts an empty email or a bare address.
func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return common.Fail(common.ErrValidation, "invalid email address")
	}
	return nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		seed, err := common.MakeRandHexString(16)
		if err != nil {
			return
		}
		if d, err := s.hasher.Hash(seed); err == nil {
			s.dummyDigest = d
		}
	})
	return s.dummyDigest
}
