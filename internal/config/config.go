// Package config builds the runtime configuration: defaults first, then
// an optional config file (-c/-config; JSON, TOML or YAML by
// extension), then command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrijs2005/urbanquest/internal/cryptox"
	"github.com/dmitrijs2005/urbanquest/internal/sessions"
)

// Backend names accepted by UsersBackend.
const (
	BackendFile     = "file"
	BackendS3       = "s3"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds runtime settings for the credential manager.
//
// Fields:
//   - UsersBackend: where user records live (file, s3, sqlite, postgres).
//   - UsersFile / WatchUsersFile: JSON document path, and whether edits
//     made by other processes invalidate the cache.
//   - DatabaseDSN: DSN for the sqlite or postgres backend.
//   - S3*: object storage settings for the s3 backend.
//   - CacheTTL: maximum age of a cached read.
//   - MaxLoginAttempts / LoginAttemptWindow: failed-login throttling.
//   - AttemptSweepInterval: periodic pruning of the attempt table, 0 to disable.
//   - MaxConcurrentUsers / SessionEviction: session table bound and victim choice.
//   - MinPasswordLength / DigestScheme: password policy.
//   - LogLevel / LogFormat: slog handler settings.
type Config struct {
	UsersBackend         string
	UsersFile            string
	WatchUsersFile       bool
	DatabaseDSN          string
	S3AccessKey          string
	S3SecretKey          string
	S3Bucket             string
	S3Region             string
	S3BaseEndpoint       string
	S3ObjectKey          string
	CacheTTL             time.Duration
	MaxLoginAttempts     int
	LoginAttemptWindow   time.Duration
	AttemptSweepInterval time.Duration
	MaxConcurrentUsers   int
	SessionEviction      string
	MinPasswordLength    int
	DigestScheme         string
	LogLevel             string
	LogFormat            string
}

// LoadDefaults populates Config with values that work out of the box
// against a Users.json file in the working directory.
func (c *Config) LoadDefaults() {
	c.UsersBackend = BackendFile
	c.UsersFile = "Users.json"
	c.WatchUsersFile = false
	c.DatabaseDSN = "users.db"
	c.S3Bucket = "urbanquest"
	c.S3Region = "us-east-1"
	c.S3ObjectKey = "Users.json"
	c.CacheTTL = 300 * time.Second
	c.MaxLoginAttempts = 5
	c.LoginAttemptWindow = 300 * time.Second
	c.AttemptSweepInterval = 0
	c.MaxConcurrentUsers = 100
	c.SessionEviction = string(sessions.EvictOldestLogin)
	c.MinPasswordLength = 6
	c.DigestScheme = cryptox.SchemeArgon2id
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig builds a Config from args (usually os.Args[1:]) by applying
// defaults, then the config file named by -c/-config, then flags. The
// result is validated.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.UsersBackend {
	case BackendFile:
		if strings.TrimSpace(c.UsersFile) == "" {
			errs = append(errs, errors.New("users_file must be set for the file backend"))
		}
	case BackendS3:
		if c.S3Bucket == "" || c.S3ObjectKey == "" {
			errs = append(errs, errors.New("s3_bucket and s3_object_key must be set for the s3 backend"))
		}
	case BackendSQLite, BackendPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, fmt.Errorf("database_dsn must be set for the %s backend", c.UsersBackend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown users_backend %q", c.UsersBackend))
	}
	if c.WatchUsersFile && c.UsersBackend != BackendFile {
		errs = append(errs, errors.New("watch_users_file requires the file backend"))
	}

	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	if c.MaxLoginAttempts < 1 {
		errs = append(errs, errors.New("max_login_attempts must be at least 1"))
	}
	if c.LoginAttemptWindow <= 0 {
		errs = append(errs, errors.New("login_attempt_window must be positive"))
	}
	if c.AttemptSweepInterval < 0 {
		errs = append(errs, errors.New("attempt_sweep_interval must not be negative"))
	}
	if c.MaxConcurrentUsers < 1 {
		errs = append(errs, errors.New("max_concurrent_users must be at least 1"))
	}
	if _, err := sessions.ParseEvictionPolicy(c.SessionEviction); err != nil {
		errs = append(errs, err)
	}
	if c.MinPasswordLength < 1 {
		errs = append(errs, errors.New("min_password_length must be at least 1"))
	}
	if _, err := cryptox.NewHasher(c.DigestScheme); err != nil {
		errs = append(errs, err)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}
