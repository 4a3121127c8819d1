package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/urbanquest/internal/flagx"
	"github.com/dmitrijs2005/urbanquest/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Durations use
// timex.Duration so "5m" and integer nanoseconds both work. Fields left
// out of the file keep their current value.
type FileConfig struct {
	UsersBackend         string          `json:"users_backend" toml:"users_backend" yaml:"users_backend"`
	UsersFile            string          `json:"users_file" toml:"users_file" yaml:"users_file"`
	WatchUsersFile       *bool           `json:"watch_users_file" toml:"watch_users_file" yaml:"watch_users_file"`
	DatabaseDSN          string          `json:"database_dsn" toml:"database_dsn" yaml:"database_dsn"`
	S3AccessKey          string          `json:"s3_access_key" toml:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey          string          `json:"s3_secret_key" toml:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket             string          `json:"s3_bucket" toml:"s3_bucket" yaml:"s3_bucket"`
	S3Region             string          `json:"s3_region" toml:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint       string          `json:"s3_base_endpoint" toml:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3ObjectKey          string          `json:"s3_object_key" toml:"s3_object_key" yaml:"s3_object_key"`
	CacheTTL             *timex.Duration `json:"cache_ttl" toml:"cache_ttl" yaml:"cache_ttl"`
	MaxLoginAttempts     int             `json:"max_login_attempts" toml:"max_login_attempts" yaml:"max_login_attempts"`
	LoginAttemptWindow   *timex.Duration `json:"login_attempt_window" toml:"login_attempt_window" yaml:"login_attempt_window"`
	AttemptSweepInterval *timex.Duration `json:"attempt_sweep_interval" toml:"attempt_sweep_interval" yaml:"attempt_sweep_interval"`
	MaxConcurrentUsers   int             `json:"max_concurrent_users" toml:"max_concurrent_users" yaml:"max_concurrent_users"`
	SessionEviction      string          `json:"session_eviction" toml:"session_eviction" yaml:"session_eviction"`
	MinPasswordLength    int             `json:"min_password_length" toml:"min_password_length" yaml:"min_password_length"`
	DigestScheme         string          `json:"digest_scheme" toml:"digest_scheme" yaml:"digest_scheme"`
	LogLevel             string          `json:"log_level" toml:"log_level" yaml:"log_level"`
	LogFormat            string          `json:"log_format" toml:"log_format" yaml:"log_format"`
}

// parseFile loads the file named by -c or -config, if any, and copies
// the fields it sets into config.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	fc, err := decodeFile(path, data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	fc.apply(config)
	return nil
}

func decodeFile(path string, data []byte) (*FileConfig, error) {
	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), fc); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, fc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, fc); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

func (fc *FileConfig) apply(config *Config) {
	setString(&config.UsersBackend, fc.UsersBackend)
	setString(&config.UsersFile, fc.UsersFile)
	if fc.WatchUsersFile != nil {
		config.WatchUsersFile = *fc.WatchUsersFile
	}
	setString(&config.DatabaseDSN, fc.DatabaseDSN)
	setString(&config.S3AccessKey, fc.S3AccessKey)
	setString(&config.S3SecretKey, fc.S3SecretKey)
	setString(&config.S3Bucket, fc.S3Bucket)
	setString(&config.S3Region, fc.S3Region)
	setString(&config.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&config.S3ObjectKey, fc.S3ObjectKey)
	if fc.CacheTTL != nil {
		config.CacheTTL = fc.CacheTTL.Duration
	}
	setInt(&config.MaxLoginAttempts, fc.MaxLoginAttempts)
	if fc.LoginAttemptWindow != nil {
		config.LoginAttemptWindow = fc.LoginAttemptWindow.Duration
	}
	if fc.AttemptSweepInterval != nil {
		config.AttemptSweepInterval = fc.AttemptSweepInterval.Duration
	}
	setInt(&config.MaxConcurrentUsers, fc.MaxConcurrentUsers)
	setString(&config.SessionEviction, fc.SessionEviction)
	setInt(&config.MinPasswordLength, fc.MinPasswordLength)
	setString(&config.DigestScheme, fc.DigestScheme)
	setString(&config.LogLevel, fc.LogLevel)
	setString(&config.LogFormat, fc.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
