package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/urbanquest/internal/flagx"
)

var flagNames = []string{
	"-b", "-f", "-w", "-d",
	"-u", "-p", "-k", "-g", "-e", "-o",
	"-t", "-m", "-W", "-s",
	"-n", "-E", "-l", "-H", "-L", "-F",
}

// parseFlags overlays command-line flags on config.
//
// Supported flags (short forms):
//
//	-b string    users backend: file, s3, sqlite, postgres
//	-f string    users file path
//	-w           watch the users file for external edits
//	-d string    database DSN (sqlite, postgres)
//	-u string    S3 access key
//	-p string    S3 secret key
//	-k string    S3 bucket
//	-g string    S3 region
//	-e string    S3 base endpoint (e.g. "http://127.0.0.1:9000")
//	-o string    S3 object key
//	-t duration  cache TTL
//	-m int       failed logins allowed per window
//	-W duration  failed-login window
//	-s duration  attempt sweep interval (0 disables)
//	-n int       maximum concurrent sessions
//	-E string    session eviction policy: oldest-login, least-active
//	-l int       minimum password length
//	-H string    digest scheme: argon2id, bcrypt, sha256
//	-L string    log level
//	-F string    log format: text, json
//
// args are filtered with flagx.FilterArgs first, so flags owned by
// other parsers (such as -c) do not cause errors here.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, flagNames)

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.UsersBackend, "b", config.UsersBackend, "users backend")
	fs.StringVar(&config.UsersFile, "f", config.UsersFile, "users file")
	fs.BoolVar(&config.WatchUsersFile, "w", config.WatchUsersFile, "watch users file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "k", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3ObjectKey, "o", config.S3ObjectKey, "S3 object key")

	fs.DurationVar(&config.CacheTTL, "t", config.CacheTTL, "cache TTL")
	fs.IntVar(&config.MaxLoginAttempts, "m", config.MaxLoginAttempts, "max failed logins per window")
	fs.DurationVar(&config.LoginAttemptWindow, "W", config.LoginAttemptWindow, "failed login window")
	fs.DurationVar(&config.AttemptSweepInterval, "s", config.AttemptSweepInterval, "attempt sweep interval")

	fs.IntVar(&config.MaxConcurrentUsers, "n", config.MaxConcurrentUsers, "max concurrent sessions")
	fs.StringVar(&config.SessionEviction, "E", config.SessionEviction, "session eviction policy")
	fs.IntVar(&config.MinPasswordLength, "l", config.MinPasswordLength, "min password length")
	fs.StringVar(&config.DigestScheme, "H", config.DigestScheme, "password digest scheme")
	fs.StringVar(&config.LogLevel, "L", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "F", config.LogFormat, "log format")

	return fs.Parse(args)
}
