// Package app wires configuration, logging, the user store backend, the
// limiter, the session registry and the authentication service, and runs
// the operator console together with the background maintenance tasks.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/urbanquest/internal/cli"
	"github.com/dmitrijs2005/urbanquest/internal/config"
	"github.com/dmitrijs2005/urbanquest/internal/cryptox"
	"github.com/dmitrijs2005/urbanquest/internal/dbx"
	"github.com/dmitrijs2005/urbanquest/internal/logging"
	"github.com/dmitrijs2005/urbanquest/internal/ratelimit"
	"github.com/dmitrijs2005/urbanquest/internal/services"
	"github.com/dmitrijs2005/urbanquest/internal/sessions"
	"github.com/dmitrijs2005/urbanquest/internal/store"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *store.Store
	limiter  *ratelimit.Limiter
	service  *services.AuthService
	watcher  *store.FileWatcher
	console  *cli.App
	closeFns []func() error
}

// NewApp builds every component from c. Logs go to logOut so they do not
// interleave with console output on out.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out, logOut io.Writer) (*App, error) {
	logger, err := logging.New(logOut, c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	backend, err := app.openBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("users backend init error: %w", err)
	}

	app.store = store.New(backend, store.WithTTL(c.CacheTTL), store.WithLogger(logger))

	if c.WatchUsersFile {
		w, err := store.NewFileWatcher(c.UsersFile, app.store, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.watcher = w
		app.closeFns = append(app.closeFns, w.Close)
	}

	app.limiter = ratelimit.New(
		ratelimit.WithMaxAttempts(c.MaxLoginAttempts),
		ratelimit.WithWindow(c.LoginAttemptWindow),
	)

	policy, err := sessions.ParseEvictionPolicy(c.SessionEviction)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	registry := sessions.New(
		sessions.WithMaxSessions(c.MaxConcurrentUsers),
		sessions.WithEvictionPolicy(policy),
	)

	hasher, err := cryptox.NewHasher(c.DigestScheme)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.service = services.NewAuthService(app.store, app.limiter, registry, hasher,
		services.WithLogger(logger),
		services.WithMinPasswordLength(c.MinPasswordLength),
	)
	app.console = cli.NewApp(app.service, in, out)

	return app, nil
}

func (app *App) openBackend(ctx context.Context) (store.Backend, error) {
	c := app.config
	switch c.UsersBackend {
	case config.BackendS3:
		return store.NewS3Backend(ctx, store.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			Key:          c.S3ObjectKey,
			BaseEndpoint: c.S3BaseEndpoint,
		})

	case config.BackendSQLite, config.BackendPostgres:
		dialect := dbx.Dialect(c.UsersBackend)
		db, err := store.OpenSQL(ctx, dialect, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		app.closeFns = append(app.closeFns, db.Close)
		return store.NewSQLBackend(db, dialect), nil

	case config.BackendFile:
		return store.NewFileBackend(c.UsersFile), nil
	}
	return nil, fmt.Errorf("unknown users backend %q", c.UsersBackend)
}

// Service exposes the wired AuthService.
func (app *App) Service() *services.AuthService {
	return app.service
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the maintenance goroutines and the console, and returns
// when the console exits or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"backend", app.config.UsersBackend,
		"max_sessions", app.config.MaxConcurrentUsers,
		"digest_scheme", app.config.DigestScheme,
	)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.config.AttemptSweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.limiter.Run(ctx, app.config.AttemptSweepInterval, func(removed int) {
				if removed > 0 {
					app.logger.Debug(ctx, "attempt table swept", "removed", removed)
				}
			})
		}()
	}

	if app.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.watcher.Run(ctx)
		}()
	}

	// The console blocks on stdin, so it is not part of the wait group.
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.console.Run(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	cancelFunc()
	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "shutdown", "error", err)
	}
	app.logger.Info(context.WithoutCancel(ctx), "Stopped")
}

// Close releases backend resources. It is safe to call more than once.
func (app *App) Close() error {
	var firstErr error
	for _, fn := range app.closeFns {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	app.closeFns = nil
	return firstErr
}
