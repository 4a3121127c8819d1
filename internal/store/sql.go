package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/urbanquest/internal/dbx"
	"github.com/dmitrijs2005/urbanquest/internal/models"
	"github.com/dmitrijs2005/urbanquest/internal/store/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	driverNames = map[dbx.Dialect]string{
		dbx.DialectSQLite:   "sqlite",
		dbx.DialectPostgres: "pgx",
	}
	gooseDialects = map[dbx.Dialect]string{
		dbx.DialectSQLite:   "sqlite3",
		dbx.DialectPostgres: "postgres",
	}
)

// OpenSQL opens a database for dialect and applies the embedded
// migrations.
func OpenSQL(ctx context.Context, dialect dbx.Dialect, dsn string) (*sql.DB, error) {
	driver, ok := driverNames[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == dbx.DialectSQLite {
		// one writer at a time; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}

	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations brings the users table up to date.
func RunMigrations(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialects[dialect]); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SQLBackend stores one row per user. Save rewrites the table inside a
// single transaction, which keeps the whole-collection contract of the
// other backends while letting the data live in an indexed store.
type SQLBackend struct {
	db      *sql.DB
	dialect dbx.Dialect
}

func NewSQLBackend(db *sql.DB, dialect dbx.Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: dialect}
}

func (b *SQLBackend) Name() string { return string(b.dialect) }

// Close releases the database handle.
func (b *SQLBackend) Close() error {
	return b.db.Close()
}

func (b *SQLBackend) Load(ctx context.Context) (models.Collection, error) {
	query := `SELECT username, name, email, password, created_at, last_login, status
	          FROM users ORDER BY position`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return models.Collection{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var c models.Collection
	for rows.Next() {
		var (
			u         models.User
			createdAt string
			lastLogin sql.NullString
			status    string
		)
		if err := rows.Scan(&u.UserName, &u.Name, &u.Email, &u.Password, &createdAt, &lastLogin, &status); err != nil {
			return models.Collection{}, fmt.Errorf("db error: %w", err)
		}
		u.Status = models.Status(status)

		u.CreatedAt = models.LenientTimestamp(createdAt)
		if lastLogin.Valid && lastLogin.String != "" {
			ll := models.LenientTimestamp(lastLogin.String)
			u.LastLogin = &ll
		}
		c.Users = append(c.Users, u)
	}
	if err := rows.Err(); err != nil {
		return models.Collection{}, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (b *SQLBackend) Save(ctx context.Context, c models.Collection) error {
	insert := dbx.Rebind(b.dialect,
		`INSERT INTO users (username, position, name, email, password, created_at, last_login, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		for i, u := range c.Users {
			var lastLogin sql.NullString
			if u.LastLogin != nil {
				lastLogin = sql.NullString{String: u.LastLogin.String(), Valid: true}
			}
			_, err := tx.ExecContext(ctx, insert,
				u.UserName, i, u.Name, u.Email, u.Password, u.CreatedAt.String(), lastLogin, string(u.Status))
			if err != nil {
				return fmt.Errorf("db error: insert %q: %w", u.UserName, err)
			}
		}
		return nil
	})
}
