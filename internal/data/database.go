package data

import (
	"fmt"
	"path/filepath"

	"slatewiki/internal/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
)

// Connect opens the relational store holding pages, revisions and tags.
// sqlx.Connect pings before returning, so a bad DSN fails here rather
// than on the first query. This store is the source of truth; the read
// cache is a derived view of it.
func Connect(cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to page store: %w", err)
	}
	return db, nil
}

// Migrate brings the page store schema up to date from the configured
// migrations directory. An already-current schema is not an error.
func Migrate(cfg config.DBConfig) error {
	// golang-migrate addresses both sides as URLs: mysql:// for the
	// store and an absolute file:// for the migration scripts.
	absPath, err := filepath.Abs(cfg.MigrationsPath)
	if err != nil {
		return fmt.Errorf("failed to resolve migrations directory %q: %w", cfg.MigrationsPath, err)
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", absPath), fmt.Sprintf("mysql://%s", cfg.DSN))
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
