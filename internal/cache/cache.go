package cache

import (
	"database/sql"
	"fmt"

	"slatewiki/internal/config"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed key-value store holding the rendered page
// projections, plus an ordered list of recently refreshed paths. It is a
// derived view of the relational store: values are overwritten whole and
// the entire cache can be dropped and rebuilt at any time.
type Cache struct {
	db *sqlx.DB
}

// New opens the SQLite cache at the configured file path and ensures its
// tables exist.
func New(cfg config.CacheConfig) (*Cache, error) {
	db, err := sqlx.Connect("sqlite", cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite cache: %w", err)
	}

	// WAL mode is generally better for concurrent readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode on sqlite cache: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB
	);
	CREATE TABLE IF NOT EXISTS lists (
		key TEXT NOT NULL,
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		value TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lists_key ON lists (key, seq);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get retrieves a value from the cache. It returns nil with no error when
// the key is absent; a miss is not a failure.
func (c *Cache) Get(key string) ([]byte, error) {
	var value []byte
	err := c.db.Get(&value, `SELECT value FROM cache WHERE key = ?`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item from cache: %w", err)
	}
	return value, nil
}

// Set replaces the value at key in full. There is no partial update path.
func (c *Cache) Set(key string, value []byte) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO cache (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set item in cache: %w", err)
	}
	return nil
}

// Delete removes an item from the cache.
func (c *Cache) Delete(key string) error {
	if _, err := c.db.Exec(`DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete item from cache: %w", err)
	}
	return nil
}

// ListPush prepends value to the named list.
func (c *Cache) ListPush(key, value string) error {
	if _, err := c.db.Exec(`INSERT INTO lists (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("failed to push onto list %q: %w", key, err)
	}
	return nil
}

// ListRange returns up to n values from the named list, newest first.
func (c *Cache) ListRange(key string, n int) ([]string, error) {
	var values []string
	err := c.db.Select(&values, `SELECT value FROM lists WHERE key = ? ORDER BY seq DESC LIMIT ?`, key, n)
	if err != nil {
		return nil, fmt.Errorf("failed to range list %q: %w", key, err)
	}
	return values, nil
}

// FlushAll empties every key and list. The relational store can
// repopulate the cache through a bulk reload.
func (c *Cache) FlushAll() error {
	if _, err := c.db.Exec(`DELETE FROM cache`); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	if _, err := c.db.Exec(`DELETE FROM lists`); err != nil {
		return fmt.Errorf("failed to flush lists: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
