package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// ErrPageNotFound is returned when no page row matches the lookup.
var ErrPageNotFound = errors.New("page not found")

// ErrDuplicatePath is returned by CreatePage when another page already
// holds the path, detected by the unique constraint on pages.path.
var ErrDuplicatePath = errors.New("page path already exists")

// ErrVersionMismatch is returned by UpdatePageVersioned when the stored
// version no longer equals the caller's expected version.
var ErrVersionMismatch = errors.New("page version mismatch")

// SQLPageRepository is a concrete implementation of the page repository
// interfaces using sqlx.
type SQLPageRepository struct {
	db *sqlx.DB
}

// NewSQLPageRepository creates a new SQLPageRepository.
func NewSQLPageRepository(db *sqlx.DB) *SQLPageRepository {
	return &SQLPageRepository{db: db}
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// MySQL signals it as error 1062; SQLite only puts it in the message.
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreatePage inserts a new page row and fills in its generated id. A
// duplicate path is classified as ErrDuplicatePath so callers can treat
// a lost creation race differently from a broken store.
func (r *SQLPageRepository) CreatePage(ctx context.Context, page *Page) error {
	query := `INSERT INTO pages (path, title, data, html, format, pagetype, version, created, updated, writer)
		VALUES (:path, :title, :data, :html, :format, :pagetype, :version, :created, :updated, :writer)`
	res, err := r.db.NamedExecContext(ctx, query, page)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("path %q: %w", page.Path, ErrDuplicatePath)
		}
		return fmt.Errorf("failed to execute create page query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted page id: %w", err)
	}
	page.ID = id
	return nil
}

// GetPageByID retrieves a single page by its ID.
func (r *SQLPageRepository) GetPageByID(ctx context.Context, id int64) (*Page, error) {
	var page Page
	query := `SELECT id, path, title, data, html, format, pagetype, version, created, updated, writer
		FROM pages WHERE id = ?`
	if err := r.db.GetContext(ctx, &page, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("page id %d: %w", id, ErrPageNotFound)
		}
		return nil, fmt.Errorf("failed to get page by id: %w", err)
	}
	return &page, nil
}

// GetPageByPath retrieves a single page by its normalized path.
func (r *SQLPageRepository) GetPageByPath(ctx context.Context, path string) (*Page, error) {
	var page Page
	query := `SELECT id, path, title, data, html, format, pagetype, version, created, updated, writer
		FROM pages WHERE path = ?`
	if err := r.db.GetContext(ctx, &page, query, path); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("page path %q: %w", path, ErrPageNotFound)
		}
		return nil, fmt.Errorf("failed to get page by path: %w", err)
	}
	return &page, nil
}

// ListPages returns a batch of pages ordered by id, for offset-restartable
// sweeps over the whole table.
func (r *SQLPageRepository) ListPages(ctx context.Context, offset, limit int) ([]*Page, error) {
	var pages []*Page
	query := `SELECT id, path, title, data, html, format, pagetype, version, created, updated, writer
		FROM pages ORDER BY id LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &pages, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// UpdatePageVersioned commits a page update and its revision snapshot in a
// single transaction. The UPDATE is conditioned on the expected prior
// version; if another writer got there first, no row matches and the whole
// transaction rolls back with ErrVersionMismatch. The page's version and
// the revision's number advance together, so history stays contiguous.
func (r *SQLPageRepository) UpdatePageVersioned(ctx context.Context, page *Page, expectedVersion int64, rev *Revision) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE pages SET title = ?, data = ?, html = ?, version = ?, updated = ? WHERE id = ? AND version = ?`,
		page.Title, page.Data, page.HTML, page.Version, page.Updated, page.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("page id %d expected version %d: %w", page.ID, expectedVersion, ErrVersionMismatch)
	}

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO revisions (page_id, revision_number, title, rawtext, why, writer, created)
			VALUES (:page_id, :revision_number, :title, :rawtext, :why, :writer, :created)`,
		rev); err != nil {
		return fmt.Errorf("failed to insert revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update transaction: %w", err)
	}
	return nil
}

// GetRevisions returns a page's revision history, newest first.
func (r *SQLPageRepository) GetRevisions(ctx context.Context, pageID int64) ([]*Revision, error) {
	var revs []*Revision
	query := `SELECT id, page_id, revision_number, title, rawtext, why, writer, created
		FROM revisions WHERE page_id = ? ORDER BY revision_number DESC`
	if err := r.db.SelectContext(ctx, &revs, query, pageID); err != nil {
		return nil, fmt.Errorf("failed to get revisions: %w", err)
	}
	return revs, nil
}

// GetTags returns the tag names attached to a page.
func (r *SQLPageRepository) GetTags(ctx context.Context, pageID int64) ([]string, error) {
	var names []string
	query := `SELECT name FROM tags WHERE page_id = ? ORDER BY name`
	if err := r.db.SelectContext(ctx, &names, query, pageID); err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	return names, nil
}

// ReplaceTags swaps a page's tag set for the given names in one
// transaction. Tag names are globally unique across pages.
func (r *SQLPageRepository) ReplaceTags(ctx context.Context, pageID int64, names []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tag transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tags (name, page_id) VALUES (?, ?)`, name, pageID); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag transaction: %w", err)
	}
	return nil
}
