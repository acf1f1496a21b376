//go:build integration

package data

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// setupPageTest creates a new in-memory SQLite database seeded with one
// user, and a SQLPageRepository for testing. It returns the repository
// and a teardown function to be deferred.
func setupPageTest(t *testing.T) (*SQLPageRepository, func()) {
	t.Helper()

	// Use a non-shared in-memory database for complete test isolation.
	db, err := sqlx.Connect("sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	schema := `
	CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		user_name TEXT NOT NULL UNIQUE,
		email_address TEXT NOT NULL UNIQUE,
		display_name TEXT,
		created DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE pages (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		data TEXT,
		html TEXT,
		format INTEGER NOT NULL DEFAULT 0,
		pagetype TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created DATETIME NOT NULL,
		updated DATETIME NOT NULL,
		writer INTEGER NOT NULL,
		FOREIGN KEY (writer) REFERENCES users (id)
	);
	CREATE TABLE revisions (
		id INTEGER PRIMARY KEY,
		page_id INTEGER NOT NULL,
		revision_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		rawtext TEXT,
		why TEXT,
		writer INTEGER NOT NULL,
		created DATETIME NOT NULL,
		UNIQUE (page_id, revision_number),
		FOREIGN KEY (page_id) REFERENCES pages (id),
		FOREIGN KEY (writer) REFERENCES users (id)
	);
	CREATE TABLE tags (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		page_id INTEGER NOT NULL,
		FOREIGN KEY (page_id) REFERENCES pages (id)
	);`
	db.MustExec(schema)
	db.MustExec(`INSERT INTO users (id, user_name, email_address) VALUES (1, 'kushal', 'kushal@example.org')`)

	repo := NewSQLPageRepository(db)

	teardown := func() {
		db.Close()
	}

	return repo, teardown
}

func testPage(path string) *Page {
	now := time.Now().UTC().Truncate(time.Second)
	return &Page{
		Path:     path,
		Title:    "Title",
		Data:     "Hello",
		HTML:     "<p>Hello</p>",
		Format:   FormatMarkdown,
		PageType: PageTypePublished,
		Version:  0,
		Created:  now,
		Updated:  now,
		Writer:   1,
	}
}

func TestSQLPageRepository_CreateAndGet(t *testing.T) {
	repo, teardown := setupPageTest(t)
	defer teardown()
	ctx := context.Background()

	page := testPage("help")
	if err := repo.CreatePage(ctx, page); err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if page.ID == 0 {
		t.Fatal("expected CreatePage to fill in the generated id")
	}

	byPath, err := repo.GetPageByPath(ctx, "help")
	if err != nil {
		t.Fatalf("GetPageByPath failed: %v", err)
	}
	if byPath.ID != page.ID || byPath.Title != "Title" || byPath.Version != 0 {
		t.Errorf("unexpected page: %+v", byPath)
	}

	byID, err := repo.GetPageByID(ctx, page.ID)
	if err != nil {
		t.Fatalf("GetPageByID failed: %v", err)
	}
	if byID.Path != "help" {
		t.Errorf("expected path 'help', got %q", byID.Path)
	}
}

func TestSQLPageRepository_NotFound(t *testing.T) {
	repo, teardown := setupPageTest(t)
	defer teardown()
	ctx := context.Background()

	if _, err := repo.GetPageByPath(ctx, "nope"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound by path, got %v", err)
	}
	if _, err := repo.GetPageByID(ctx, 99); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound by id, got %v", err)
	}
}

func TestSQLPageRepository_DuplicatePath(t *testing.T) {
	repo, teardown := setupPageTest(t)
	defer teardown()
	ctx := context.Background()

	if err := repo.CreatePage(ctx, testPage("help")); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	err := repo.CreatePage(ctx, testPage("help"))
	if !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("expected ErrDuplicatePath, got %v", err)
	}
}

func TestSQLPageRepository_UpdatePageVersioned(t *testing.T) {
	repo, teardown := setupPageTest(t)
	defer teardown()
	ctx := context.Background()

	page := testPage("help")
	if err := repo.CreatePage(ctx, page); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	page.Title = "New title"
	page.Data = "Hello world"
	page.HTML = "<p>Hello world</p>"
	page.Version = 1
	page.Updated = now
	rev := &Revision{
		PageID:         page.ID,
		RevisionNumber: 1,
		Title:          page.Title,
		RawText:        page.Data,
		Why:            "typo",
		Writer:         1,
		Created:        now,
	}
	if err := repo.UpdatePageVersioned(ctx, page, 0, rev); err != nil {
		t.Fatalf("UpdatePageVersioned failed: %v", err)
	}

	stored, err := repo.GetPageByID(ctx, page.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Version != 1 || stored.Data != "Hello world" {
		t.Errorf("update did not land: %+v", stored)
	}

	revs, err := repo.GetRevisions(ctx, page.ID)
	if err != nil {
		t.Fatalf("GetRevisions failed: %v", err)
	}
	if len(revs) != 1 || revs[0].RevisionNumber != 1 || revs[0].Why != "typo" {
		t.Errorf("unexpected revisions: %+v", revs)
	}

	t.Run("stale expected version rolls back both writes", func(t *testing.T) {
		stale := *stored
		stale.Version = 2
		staleRev := *rev
		staleRev.RevisionNumber = 2
		// Stored version is 1, so expecting 0 must fail.
		err := repo.UpdatePageVersioned(ctx, &stale, 0, &staleRev)
		if !errors.Is(err, ErrVersionMismatch) {
			t.Fatalf("expected ErrVersionMismatch, got %v", err)
		}
		revs, _ := repo.GetRevisions(ctx, page.ID)
		if len(revs) != 1 {
			t.Errorf("mismatch must not append a revision, got %d", len(revs))
		}
	})
}

func TestSQLPageRepository_RevisionHistoryOrder(t *testing.T) {
	repo, teardown := setupPageTest(t)
	defer teardown()
	ctx := context.Background()

	page := testPage("help")
	if err := repo.CreatePage(ctx, page); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		page.Version = i
		rev := &Revision{
			PageID:         page.ID,
			RevisionNumber: i,
			Title:          page.Title,
			RawText:        fmt.Sprintf("v%d", i),
			Writer:         1,
			Created:        time.Now().UTC(),
		}
		if err := repo.UpdatePageVersioned(ctx, page, i-1, rev); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}

	revs, err := repo.GetRevisions(ctx, page.ID)
	if err != nil {
		t.Fatalf("GetRevisions failed: %v", err)
	}
	if len(revs) != 3 {
		t.Fatalf("expected 3 revisions, got %d", len(revs))
	}
	for i, rev := range revs {
		if want := int64(3 - i); rev.RevisionNumber != want {
			t.Errorf("position %d: expected revision %d, got %d", i, want, rev.RevisionNumber)
		}
	}
}

func TestSQLPageRepository_ListPages(t *testing.T) {
	repo, teardown := setupPageTest(t)
	defer teardown()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.CreatePage(ctx, testPage(fmt.Sprintf("doc/%d", i))); err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}

	first, err := repo.ListPages(ctx, 0, 3)
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(first))
	}
	second, err := repo.ListPages(ctx, 3, 3)
	if err != nil {
		t.Fatalf("ListPages offset failed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected remaining 2, got %d", len(second))
	}
	if first[0].Path != "doc/0" || second[0].Path != "doc/3" {
		t.Errorf("batches out of order: %q, %q", first[0].Path, second[0].Path)
	}
}

func TestSQLPageRepository_Tags(t *testing.T) {
	repo, teardown := setupPageTest(t)
	defer teardown()
	ctx := context.Background()

	page := testPage("help")
	if err := repo.CreatePage(ctx, page); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	other := testPage("other")
	if err := repo.CreatePage(ctx, other); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.ReplaceTags(ctx, page.ID, []string{"intro", "docs"}); err != nil {
		t.Fatalf("ReplaceTags failed: %v", err)
	}
	tags, err := repo.GetTags(ctx, page.ID)
	if err != nil {
		t.Fatalf("GetTags failed: %v", err)
	}
	if len(tags) != 2 || tags[0] != "docs" || tags[1] != "intro" {
		t.Errorf("unexpected tags: %v", tags)
	}

	t.Run("tag names are globally unique", func(t *testing.T) {
		if err := repo.ReplaceTags(ctx, other.ID, []string{"docs"}); err == nil {
			t.Fatal("expected the global unique name constraint to reject the duplicate")
		}
	})

	t.Run("replace swaps the whole set", func(t *testing.T) {
		if err := repo.ReplaceTags(ctx, page.ID, []string{"guide"}); err != nil {
			t.Fatalf("ReplaceTags failed: %v", err)
		}
		tags, _ := repo.GetTags(ctx, page.ID)
		if len(tags) != 1 || tags[0] != "guide" {
			t.Errorf("unexpected tags after replace: %v", tags)
		}
	})
}
