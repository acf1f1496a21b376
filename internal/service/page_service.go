package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slatewiki/internal/data"
	"slatewiki/internal/logger"
)

// defaultLoadBatchSize bounds each ListPages batch during a bulk reload.
const defaultLoadBatchSize = 100

// PageRepository defines the relational-store operations the service needs.
type PageRepository interface {
	CreatePage(ctx context.Context, page *data.Page) error
	GetPageByID(ctx context.Context, id int64) (*data.Page, error)
	GetPageByPath(ctx context.Context, path string) (*data.Page, error)
	ListPages(ctx context.Context, offset, limit int) ([]*data.Page, error)
	UpdatePageVersioned(ctx context.Context, page *data.Page, expectedVersion int64, rev *data.Revision) error
	GetRevisions(ctx context.Context, pageID int64) ([]*data.Revision, error)
	GetTags(ctx context.Context, pageID int64) ([]string, error)
	ReplaceTags(ctx context.Context, pageID int64, names []string) error
}

// PageCache is the key-value store holding rendered projections.
type PageCache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	ListPush(key, value string) error
	ListRange(key string, n int) ([]string, error)
	FlushAll() error
}

// TaskQueue carries change notifications to downstream subscribers.
type TaskQueue interface {
	Enqueue(queueName string, payload []byte) error
}

// Renderer converts raw page source into HTML. It is pure and never fails.
type Renderer interface {
	Render(text string, format data.Format) string
}

// Propagation reports the outcome of the best-effort follow-ups that run
// after a durable commit. A non-nil error here never means the page write
// failed; it means the cache or the queue is briefly behind the store.
type Propagation struct {
	CacheErr error
	QueueErr error

	// Skipped is set when a no-op update short-circuited before the
	// commit, so there was nothing to propagate.
	Skipped bool
}

// OK reports whether both follow-ups landed.
func (p Propagation) OK() bool {
	return p.CacheErr == nil && p.QueueErr == nil
}

// PageServicer defines the operations exposed to the transport layer.
type PageServicer interface {
	CreatePage(ctx context.Context, path, title, rawText string, format data.Format, writerID int64) (*data.Page, Propagation, error)
	UpdatePage(ctx context.Context, id int64, title, rawText, why string, writerID int64) (*data.Page, Propagation, error)
	FindPage(path string) (*Projection, error)
	LoadAll(ctx context.Context) (int, error)
	PageRevisions(ctx context.Context, path string) ([]*data.Revision, error)
	LatestPages(n int) ([]string, error)
	TagPage(ctx context.Context, id int64, names []string) error
}

// PageService orchestrates page writes across the relational store, the
// read cache and the notification queue. The store is the source of
// truth; every successful commit is followed by a best-effort cache
// refresh and queue publish, in that order.
type PageService struct {
	repo      PageRepository
	cache     PageCache
	queue     TaskQueue
	renderer  Renderer
	queueName string
	log       logger.Logger
	now       func() time.Time
	loadBatch int
}

// NewPageService creates a PageService with its collaborators injected.
func NewPageService(repo PageRepository, cache PageCache, queue TaskQueue, renderer Renderer, queueName string, log logger.Logger) *PageService {
	return &PageService{
		repo:      repo,
		cache:     cache,
		queue:     queue,
		renderer:  renderer,
		queueName: queueName,
		log:       log,
		now:       time.Now,
		loadBatch: defaultLoadBatchSize,
	}
}

// NormalizePath lowercases and trims a page path. Paths are
// slash-segmented and case-insensitive.
func NormalizePath(path string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(path), "/"))
}

// CreatePage persists a brand-new page at version 0, then refreshes the
// cache and publishes a change notification. The relational insert is the
// only fatal step: if it fails nothing else is attempted.
func (s *PageService) CreatePage(ctx context.Context, path, title, rawText string, format data.Format, writerID int64) (*data.Page, Propagation, error) {
	path = NormalizePath(path)
	if path == "" {
		return nil, Propagation{}, fmt.Errorf("cannot create page with empty path")
	}

	// Creation and update are routed by the caller, but guard against
	// creating over an existing path anyway. The unique constraint on
	// pages.path backs this up under races.
	if _, err := s.repo.GetPageByPath(ctx, path); err == nil {
		return nil, Propagation{}, fmt.Errorf("path %q: %w", path, ErrPageExists)
	} else if !errors.Is(err, data.ErrPageNotFound) {
		return nil, Propagation{}, fmt.Errorf("failed to check path %q: %w", path, err)
	}

	now := s.now()
	page := &data.Page{
		Path:     path,
		Title:    title,
		Data:     rawText,
		Format:   format,
		PageType: data.PageTypePublished,
		Version:  0,
		Created:  now,
		Updated:  now,
		Writer:   writerID,
	}
	if rawText != "" {
		page.HTML = s.renderer.Render(rawText, format)
	}

	if err := s.repo.CreatePage(ctx, page); err != nil {
		if errors.Is(err, data.ErrDuplicatePath) {
			// Lost the race with a concurrent creator after the check.
			return nil, Propagation{}, fmt.Errorf("path %q: %w", path, ErrPageExists)
		}
		return nil, Propagation{}, fmt.Errorf("failed to persist page %q: %w", path, err)
	}

	return page, s.propagate(page, nil), nil
}

// UpdatePage applies an edit to an existing page. Identical title and
// text short-circuit as a no-op: no version bump, no revision, no cache
// rewrite, no notification. Otherwise the page row update and the
// revision snapshot commit in one transaction, guarded by the expected
// prior version; a stale read surfaces as ErrConflict.
func (s *PageService) UpdatePage(ctx context.Context, id int64, title, rawText, why string, writerID int64) (*data.Page, Propagation, error) {
	page, err := s.repo.GetPageByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrPageNotFound) {
			return nil, Propagation{}, fmt.Errorf("page id %d: %w", id, ErrNotFound)
		}
		return nil, Propagation{}, fmt.Errorf("failed to load page %d: %w", id, err)
	}

	if page.Title == title && page.Data == rawText {
		// Nothing changed; skip the redundant history entry.
		return page, Propagation{Skipped: true}, nil
	}

	now := s.now()
	expected := page.Version
	page.Title = title
	page.Data = rawText
	page.HTML = s.renderer.Render(rawText, page.Format)
	page.Version = expected + 1
	page.Updated = now

	rev := &data.Revision{
		PageID:         page.ID,
		RevisionNumber: page.Version,
		Title:          title,
		RawText:        rawText,
		Why:            why,
		Writer:         writerID,
		Created:        now,
	}

	if err := s.repo.UpdatePageVersioned(ctx, page, expected, rev); err != nil {
		if errors.Is(err, data.ErrVersionMismatch) {
			return nil, Propagation{}, fmt.Errorf("page id %d: %w", id, ErrConflict)
		}
		return nil, Propagation{}, fmt.Errorf("failed to update page %d: %w", id, err)
	}

	tags, err := s.repo.GetTags(ctx, page.ID)
	if err != nil {
		s.log.Error(err, fmt.Sprintf("could not load tags for projection of %q", page.Path))
	}
	return page, s.propagate(page, tags), nil
}

// propagate runs the phase-2 follow-ups after a durable commit: replace
// the cache projection, then publish the same record on the notification
// queue. Failures are logged and reported, never escalated.
func (s *PageService) propagate(page *data.Page, tags []string) Propagation {
	var prop Propagation

	payload, err := newProjection(page, tags).encode()
	if err != nil {
		// Projections are plain data; this should never happen, but a
		// broken payload must not reach the cache or the queue.
		prop.CacheErr = err
		prop.QueueErr = err
		s.log.Error(err, fmt.Sprintf("skipping propagation for %q", page.Path))
		return prop
	}

	if err := s.cache.Set(pageKey(page.Path), payload); err != nil {
		prop.CacheErr = err
		s.log.Error(err, fmt.Sprintf("cache refresh failed for %q", page.Path))
	}
	if err := s.queue.Enqueue(s.queueName, payload); err != nil {
		prop.QueueErr = err
		s.log.Error(err, fmt.Sprintf("notification enqueue failed for %q", page.Path))
	}
	return prop
}

// FindPage returns the cached projection for a path. The cache is the
// sole read path for page content; a miss is ErrNotFound, never a fall
// through to the relational store.
func (s *PageService) FindPage(path string) (*Projection, error) {
	value, err := s.cache.Get(pageKey(NormalizePath(path)))
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed for %q: %w", path, err)
	}
	if value == nil {
		return nil, fmt.Errorf("path %q: %w", path, ErrNotFound)
	}
	return decodeProjection(value)
}

// LoadAll rebuilds the whole cache from the relational store.
func (s *PageService) LoadAll(ctx context.Context) (int, error) {
	return s.LoadAllFrom(ctx, 0)
}

// LoadAllFrom sweeps every page from the given offset onward, rebuilding
// each projection and pushing its path onto the latest-pages list. Each
// page's write is independent and idempotent: individual failures are
// logged and skipped, and re-running the sweep converges the cache. The
// returned count is the number of projections written.
func (s *PageService) LoadAllFrom(ctx context.Context, offset int) (int, error) {
	count := 0
	for {
		pages, err := s.repo.ListPages(ctx, offset, s.loadBatch)
		if err != nil {
			return count, fmt.Errorf("failed to list pages at offset %d: %w", offset, err)
		}
		if len(pages) == 0 {
			return count, nil
		}
		for _, page := range pages {
			tags, err := s.repo.GetTags(ctx, page.ID)
			if err != nil {
				s.log.Error(err, fmt.Sprintf("could not load tags for %q, caching without them", page.Path))
			}
			payload, err := newProjection(page, tags).encode()
			if err != nil {
				s.log.Error(err, fmt.Sprintf("skipping unencodable page %q", page.Path))
				continue
			}
			if err := s.cache.Set(pageKey(page.Path), payload); err != nil {
				s.log.Error(err, fmt.Sprintf("cache write failed for %q, continuing", page.Path))
				continue
			}
			if err := s.cache.ListPush(latestPagesKey, page.Path); err != nil {
				s.log.Error(err, fmt.Sprintf("latest-pages push failed for %q", page.Path))
			}
			count++
		}
		offset += len(pages)
	}
}

// PageRevisions returns a page's history, newest first. The page id is
// resolved through the relational store so history works even when the
// cache is cold.
func (s *PageService) PageRevisions(ctx context.Context, path string) ([]*data.Revision, error) {
	page, err := s.repo.GetPageByPath(ctx, NormalizePath(path))
	if err != nil {
		if errors.Is(err, data.ErrPageNotFound) {
			return nil, fmt.Errorf("path %q: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve page %q: %w", path, err)
	}
	return s.repo.GetRevisions(ctx, page.ID)
}

// LatestPages returns up to n recently reloaded paths, newest first.
func (s *PageService) LatestPages(n int) ([]string, error) {
	return s.cache.ListRange(latestPagesKey, n)
}

// TagPage replaces a page's tag set and refreshes its cached projection
// so readers see the new tags without waiting for the next edit.
func (s *PageService) TagPage(ctx context.Context, id int64, names []string) error {
	page, err := s.repo.GetPageByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrPageNotFound) {
			return fmt.Errorf("page id %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to load page %d: %w", id, err)
	}
	if err := s.repo.ReplaceTags(ctx, id, names); err != nil {
		return fmt.Errorf("failed to replace tags for page %d: %w", id, err)
	}

	payload, err := newProjection(page, names).encode()
	if err != nil {
		s.log.Error(err, fmt.Sprintf("skipping cache refresh for %q", page.Path))
		return nil
	}
	if err := s.cache.Set(pageKey(page.Path), payload); err != nil {
		s.log.Error(err, fmt.Sprintf("cache refresh failed for %q", page.Path))
	}
	return nil
}
