package service

import (
	"encoding/json"
	"fmt"

	"slatewiki/internal/data"
)

const (
	pageKeyPrefix  = "page:"
	latestPagesKey = "latestpages"

	// updatedLayout is the fixed text form of the projection timestamp.
	updatedLayout = "2006-01-02 15:04:05"
)

// Projection is the denormalized, cache-friendly representation of a page
// used for fast reads. It is rebuilt whole on every successful write and
// on bulk reload, never patched in place.
type Projection struct {
	Title   string   `json:"title"`
	RawText string   `json:"rawtext"`
	HTML    string   `json:"html"`
	PageID  int64    `json:"page_id"`
	Writer  int64    `json:"writer"`
	Updated string   `json:"updated"`
	Path    string   `json:"path"`
	Tags    []string `json:"tags,omitempty"`
}

// pageKey derives the cache key for a page path.
func pageKey(path string) string {
	return pageKeyPrefix + path
}

// newProjection builds the cache record for a page.
func newProjection(page *data.Page, tags []string) *Projection {
	return &Projection{
		Title:   page.Title,
		RawText: page.Data,
		HTML:    page.HTML,
		PageID:  page.ID,
		Writer:  page.Writer,
		Updated: page.Updated.Format(updatedLayout),
		Path:    page.Path,
		Tags:    tags,
	}
}

// encode serializes the projection for the cache and the queue.
func (p *Projection) encode() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode projection for %q: %w", p.Path, err)
	}
	return b, nil
}

// decodeProjection parses a cached projection value.
func decodeProjection(b []byte) (*Projection, error) {
	var p Projection
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("failed to decode projection: %w", err)
	}
	return &p, nil
}
