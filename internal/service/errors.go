package service

import "errors"

var (
	// ErrNotFound means no page exists for the given id or path.
	ErrNotFound = errors.New("page not found")

	// ErrPageExists means a create targeted a path that already has a page.
	ErrPageExists = errors.New("page already exists")

	// ErrConflict means an update lost the optimistic-concurrency check:
	// the page was modified after the caller read it. Retry with fresh
	// state.
	ErrConflict = errors.New("page version conflict")
)
