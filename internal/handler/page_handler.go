package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"slatewiki/internal/data"
	"slatewiki/internal/logger"
	"slatewiki/internal/middleware"
	"slatewiki/internal/service"

	"github.com/go-chi/chi/v5"
)

// PageHandler holds the dependencies for the page handlers.
type PageHandler struct {
	pageService service.PageServicer
	log         logger.Logger
}

// NewPageHandler creates a new PageHandler with the given dependencies.
func NewPageHandler(ps service.PageServicer, log logger.Logger) *PageHandler {
	return &PageHandler{
		pageService: ps,
		log:         log,
	}
}

// savePageRequest is the body for create and update calls.
type savePageRequest struct {
	Title   string   `json:"title"`
	RawText string   `json:"rawtext"`
	Format  int      `json:"format,omitempty"`
	Why     string   `json:"why,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// saveResponse reports the committed page state and the phase-2 outcome.
type saveResponse struct {
	ID      int64  `json:"id"`
	Path    string `json:"path"`
	Version int64  `json:"version"`
	NoOp    bool   `json:"noop,omitempty"`
	Cache   bool   `json:"cache"`
	Queue   bool   `json:"queue"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// viewHandler serves a page's cached projection.
func (h *PageHandler) viewHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	path := chi.URLParam(r, "*")
	page, err := h.pageService.FindPage(path)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return &middleware.AppError{Error: err, Message: "Page not found", Code: http.StatusNotFound}
		}
		return &middleware.AppError{Error: err, Message: "Failed to read page", Code: http.StatusInternalServerError}
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

// createHandler creates a new page at the request path.
func (h *PageHandler) createHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	writerID := middleware.GetWriterID(r.Context())
	if writerID == 0 {
		return &middleware.AppError{Error: errors.New("missing writer id"), Message: "Writer identity required", Code: http.StatusUnauthorized}
	}

	var req savePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}

	path := chi.URLParam(r, "*")
	page, prop, err := h.pageService.CreatePage(r.Context(), path, req.Title, req.RawText, data.Format(req.Format), writerID)
	if err != nil {
		if errors.Is(err, service.ErrPageExists) {
			return &middleware.AppError{Error: err, Message: "Page already exists", Code: http.StatusConflict}
		}
		return &middleware.AppError{Error: err, Message: "Failed to create page", Code: http.StatusInternalServerError}
	}

	if len(req.Tags) > 0 {
		if err := h.pageService.TagPage(r.Context(), page.ID, req.Tags); err != nil {
			h.log.Error(err, "Failed to tag new page")
		}
	}

	writeJSON(w, http.StatusCreated, saveResponse{
		ID:      page.ID,
		Path:    page.Path,
		Version: page.Version,
		Cache:   prop.CacheErr == nil,
		Queue:   prop.QueueErr == nil,
	})
	return nil
}

// updateHandler applies an edit to an existing page by id.
func (h *PageHandler) updateHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	writerID := middleware.GetWriterID(r.Context())
	if writerID == 0 {
		return &middleware.AppError{Error: errors.New("missing writer id"), Message: "Writer identity required", Code: http.StatusUnauthorized}
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid page id", Code: http.StatusBadRequest}
	}

	var req savePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}

	page, prop, err := h.pageService.UpdatePage(r.Context(), id, req.Title, req.RawText, req.Why, writerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return &middleware.AppError{Error: err, Message: "Page not found", Code: http.StatusNotFound}
		case errors.Is(err, service.ErrConflict):
			return &middleware.AppError{Error: err, Message: "Page was modified concurrently, retry", Code: http.StatusConflict}
		default:
			return &middleware.AppError{Error: err, Message: "Failed to update page", Code: http.StatusInternalServerError}
		}
	}

	writeJSON(w, http.StatusOK, saveResponse{
		ID:      page.ID,
		Path:    page.Path,
		Version: page.Version,
		NoOp:    prop.Skipped,
		Cache:   prop.CacheErr == nil,
		Queue:   prop.QueueErr == nil,
	})
	return nil
}

// historyHandler lists a page's revisions, newest first.
func (h *PageHandler) historyHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	path := chi.URLParam(r, "*")
	revs, err := h.pageService.PageRevisions(r.Context(), path)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return &middleware.AppError{Error: err, Message: "Page not found", Code: http.StatusNotFound}
		}
		return &middleware.AppError{Error: err, Message: "Failed to read history", Code: http.StatusInternalServerError}
	}
	writeJSON(w, http.StatusOK, revs)
	return nil
}

// latestHandler lists recently reloaded page paths.
func (h *PageHandler) latestHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	n := 20
	if arg := r.URL.Query().Get("n"); arg != "" {
		if parsed, err := strconv.Atoi(arg); err == nil && parsed > 0 {
			n = parsed
		}
	}
	paths, err := h.pageService.LatestPages(n)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to list latest pages", Code: http.StatusInternalServerError}
	}
	writeJSON(w, http.StatusOK, paths)
	return nil
}

// reloadHandler rebuilds the whole read cache from the relational store.
func (h *PageHandler) reloadHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	count, err := h.pageService.LoadAll(r.Context())
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Cache reload failed", Code: http.StatusInternalServerError}
	}
	writeJSON(w, http.StatusOK, map[string]int{"reloaded": count})
	return nil
}
