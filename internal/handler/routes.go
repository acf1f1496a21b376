package handler

import (
	"net/http"

	appmw "slatewiki/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures a new chi router.
func NewRouter(pageHandler *PageHandler, errorMW func(appmw.AppHandler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Writer identity arrives from the external auth subsystem.
	r.Use(appmw.Writer)

	r.Method(http.MethodGet, "/latest", errorMW(pageHandler.latestHandler))
	r.Method(http.MethodPost, "/admin/reload", errorMW(pageHandler.reloadHandler))
	r.Method(http.MethodGet, "/history/*", errorMW(pageHandler.historyHandler))
	r.Method(http.MethodPut, "/page/{id:[0-9]+}", errorMW(pageHandler.updateHandler))
	r.Method(http.MethodGet, "/page/*", errorMW(pageHandler.viewHandler))
	r.Method(http.MethodPost, "/page/*", errorMW(pageHandler.createHandler))

	return r
}
