package middleware

import (
	"context"
	"net/http"
	"strconv"
)

// contextKey defines a custom type for context keys to avoid collisions.
type contextKey string

const writerContextKey = contextKey("writer")

// WriterHeader carries the authenticated user id supplied by the external
// auth subsystem. The service trusts this id without re-validating it.
const WriterHeader = "X-Writer-Id"

// Writer extracts the writer id from the request header and stores it on
// the context for the handlers.
func Writer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := strconv.ParseInt(r.Header.Get(WriterHeader), 10, 64); err == nil && id > 0 {
			r = r.WithContext(SetWriterID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// GetWriterID retrieves the writer id from the request context. A zero id
// means the request carried no identity.
func GetWriterID(ctx context.Context) int64 {
	if id, ok := ctx.Value(writerContextKey).(int64); ok {
		return id
	}
	return 0
}

// SetWriterID adds the writer id to the request context.
func SetWriterID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, writerContextKey, id)
}
