// Package middleware provides HTTP middleware for TestForge.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Strob0t/TestForge/internal/logger"
)

const headerRequestID = "X-Request-ID"

// maxRequestIDLen caps inbound request IDs. The ID is copied into log
// lines and queue message headers, so oversized or binary values from
// untrusted clients are replaced rather than propagated.
const maxRequestIDLen = 64

// RequestID is HTTP middleware that accepts a well-formed X-Request-ID
// from the request header or generates a fresh UUID. The ID is stored in
// the context, set on the response header, and carried through queue
// message headers by the publishing side.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID reports whether a client-supplied ID is safe to echo
// into headers and logs: non-empty, bounded, and limited to the
// characters trace tooling conventionally emits.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
