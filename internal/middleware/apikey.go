package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// publicPaths are exempt from API key authentication. Health probes and
// the A2A discovery document must stay reachable without credentials.
var publicPaths = map[string]bool{
	"/health":                 true,
	"/health/ready":           true,
	"/.well-known/agent.json": true,
}

// APIKeyAuth returns middleware that validates the X-API-Key header
// against the configured bcrypt hashes. When enabled is false, all
// requests pass through untouched.
func APIKeyAuth(enabled bool, keyHashes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			if publicPaths[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/ws") {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}

			for _, hash := range keyHashes {
				if bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
		})
	}
}
