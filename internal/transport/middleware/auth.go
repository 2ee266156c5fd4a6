package middleware

import (
	"net/http"
	"strings"
)

// QueryToken copies ?token= into the Authorization header when the header is
// absent. Browsers cannot set headers on a websocket handshake, so the push
// channel authenticates this way.
func QueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}
