package httpapi

import (
	"net/http"
	"strings"
)

// authenticate decorates next with bearer-token validation, the same
// "authenticating handler wraps the real handler" shape as the teacher's
// pkg/http/server/authenticating_handler.go (there a NewAuthenticatingHandler
// wraps an http.Handler with an Authenticator and maps its error to a
// status code; here the decorator is a HandlerFunc wrapper to match the
// rest of this package's per-route composition). If the server was
// constructed with a nil token repository, or the repository is currently
// empty, authentication is disabled entirely ("RS_API_TOKEN — bootstrap
// token (empty disables auth)").
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.tokens == nil || s.tokens.Empty() {
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := s.tokens.Validate(strings.TrimPrefix(header, prefix)); err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
