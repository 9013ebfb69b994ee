package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/blockstudio/server/internal/server/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// authenticate verifies the bearer session token and stores the caller's
// external user id in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := auth.GetUserIDFromToken(token, []byte(s.cfg.SecretKey))
		if err != nil {
			s.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerID returns the external user id the auth middleware stored.
func callerID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
