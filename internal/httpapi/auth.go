package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"neoncode/backend/internal/models"
	"neoncode/backend/internal/store"
)

type authContextKey struct{}

// AuthMiddleware resolves the session token before any handler runs. It is
// the single authorization choke point; handlers read the session from the
// request context and never resolve tokens themselves.
//
// The token travels as the raw Authorization header value, compared literally
// (no "Bearer " prefix), matching the clients this API serves.
func AuthMiddleware(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
				return
			}

			session, err := st.GetSession(r.Context(), token)
			if err != nil {
				if errors.Is(err, store.ErrSessionNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
					return
				}
				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) (models.Session, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return models.Session{}, false
	}
	session, ok := value.(models.Session)
	if !ok {
		return models.Session{}, false
	}
	return session, true
}
