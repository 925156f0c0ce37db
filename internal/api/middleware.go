package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"chesed/internal/session"
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// AuthMiddleware verifies the bearer token and stores the session in the
// request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized: missing bearer token")
			return
		}
		sess, err := h.deps.Auth.Authenticate(r.Context(), token)
		if err != nil {
			if statusFor(err) == http.StatusUnauthorized {
				h.logger.Debug("rejected token", zap.Error(err))
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: invalid or expired token")
				return
			}
			h.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// VolunteerMiddleware admits signed-in, non-anonymous users.
func VolunteerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok || sess.UserID == "" {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if sess.Anonymous {
			writeJSONError(w, http.StatusForbidden, "Forbidden: sign in with an account to take deliveries")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminMiddleware admits admins only.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok || sess.UserID == "" {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !sess.IsAdmin {
			writeJSONError(w, http.StatusForbidden, "Forbidden: admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
