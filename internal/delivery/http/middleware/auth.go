package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	h "speakwise/internal/delivery/http/helpers"
	"speakwise/internal/domain"
)

type contextKey string

const organizerIDKey contextKey = "organizerID"

// WithOrganizerID returns ctx carrying the id of the authenticated organizer.
func WithOrganizerID(ctx context.Context, organizerID string) context.Context {
	return context.WithValue(ctx, organizerIDKey, organizerID)
}

// OrganizerIDFromContext returns the organizer authenticated by RequireAuth.
func OrganizerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(organizerIDKey).(string)
	return id, ok && id != ""
}

// RequireAuth guards the organizer endpoints (import, listing, lookup). It
// accepts "Authorization: Bearer <token>" with the scheme in any case and
// answers 401 with a WWW-Authenticate challenge otherwise.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				unauthorized(w, "", "missing authorization header")
				return
			}
			scheme, token, _ := strings.Cut(auth, " ")
			if !strings.EqualFold(scheme, "Bearer") {
				unauthorized(w, "", "invalid authorization format")
				return
			}
			token = strings.TrimSpace(token)
			if token == "" {
				unauthorized(w, "invalid_request", "missing token")
				return
			}
			organizerID, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "organizer token rejected",
					"path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "err", err)
				unauthorized(w, "invalid_token", "invalid or expired token")
				return
			}
			next(w, r.WithContext(WithOrganizerID(r.Context(), organizerID)))
		}
	}
}

func unauthorized(w http.ResponseWriter, challengeErr, message string) {
	challenge := `Bearer realm="speakwise"`
	if challengeErr != "" {
		challenge += `, error="` + challengeErr + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, message)
}
