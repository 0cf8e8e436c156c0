package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"speakwise/internal/delivery/http/helpers"
	"speakwise/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenVerifier implements domain.TokenVerifier for tests.
type fakeTokenVerifier struct {
	userID string
	err    error
}

func (f *fakeTokenVerifier) Verify(_ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.userID, nil
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	tests := []struct {
		name          string
		authHeader    string
		verifier      domain.TokenVerifier
		wantStatus    int
		wantChallenge string
		nextCalled    bool
		wantContextID string
	}{
		{
			name:          "valid token sets organizer and calls next",
			authHeader:    "Bearer valid-token",
			verifier:      &fakeTokenVerifier{userID: "organizer-123"},
			wantStatus:    http.StatusOK,
			nextCalled:    true,
			wantContextID: "organizer-123",
		},
		{
			name:          "scheme is case insensitive",
			authHeader:    "bearer valid-token",
			verifier:      &fakeTokenVerifier{userID: "organizer-123"},
			wantStatus:    http.StatusOK,
			nextCalled:    true,
			wantContextID: "organizer-123",
		},
		{
			name:          "missing authorization header",
			authHeader:    "",
			verifier:      &fakeTokenVerifier{userID: "organizer-123"},
			wantStatus:    http.StatusUnauthorized,
			wantChallenge: `Bearer realm="speakwise"`,
		},
		{
			name:          "basic scheme",
			authHeader:    "Basic abc",
			verifier:      &fakeTokenVerifier{userID: "organizer-123"},
			wantStatus:    http.StatusUnauthorized,
			wantChallenge: `Bearer realm="speakwise"`,
		},
		{
			name:          "empty token after Bearer",
			authHeader:    "Bearer ",
			verifier:      &fakeTokenVerifier{userID: "organizer-123"},
			wantStatus:    http.StatusUnauthorized,
			wantChallenge: `Bearer realm="speakwise", error="invalid_request"`,
		},
		{
			name:          "verifier returns error",
			authHeader:    "Bearer bad-token",
			verifier:      &fakeTokenVerifier{err: errors.New("token is expired")},
			wantStatus:    http.StatusUnauthorized,
			wantChallenge: `Bearer realm="speakwise", error="invalid_token"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			var capturedID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				if id, ok := OrganizerIDFromContext(r.Context()); ok {
					capturedID = id
				}
				w.WriteHeader(http.StatusOK)
			})
			handler := RequireAuth(tt.verifier, logger)(next)

			req := httptest.NewRequest(http.MethodGet, "http://test/attendance", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			handler(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, "status code")
			assert.Equal(t, tt.nextCalled, nextCalled, "next handler called")
			if tt.nextCalled {
				assert.Equal(t, tt.wantContextID, capturedID, "organizer ID in context")
				return
			}
			assert.Equal(t, tt.wantChallenge, rr.Header().Get("WWW-Authenticate"))
			var envelope helpers.APIResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
			require.NotNil(t, envelope.Error)
			assert.Equal(t, helpers.ErrCodeUnauthorized, envelope.Error.Code)
		})
	}
}

func TestOrganizerIDFromContext_Empty(t *testing.T) {
	_, ok := OrganizerIDFromContext(WithOrganizerID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), ""))
	assert.False(t, ok)
}
