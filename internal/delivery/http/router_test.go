package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakwise/internal/delivery/http/controllers"
	"speakwise/internal/domain"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) {
	if token == "good" {
		return "organizer-1", nil
	}
	return "", domain.ErrInvalidToken
}

type stubService struct {
	domain.AttendanceService
}

func (stubService) GetAttendance(ctx context.Context, id int64) (*domain.Attendance, error) {
	return &domain.Attendance{ID: id}, nil
}

func (stubService) MarkFeedbackGiven(ctx context.Context, email string) error {
	return errors.New("unavailable")
}

func TestNewRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := controllers.NewAttendanceController(logger, stubService{}, 0)
	router := NewRouter(RouterConfig{Logger: logger, TokenVerifier: stubVerifier{}, AllowedOrigins: []string{"https://app.example.com"}}, ctrl)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
	}{
		{name: "organizer route requires a token", method: http.MethodGet, path: "/attendance/5", wantStatus: http.StatusUnauthorized},
		{name: "organizer route rejects bad token", method: http.MethodGet, path: "/attendance/5", token: "bad", wantStatus: http.StatusUnauthorized},
		{name: "organizer route with token", method: http.MethodGet, path: "/attendance/5", token: "good", wantStatus: http.StatusOK},
		{name: "attendee route is public", method: http.MethodPost, path: "/attendance/feedback", body: `{"email":"a@example.com"}`, wantStatus: http.StatusInternalServerError},
		{name: "health", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusNoContent},
		{name: "wrong method", method: http.MethodDelete, path: "/attendance/5", token: "good", wantStatus: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			req.Header.Set("Origin", "https://app.example.com")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
