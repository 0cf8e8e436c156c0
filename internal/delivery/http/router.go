package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"speakwise/internal/delivery/http/controllers"
	"speakwise/internal/delivery/http/middleware"
	"speakwise/internal/domain"
)

// RouterConfig holds what NewRouter needs besides the controllers.
type RouterConfig struct {
	Logger         *slog.Logger
	TokenVerifier  domain.TokenVerifier
	AllowedOrigins []string
}

// NewRouter initializes the HTTP router with all application routes, wrapped
// in CORS and request logging.
func NewRouter(cfg RouterConfig, attendanceController *controllers.AttendanceController) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(cfg.TokenVerifier, cfg.Logger)

	// Organizer routes
	mux.HandleFunc("POST /attendance", auth(attendanceController.ImportAttendance))
	mux.HandleFunc("GET /events/{eventID}/attendance", auth(attendanceController.ListEventAttendance))
	mux.HandleFunc("GET /attendance/{attendanceID}", auth(attendanceController.GetAttendance))

	// Attendee routes
	mux.HandleFunc("POST /attendance/verify", attendanceController.VerifyAttendee)
	mux.HandleFunc("POST /attendance/feedback", attendanceController.MarkFeedbackGiven)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return middleware.LoggingMiddleware(cfg.Logger, middleware.CORS(cfg.AllowedOrigins, mux))
}
