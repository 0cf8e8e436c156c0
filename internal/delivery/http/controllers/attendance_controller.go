package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"speakwise/internal/delivery/http/helpers"
	"speakwise/internal/delivery/http/middleware"
	"speakwise/internal/domain"
	"speakwise/internal/importer"
)

const (
	// multipartOverhead is the slack allowed on top of the file size for
	// boundaries, part headers and the event field.
	multipartOverhead = 1 << 20
	// multipartMemory is how much of a multipart body is kept in memory before
	// the parser spills to disk.
	multipartMemory = 1 << 20
)

type AttendanceController struct {
	Logger         *slog.Logger
	Service        domain.AttendanceService
	MaxUploadBytes int64
}

func NewAttendanceController(logger *slog.Logger, svc domain.AttendanceService, maxUploadBytes int64) *AttendanceController {
	if maxUploadBytes <= 0 {
		maxUploadBytes = importer.DefaultMaxUploadBytes
	}
	return &AttendanceController{
		Logger:         logger,
		Service:        svc,
		MaxUploadBytes: maxUploadBytes,
	}
}

// AttendeeResponse is one attendee of an event as returned by the import endpoint.
type AttendeeResponse struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	IsGivenFeedback bool   `json:"is_given_feedback"`
}

// ImportAttendanceSuccessResponse is the success response envelope for POST /attendance (201).
type ImportAttendanceSuccessResponse struct {
	Data  []AttendeeResponse `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// ImportAttendance godoc
// @Summary Import an attendee list
// @Description Uploads a CSV or XLSX attendee list for an event. The email column is detected from the headers; a name column is optional. Emails already recorded for the event are skipped. The whole file is rejected on the first invalid email. Returns every attendee of the event after the import.
// @Tags attendance
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Attendee list (.csv or .xlsx)"
// @Param event formData int true "Event ID"
// @Success 201 {object} controllers.ImportAttendanceSuccessResponse "data contains the event attendance"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance [post]
func (c *AttendanceController) ImportAttendance(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.OrganizerIDFromContext(r.Context()); !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, c.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, importer.ErrFileTooLarge.Error())
			return
		}
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			c.Logger.WarnContext(r.Context(), "remove multipart files", "err", err)
		}
	}()

	rawEvent := strings.TrimSpace(r.FormValue("event"))
	if rawEvent == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "event is required")
		return
	}
	eventID, ok := parseID(rawEvent)
	if !ok {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid event")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, importer.ErrNoFileProvided.Error())
		return
	}
	defer file.Close()

	result, err := c.Service.ImportAttendees(r.Context(), eventID, domain.AttendanceUpload{
		File:        file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		var importErr *importer.Error
		if errors.As(err, &importErr) && importErr.Kind.IsClientError() {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, importErr.Error())
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "attendee import failed")
		return
	}

	attendees := make([]AttendeeResponse, 0, len(result.Attendance))
	for _, a := range result.Attendance {
		attendees = append(attendees, AttendeeResponse{
			Username:        a.Username,
			Email:           a.Email,
			IsGivenFeedback: a.IsGivenFeedback,
		})
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, attendees)
}

// ListEventAttendanceResponse is the response body for GET /events/{eventID}/attendance.
type ListEventAttendanceResponse struct {
	Items      []*domain.Attendance   `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListEventAttendanceSuccessResponse is the success response envelope for GET /events/{eventID}/attendance (200).
type ListEventAttendanceSuccessResponse struct {
	Data  ListEventAttendanceResponse `json:"data"`
	Error *helpers.APIError           `json:"error"`
}

// ListEventAttendance godoc
// @Summary List the attendance of an event
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param eventID path int true "Event ID"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 50, max 500)"
// @Success 200 {object} controllers.ListEventAttendanceSuccessResponse "data contains items and pagination"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/attendance [get]
func (c *AttendanceController) ListEventAttendance(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseID(r.PathValue("eventID"))
	if !ok {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid eventID")
		return
	}
	if _, ok := middleware.OrganizerIDFromContext(r.Context()); !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	params, err := helpers.ParsePagination(r)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	list, total, err := c.Service.ListEventAttendance(r.Context(), eventID, params)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	if list == nil {
		list = []*domain.Attendance{}
	}
	meta := helpers.NewPaginationMeta(params, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListEventAttendanceResponse{Items: list, Pagination: meta})
}

// AttendanceSuccessResponse is the success response envelope for a single attendance row (200).
type AttendanceSuccessResponse struct {
	Data  *domain.Attendance `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// GetAttendance godoc
// @Summary Get an attendance row
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param attendanceID path int true "Attendance ID"
// @Success 200 {object} controllers.AttendanceSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/{attendanceID} [get]
func (c *AttendanceController) GetAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.PathValue("attendanceID"))
	if !ok {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid attendanceID")
		return
	}
	if _, ok := middleware.OrganizerIDFromContext(r.Context()); !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	a, err := c.Service.GetAttendance(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "attendance not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, a)
}

// AttendeeEmailRequest is the request body for POST /attendance/verify and POST /attendance/feedback.
// Syntax and canonical form are checked by the service.
type AttendeeEmailRequest struct {
	Email string `json:"email" validate:"required,max=320"`
}

// Normalize implements helpers.Normalizer.
func (req *AttendeeEmailRequest) Normalize() {
	req.Email = strings.TrimSpace(req.Email)
}

// VerifyAttendeeSuccessResponse is the success response envelope for POST /attendance/verify (200).
type VerifyAttendeeSuccessResponse struct {
	Data  []*domain.Attendance `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// VerifyAttendee godoc
// @Summary Verify an attendee by email
// @Description Marks every attendance of the email as verified so the attendee can leave feedback. Fails when the attendee already gave feedback.
// @Tags attendance
// @Accept json
// @Produce json
// @Param body body controllers.AttendeeEmailRequest true "Attendee email"
// @Success 200 {object} controllers.VerifyAttendeeSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/verify [post]
func (c *AttendanceController) VerifyAttendee(w http.ResponseWriter, r *http.Request) {
	var req AttendeeEmailRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	rows, err := c.Service.VerifyAttendee(r.Context(), req.Email)
	if err != nil {
		c.writeAttendeeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, rows)
}

// MarkFeedbackGivenResponse is the response body for POST /attendance/feedback.
type MarkFeedbackGivenResponse struct {
	Email           string `json:"email"`
	IsGivenFeedback bool   `json:"is_given_feedback"`
}

// MarkFeedbackGivenSuccessResponse is the success response envelope for POST /attendance/feedback (200).
type MarkFeedbackGivenSuccessResponse struct {
	Data  MarkFeedbackGivenResponse `json:"data"`
	Error *helpers.APIError         `json:"error"`
}

// MarkFeedbackGiven godoc
// @Summary Record that an attendee gave feedback
// @Tags attendance
// @Accept json
// @Produce json
// @Param body body controllers.AttendeeEmailRequest true "Attendee email"
// @Success 200 {object} controllers.MarkFeedbackGivenSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendance/feedback [post]
func (c *AttendanceController) MarkFeedbackGiven(w http.ResponseWriter, r *http.Request) {
	var req AttendeeEmailRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := c.Service.MarkFeedbackGiven(r.Context(), req.Email); err != nil {
		c.writeAttendeeError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, MarkFeedbackGivenResponse{Email: req.Email, IsGivenFeedback: true})
}

func (c *AttendanceController) writeAttendeeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrFeedbackAlreadyGiven):
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "attendee not found")
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
	}
}

// parseID parses a positive int64 identifier.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
