package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakwise/internal/delivery/http/helpers"
	"speakwise/internal/delivery/http/middleware"
	"speakwise/internal/domain"
	"speakwise/internal/importer"
)

type mockAttendanceService struct {
	importResult *domain.AttendanceImport
	importErr    error
	gotEventID   int64
	gotUpload    domain.AttendanceUpload
	gotContent   string

	list    []*domain.Attendance
	total   int
	listErr error
	gotPage domain.PaginationParams

	attendance *domain.Attendance
	getErr     error

	verified  []*domain.Attendance
	verifyErr error

	feedbackErr   error
	feedbackEmail string
}

func (m *mockAttendanceService) ImportAttendees(ctx context.Context, eventID int64, upload domain.AttendanceUpload) (*domain.AttendanceImport, error) {
	m.gotEventID = eventID
	m.gotUpload = upload
	if upload.File != nil {
		b, _ := io.ReadAll(upload.File)
		m.gotContent = string(b)
	}
	if m.importErr != nil {
		return nil, m.importErr
	}
	return m.importResult, nil
}

func (m *mockAttendanceService) ListEventAttendance(ctx context.Context, eventID int64, page domain.PaginationParams) ([]*domain.Attendance, int, error) {
	m.gotEventID = eventID
	m.gotPage = page
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.list, m.total, nil
}

func (m *mockAttendanceService) GetAttendance(ctx context.Context, id int64) (*domain.Attendance, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.attendance, nil
}

func (m *mockAttendanceService) VerifyAttendee(ctx context.Context, email string) ([]*domain.Attendance, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.verified, nil
}

func (m *mockAttendanceService) MarkFeedbackGiven(ctx context.Context, email string) error {
	m.feedbackEmail = email
	return m.feedbackErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type formFile struct {
	name, contentType, content string
}

func multipartRequest(t *testing.T, event string, file *formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if event != "" {
		require.NoError(t, mw.WriteField("event", event))
	}
	if file != nil {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, file.name)}
		h["Content-Type"] = []string{file.contentType}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/attendance", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(middleware.WithOrganizerID(req.Context(), "organizer-1"))
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, data any) *helpers.APIError {
	t.Helper()
	resp := struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if data != nil && resp.Error == nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.Error
}

func TestAttendanceController_ImportAttendance_Success(t *testing.T) {
	svc := &mockAttendanceService{importResult: &domain.AttendanceImport{
		Attendance: []*domain.Attendance{
			{ID: 1, EventID: 3, Email: "a@example.com", Username: "Alice"},
			{ID: 2, EventID: 3, Email: "b@example.com", Username: "Bob", IsGivenFeedback: true},
		},
		Created: 1,
	}}
	ctrl := NewAttendanceController(testLogger(), svc, 0)

	req := multipartRequest(t, "3", &formFile{name: "list.csv", contentType: "text/csv", content: "email\na@example.com\n"})
	w := httptest.NewRecorder()
	ctrl.ImportAttendance(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var got []AttendeeResponse
	require.Nil(t, decodeResponse(t, w, &got))
	assert.Equal(t, []AttendeeResponse{
		{Username: "Alice", Email: "a@example.com"},
		{Username: "Bob", Email: "b@example.com", IsGivenFeedback: true},
	}, got)
	assert.Equal(t, int64(3), svc.gotEventID)
	assert.Equal(t, "list.csv", svc.gotUpload.Filename)
	assert.Equal(t, "text/csv", svc.gotUpload.ContentType)
	assert.Equal(t, int64(len("email\na@example.com\n")), svc.gotUpload.Size)
	assert.Equal(t, "email\na@example.com\n", svc.gotContent)
}

func TestAttendanceController_ImportAttendance_Errors(t *testing.T) {
	csv := &formFile{name: "list.csv", contentType: "text/csv", content: "email\nbad\n"}

	tests := []struct {
		name       string
		event      string
		file       *formFile
		serviceErr error
		noUser     bool
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{name: "unauthorized", event: "3", file: csv, noUser: true, wantStatus: http.StatusUnauthorized, wantCode: helpers.ErrCodeUnauthorized},
		{name: "missing event", file: csv, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest, wantMsg: "event is required"},
		{name: "invalid event", event: "abc", file: csv, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest, wantMsg: "invalid event"},
		{name: "missing file", event: "3", wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest, wantMsg: importer.ErrNoFileProvided.Error()},
		{name: "unknown event", event: "3", file: csv, serviceErr: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: helpers.ErrCodeNotFound},
		{
			name: "validation error carries the detail", event: "3", file: csv,
			serviceErr: &importer.Error{Kind: importer.KindValidation, Err: importer.ErrInvalidEmail, Value: "bad", Row: 2},
			wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest, wantMsg: `"bad"`,
		},
		{
			name: "persistence error is a server error", event: "3", file: csv,
			serviceErr: &importer.Error{Kind: importer.KindPersistence, Err: importer.ErrPersistence, Cause: errors.New("connection refused")},
			wantStatus: http.StatusInternalServerError, wantCode: helpers.ErrCodeInternalError,
		},
		{name: "unexpected error", event: "3", file: csv, serviceErr: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: helpers.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAttendanceService{importErr: tt.serviceErr, importResult: &domain.AttendanceImport{}}
			ctrl := NewAttendanceController(testLogger(), svc, 0)

			req := multipartRequest(t, tt.event, tt.file)
			if tt.noUser {
				req = req.WithContext(context.Background())
			}
			w := httptest.NewRecorder()
			ctrl.ImportAttendance(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			apiErr := decodeResponse(t, w, nil)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			if tt.wantMsg != "" {
				assert.Contains(t, apiErr.Message, tt.wantMsg)
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, apiErr.Message, "connection refused")
			}
		})
	}
}

func TestAttendanceController_ImportAttendance_BodyTooLarge(t *testing.T) {
	svc := &mockAttendanceService{}
	ctrl := NewAttendanceController(testLogger(), svc, 16)

	big := strings.Repeat("a", multipartOverhead+64)
	req := multipartRequest(t, "3", &formFile{name: "list.csv", contentType: "text/csv", content: big})
	w := httptest.NewRecorder()
	ctrl.ImportAttendance(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decodeResponse(t, w, nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, importer.ErrFileTooLarge.Error(), apiErr.Message)
	assert.Zero(t, svc.gotEventID, "service must not be called")
}

func TestAttendanceController_ListEventAttendance(t *testing.T) {
	svc := &mockAttendanceService{list: []*domain.Attendance{{ID: 1, EventID: 3, Email: "a@example.com"}}, total: 21}
	ctrl := NewAttendanceController(testLogger(), svc, 0)

	req := httptest.NewRequest(http.MethodGet, "/events/3/attendance?page=2&page_size=10", nil)
	req.SetPathValue("eventID", "3")
	req = req.WithContext(middleware.WithOrganizerID(req.Context(), "organizer-1"))
	w := httptest.NewRecorder()
	ctrl.ListEventAttendance(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got ListEventAttendanceResponse
	require.Nil(t, decodeResponse(t, w, &got))
	assert.Len(t, got.Items, 1)
	assert.Equal(t, helpers.PaginationMeta{Page: 2, PageSize: 10, Total: 21, TotalPages: 3, HasNext: true}, got.Pagination)
	assert.Equal(t, int64(3), svc.gotEventID)
}

func TestAttendanceController_ListEventAttendance_Errors(t *testing.T) {
	tests := []struct {
		name       string
		eventID    string
		query      string
		noUser     bool
		serviceErr error
		wantStatus int
	}{
		{name: "invalid event id", eventID: "x", wantStatus: http.StatusBadRequest},
		{name: "invalid page", eventID: "3", query: "?page=0", wantStatus: http.StatusBadRequest},
		{name: "unauthorized", eventID: "3", noUser: true, wantStatus: http.StatusUnauthorized},
		{name: "unknown event", eventID: "3", serviceErr: domain.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "repository failure", eventID: "3", serviceErr: errors.New("timeout"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewAttendanceController(testLogger(), &mockAttendanceService{listErr: tt.serviceErr}, 0)
			req := httptest.NewRequest(http.MethodGet, "/events/"+tt.eventID+"/attendance"+tt.query, nil)
			req.SetPathValue("eventID", tt.eventID)
			if !tt.noUser {
				req = req.WithContext(middleware.WithOrganizerID(req.Context(), "organizer-1"))
			}
			w := httptest.NewRecorder()
			ctrl.ListEventAttendance(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAttendanceController_GetAttendance(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		svc        *mockAttendanceService
		wantStatus int
	}{
		{name: "found", id: "5", svc: &mockAttendanceService{attendance: &domain.Attendance{ID: 5}}, wantStatus: http.StatusOK},
		{name: "not found", id: "5", svc: &mockAttendanceService{getErr: domain.ErrNotFound}, wantStatus: http.StatusNotFound},
		{name: "invalid id", id: "-1", svc: &mockAttendanceService{}, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewAttendanceController(testLogger(), tt.svc, 0)
			req := httptest.NewRequest(http.MethodGet, "/attendance/"+tt.id, nil)
			req.SetPathValue("attendanceID", tt.id)
			req = req.WithContext(middleware.WithOrganizerID(req.Context(), "organizer-1"))
			w := httptest.NewRecorder()
			ctrl.GetAttendance(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				var got domain.Attendance
				require.Nil(t, decodeResponse(t, w, &got))
				assert.Equal(t, int64(5), got.ID)
			}
		})
	}
}

func TestAttendanceController_VerifyAttendee(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svc        *mockAttendanceService
		wantStatus int
		wantMsg    string
	}{
		{name: "verified", body: `{"email":"a@example.com"}`, svc: &mockAttendanceService{verified: []*domain.Attendance{{ID: 1, IsVerified: true}}}, wantStatus: http.StatusOK},
		{name: "missing email", body: `{"email":" "}`, svc: &mockAttendanceService{}, wantStatus: http.StatusBadRequest, wantMsg: "email is required"},
		{name: "unknown attendee", body: `{"email":"a@example.com"}`, svc: &mockAttendanceService{verifyErr: domain.ErrNotFound}, wantStatus: http.StatusNotFound},
		{name: "feedback already given", body: `{"email":"a@example.com"}`, svc: &mockAttendanceService{verifyErr: domain.ErrFeedbackAlreadyGiven}, wantStatus: http.StatusBadRequest, wantMsg: domain.ErrFeedbackAlreadyGiven.Error()},
		{name: "malformed email", body: `{"email":"nope"}`, svc: &mockAttendanceService{verifyErr: fmt.Errorf("%w: malformed address", domain.ErrInvalidInput)}, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewAttendanceController(testLogger(), tt.svc, 0)
			req := httptest.NewRequest(http.MethodPost, "/attendance/verify", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			ctrl.VerifyAttendee(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantMsg != "" {
				apiErr := decodeResponse(t, w, nil)
				require.NotNil(t, apiErr)
				assert.Contains(t, apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestAttendanceController_MarkFeedbackGiven(t *testing.T) {
	svc := &mockAttendanceService{}
	ctrl := NewAttendanceController(testLogger(), svc, 0)

	req := httptest.NewRequest(http.MethodPost, "/attendance/feedback", strings.NewReader(`{"email":" a@example.com "}`))
	w := httptest.NewRecorder()
	ctrl.MarkFeedbackGiven(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got MarkFeedbackGivenResponse
	require.Nil(t, decodeResponse(t, w, &got))
	assert.Equal(t, MarkFeedbackGivenResponse{Email: "a@example.com", IsGivenFeedback: true}, got)
	assert.Equal(t, "a@example.com", svc.feedbackEmail)

	svc.feedbackErr = domain.ErrNotFound
	w = httptest.NewRecorder()
	ctrl.MarkFeedbackGiven(w, httptest.NewRequest(http.MethodPost, "/attendance/feedback", strings.NewReader(`{"email":"a@example.com"}`)))
	require.Equal(t, http.StatusNotFound, w.Code)
}
