package domain

import (
	"context"
	"io"
	"time"
)

// Attendance links one canonical email to one event. (EventID, Email) is unique.
// swagger:model Attendance
type Attendance struct {
	ID              int64     `json:"id"`
	EventID         int64     `json:"event_id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	CheckedInAt     time.Time `json:"checked_in_at"`
	IsVerified      bool      `json:"is_verified"`
	IsGivenFeedback bool      `json:"is_given_feedback"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewAttendance returns an unsaved Attendance for the given event and canonical email.
func NewAttendance(eventID int64, email, username string, checkedInAt time.Time) *Attendance {
	return &Attendance{
		EventID:     eventID,
		Email:       email,
		Username:    username,
		CheckedInAt: checkedInAt,
		CreatedAt:   checkedInAt,
	}
}

// AttendanceRepository defines storage operations for attendance rows.
type AttendanceRepository interface {
	// FindExistingEmails returns the subset of emails already recorded for the event.
	FindExistingEmails(ctx context.Context, eventID int64, emails []string) (map[string]struct{}, error)
	// BulkInsert writes rows in one transaction, batchSize rows per statement.
	// Rows conflicting on (event_id, email) are ignored; the emails actually inserted are returned.
	BulkInsert(ctx context.Context, rows []*Attendance, batchSize int) ([]string, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*Attendance, error)
	ListByEventPage(ctx context.Context, eventID int64, page PaginationParams) ([]*Attendance, int, error)
	GetByID(ctx context.Context, id int64) (*Attendance, error)
	ListByEmail(ctx context.Context, email string) ([]*Attendance, error)
	MarkVerified(ctx context.Context, email string) error
	// MarkFeedbackGiven flags rows of email that have not given feedback yet and returns how many changed.
	MarkFeedbackGiven(ctx context.Context, email string) (int64, error)
}

// AttendanceUpload is an uploaded attendee list as received from the client.
// Size is the declared size; a negative value means unknown.
type AttendanceUpload struct {
	File        io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// AttendanceImport is the outcome of a successful attendee list import.
type AttendanceImport struct {
	Attendance       []*Attendance `json:"attendance"`
	Created          int           `json:"created"`
	SkippedExisting  int           `json:"skipped_existing"`
	DuplicatesInFile int           `json:"duplicates_in_file"`
	BlankRows        int           `json:"blank_rows"`
}

// AttendanceService defines the attendance operations exposed to the delivery layer.
type AttendanceService interface {
	// ImportAttendees imports an uploaded attendee list into the event and returns the event's full attendance.
	ImportAttendees(ctx context.Context, eventID int64, upload AttendanceUpload) (*AttendanceImport, error)
	ListEventAttendance(ctx context.Context, eventID int64, page PaginationParams) ([]*Attendance, int, error)
	GetAttendance(ctx context.Context, id int64) (*Attendance, error)
	// VerifyAttendee marks the attendee verified so feedback can be submitted.
	VerifyAttendee(ctx context.Context, email string) ([]*Attendance, error)
	MarkFeedbackGiven(ctx context.Context, email string) error
}
