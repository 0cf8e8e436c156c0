package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"speakwise/internal/domain"
	"speakwise/internal/importer"
)

// inviteConcurrency bounds the feedback invites sent in parallel after an import.
const inviteConcurrency = 4

// AttendanceImporter runs the attendee list pipeline. *importer.Importer satisfies it.
type AttendanceImporter interface {
	Import(ctx context.Context, upload domain.AttendanceUpload, eventID int64) (*importer.Result, error)
}

type attendanceService struct {
	eventRepo      domain.EventRepository
	attendanceRepo domain.AttendanceRepository
	importer       AttendanceImporter
	emails         importer.EmailValidator
	emailService   domain.EmailService
	notify         bool
	logger         *slog.Logger
}

// AttendanceServiceConfig groups the collaborators of the attendance service.
// EmailService may be nil when Notify is false.
type AttendanceServiceConfig struct {
	EventRepo      domain.EventRepository
	AttendanceRepo domain.AttendanceRepository
	Importer       AttendanceImporter
	Emails         importer.EmailValidator
	EmailService   domain.EmailService
	Notify         bool
	Logger         *slog.Logger
}

// NewAttendanceService creates an AttendanceService.
func NewAttendanceService(cfg AttendanceServiceConfig) domain.AttendanceService {
	return &attendanceService{
		eventRepo:      cfg.EventRepo,
		attendanceRepo: cfg.AttendanceRepo,
		importer:       cfg.Importer,
		emails:         cfg.Emails,
		emailService:   cfg.EmailService,
		notify:         cfg.Notify && cfg.EmailService != nil,
		logger:         cfg.Logger,
	}
}

func (s *attendanceService) ImportAttendees(ctx context.Context, eventID int64, upload domain.AttendanceUpload) (*domain.AttendanceImport, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	res, err := s.importer.Import(ctx, upload, eventID)
	if err != nil {
		return nil, err
	}

	if s.notify && len(res.Created) > 0 {
		s.sendFeedbackInvites(ctx, event, res.Created)
	}

	return &domain.AttendanceImport{
		Attendance:       res.Attendance,
		Created:          len(res.Created),
		SkippedExisting:  res.SkippedExisting,
		DuplicatesInFile: res.DuplicatesInFile,
		BlankRows:        res.BlankRows,
	}, nil
}

// sendFeedbackInvites mails every created attendee. Failures are logged only;
// the import has already been committed.
func (s *attendanceService) sendFeedbackInvites(ctx context.Context, event *domain.Event, created []importer.Record) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inviteConcurrency)
	for _, rec := range created {
		g.Go(func() error {
			err := s.emailService.SendFeedbackInvite(gctx, &domain.FeedbackInviteEmailData{
				Email:     rec.Email,
				Username:  rec.Name,
				EventName: event.Name,
			})
			if err != nil {
				s.logger.WarnContext(ctx, "feedback invite not sent", "event_id", event.ID, "email", rec.Email, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *attendanceService) ListEventAttendance(ctx context.Context, eventID int64, page domain.PaginationParams) ([]*domain.Attendance, int, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, fmt.Errorf("get event: %w", err)
	}
	items, total, err := s.attendanceRepo.ListByEventPage(ctx, eventID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	return items, total, nil
}

func (s *attendanceService) GetAttendance(ctx context.Context, id int64) (*domain.Attendance, error) {
	a, err := s.attendanceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return a, nil
}

func (s *attendanceService) VerifyAttendee(ctx context.Context, email string) ([]*domain.Attendance, error) {
	canonical, err := s.canonicalize(ctx, email)
	if err != nil {
		return nil, err
	}
	rows, err := s.attendanceRepo.ListByEmail(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("list attendance by email: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	for _, a := range rows {
		if a.IsGivenFeedback {
			return nil, domain.ErrFeedbackAlreadyGiven
		}
	}
	if err := s.attendanceRepo.MarkVerified(ctx, canonical); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	for _, a := range rows {
		a.IsVerified = true
	}
	return rows, nil
}

func (s *attendanceService) MarkFeedbackGiven(ctx context.Context, email string) error {
	canonical, err := s.canonicalize(ctx, email)
	if err != nil {
		return err
	}
	n, err := s.attendanceRepo.MarkFeedbackGiven(ctx, canonical)
	if err != nil {
		return fmt.Errorf("mark feedback given: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *attendanceService) canonicalize(ctx context.Context, email string) (string, error) {
	canonical, err := s.emails.Canonicalize(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return canonical, nil
}
