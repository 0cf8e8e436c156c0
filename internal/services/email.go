package services

import (
	"context"
	"fmt"
	"log/slog"

	"speakwise/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendFeedbackInvite asks a freshly imported attendee to leave feedback.
func (s *emailService) SendFeedbackInvite(ctx context.Context, data *domain.FeedbackInviteEmailData) error {
	if data == nil {
		return fmt.Errorf("feedback invite data is nil")
	}
	msg, err := s.renderer.RenderFeedbackInvite(data)
	if err != nil {
		return fmt.Errorf("failed to render feedback invite: %w", err)
	}
	if err := s.mailer.Send(ctx, data.Email, msg.Subject, msg.HTML, msg.Text); err != nil {
		return fmt.Errorf("failed to send feedback invite email: %w", err)
	}
	s.logger.DebugContext(ctx, "feedback invite sent", "to", data.Email)
	return nil
}
