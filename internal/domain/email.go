package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// RenderedEmail is a message ready to hand to a Mailer.
type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

// EmailTemplateRenderer renders the emails sent to attendees.
type EmailTemplateRenderer interface {
	RenderFeedbackInvite(data *FeedbackInviteEmailData) (*RenderedEmail, error)
}

// FeedbackInviteEmailData holds data for the email sent to freshly imported attendees.
type FeedbackInviteEmailData struct {
	Email     string
	Username  string
	EventName string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendFeedbackInvite(ctx context.Context, data *FeedbackInviteEmailData) error
}
