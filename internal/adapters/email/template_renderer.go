package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"speakwise/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

const feedbackInviteTemplate = "feedback_invite"

// templateRenderer renders the embedded attendee templates. Templates are
// parsed once, so a broken template fails at startup rather than per send.
type templateRenderer struct {
	html *template.Template
	text *texttemplate.Template
}

// NewTemplateRenderer parses the embedded templates.
func NewTemplateRenderer() (domain.EmailTemplateRenderer, error) {
	html, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	r := &templateRenderer{html: html, text: text}
	for _, name := range []string{feedbackInviteTemplate + ".txt", feedbackInviteTemplate + "_subject.txt"} {
		if r.text.Lookup(name) == nil {
			return nil, fmt.Errorf("template %s not found", name)
		}
	}
	if r.html.Lookup(feedbackInviteTemplate+".html") == nil {
		return nil, fmt.Errorf("template %s.html not found", feedbackInviteTemplate)
	}
	return r, nil
}

// RenderFeedbackInvite renders the invitation sent to a freshly imported attendee.
func (r *templateRenderer) RenderFeedbackInvite(data *domain.FeedbackInviteEmailData) (*domain.RenderedEmail, error) {
	if data == nil {
		return nil, fmt.Errorf("render %s: nil data", feedbackInviteTemplate)
	}
	var subject, text, html bytes.Buffer
	if err := r.text.ExecuteTemplate(&subject, feedbackInviteTemplate+"_subject.txt", data); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	if err := r.html.ExecuteTemplate(&html, feedbackInviteTemplate+".html", data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := r.text.ExecuteTemplate(&text, feedbackInviteTemplate+".txt", data); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	return &domain.RenderedEmail{
		// event names come from organizers; keep the subject on one line
		Subject: strings.Join(strings.Fields(subject.String()), " "),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
