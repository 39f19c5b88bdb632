package services

import (
	"context"
	"fmt"
	"strings"

	"law_timeline_app_go/config"

	"github.com/juju/errors"
	"github.com/resend/resend-go/v2"
)

// Email represents an email message
type Email struct {
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTMLBody    string       `json:"html_body,omitempty"`
	TextBody    string       `json:"text_body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file sent along with an email
type Attachment struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, email *Email) error
}

// ResendMailer sends through the Resend API, or logs when in test mode
type ResendMailer struct {
	client   *resend.Client
	from     string
	testMode bool
}

// NewResendMailer builds the configured mailer. Without an API key it
// falls back to test mode so nothing is silently dropped.
func NewResendMailer(cfg *config.Config) *ResendMailer {
	m := &ResendMailer{
		from:     fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom),
		testMode: cfg.EmailTestMode,
	}
	if cfg.ResendAPIKey == "" {
		if !cfg.EmailTestMode {
			logger.Warningf("RESEND_API_KEY not configured, emails will only be logged")
		}
		m.testMode = true
		return m
	}
	m.client = resend.NewClient(cfg.ResendAPIKey)
	return m
}

func (m *ResendMailer) Send(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return errors.NotValidf("email without recipients")
	}
	if email.HTMLBody == "" && email.TextBody == "" {
		return errors.NotValidf("email without body")
	}

	if m.testMode {
		logEmailToConsole(email)
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	}
	for _, a := range email.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename: a.Filename,
			Content:  a.Content,
		})
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return errors.Annotate(err, "sending email via Resend")
	}
	logger.Infof("email sent via Resend (id %s) to %v", sent.Id, email.To)
	return nil
}

// logEmailToConsole logs email details in test mode
func logEmailToConsole(email *Email) {
	separator := strings.Repeat("=", 80)
	logger.Infof("\n%s\nEMAIL (test mode, not sent)\nTo: %v\nSubject: %s\nAttachments: %d\n--- TEXT BODY ---\n%s\n%s",
		separator, email.To, email.Subject, len(email.Attachments), truncate(email.TextBody, 500), separator)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
