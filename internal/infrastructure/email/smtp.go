package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/smtp"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

//go:embed templates/*
var templateFS embed.FS

// Invitation is the data rendered into the invitation templates
type Invitation struct {
	Name         string
	MeetingTitle string
	When         string
	JoinURL      string
	InviteURL    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends account invitations to attendees that were added as stubs
type SMTPMailer struct {
	cfg    config.SMTPConfig
	html   *htmltemplate.Template
	text   *texttemplate.Template
	send   sendFunc
	logger *zap.Logger
}

// NewSMTPMailer parses the embedded templates
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/invitation.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html template: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/invitation.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	return &SMTPMailer{
		cfg:    cfg,
		html:   html,
		text:   text,
		send:   smtp.SendMail,
		logger: logger,
	}, nil
}

// SendInvitation emails the invite link of a stub user.
// net/smtp has no context support; ctx is only checked before dialing.
func (m *SMTPMailer) SendInvitation(ctx context.Context, user *entities.User, meeting *entities.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.InviteToken == nil {
		return fmt.Errorf("user %s has no invite token", user.ID)
	}

	data := m.invitation(user, meeting)
	htmlBody, textBody, err := m.render(data)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("You're invited: %s", data.MeetingTitle)
	msg := buildMessage(m.cfg.From, user.Email, subject, htmlBody, textBody)

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{user.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("📧 Invitation email sent",
		zap.String("user_id", user.ID.String()),
		zap.String("meeting_id", meeting.ID.String()),
	)
	return nil
}

func (m *SMTPMailer) invitation(user *entities.User, meeting *entities.Meeting) Invitation {
	inv := Invitation{
		Name:         user.Name,
		MeetingTitle: meeting.Title,
		JoinURL:      meeting.JoinURL,
		InviteURL: strings.TrimRight(m.cfg.FrontendURL, "/") + "/invite?" + url.Values{
			"token": {*user.InviteToken},
			"email": {user.Email},
		}.Encode(),
	}
	if inv.MeetingTitle == "" {
		inv.MeetingTitle = "a meeting"
	}
	if inv.Name == "" {
		inv.Name = user.Email
	}
	if meeting.ScheduledStart != nil {
		inv.When = meeting.ScheduledStart.UTC().Format(time.RFC1123)
	}
	return inv
}

func (m *SMTPMailer) render(data Invitation) (string, string, error) {
	var html, text bytes.Buffer
	if err := m.html.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("failed to render html template: %w", err)
	}
	if err := m.text.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("failed to render text template: %w", err)
	}
	return html.String(), text.String(), nil
}

// buildMessage builds a multipart/alternative message with text and html parts
func buildMessage(from, to, subject, htmlBody, textBody string) string {
	boundary := "==meeting-sync-boundary=="

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}

// NoopMailer logs instead of sending; used when SMTP is disabled
type NoopMailer struct {
	logger *zap.Logger
}

// NewNoopMailer creates a mailer that never sends
func NewNoopMailer(logger *zap.Logger) *NoopMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopMailer{logger: logger}
}

// SendInvitation logs the skipped invitation
func (m *NoopMailer) SendInvitation(_ context.Context, user *entities.User, meeting *entities.Meeting) error {
	m.logger.Debug("email disabled, skipping invitation",
		zap.String("user_id", user.ID.String()),
		zap.String("meeting_id", meeting.ID.String()),
	)
	return nil
}
