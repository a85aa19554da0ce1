package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Mailer delivers one message whose body is Markdown
type Mailer interface {
	Send(ctx context.Context, to, subject, markdown string) error
}

// SMTPMailer renders Markdown to HTML and relays through an SMTP server
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
	md   goldmark.Markdown
}

// NewSMTPMailer creates a mailer for host:port. Auth is skipped without a username.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Send renders and sends the message
func (m *SMTPMailer) Send(_ context.Context, to, subject, markdown string) error {
	msg, err := m.compose(to, subject, markdown)
	if err != nil {
		return err
	}
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// compose builds a multipart/alternative message with the Markdown as the text part
func (m *SMTPMailer) compose(to, subject, markdown string) ([]byte, error) {
	var html bytes.Buffer
	if err := m.md.Convert([]byte(markdown), &html); err != nil {
		return nil, fmt.Errorf("failed to convert markdown: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=UTF-8", []byte(markdown)},
		{"text/html; charset=UTF-8", html.Bytes()},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// LogMailer prints messages instead of sending them, for local development
type LogMailer struct{}

// Send logs the message
func (LogMailer) Send(_ context.Context, to, subject, markdown string) error {
	log.Printf("📧 [MAIL] SMTP not configured, to=%s subject=%q\n%s", to, subject, markdown)
	return nil
}

// MailService sends account mails in the background. Failures are logged only.
type MailService struct {
	mailer  Mailer
	baseURL string
	wg      sync.WaitGroup
}

// NewMailService creates a mail service building links against baseURL
func NewMailService(mailer Mailer, baseURL string) *MailService {
	return &MailService{mailer: mailer, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *MailService) sendAsync(to, subject, markdown string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mailer.Send(ctx, to, subject, markdown); err != nil {
			log.Printf("❌ [MAIL] %v", err)
		}
	}()
}

// Wait blocks until queued mails have been handed to the mailer
func (s *MailService) Wait() {
	s.wg.Wait()
}

// SendEmailVerification mails the verification link for rawToken
func (s *MailService) SendEmailVerification(to, username, rawToken string, expiry time.Time) {
	link := fmt.Sprintf("%s/api/v1/user/verify-email/%s", s.baseURL, rawToken)
	s.sendAsync(to, "Verify your Flowbase email", fmt.Sprintf(`Hi %s,

Welcome to **Flowbase**! Confirm your email address to start using your account:

[Verify email](%s)

This link expires at %s.
`, username, link, expiry.UTC().Format(time.RFC1123)))
}

// SendPasswordReset mails the reset link for rawToken
func (s *MailService) SendPasswordReset(to, username, rawToken string, expiry time.Time) {
	link := fmt.Sprintf("%s/api/v1/user/reset-password/%s", s.baseURL, rawToken)
	s.sendAsync(to, "Reset your Flowbase password", fmt.Sprintf(`Hi %s,

We received a request to reset your password. Use the link below to choose a new one:

[Reset password](%s)

This link expires at %s. If you did not ask for a reset, ignore this mail.
`, username, link, expiry.UTC().Format(time.RFC1123)))
}
