package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"wink/internal/domain/notifications"
	"wink/internal/platform/config"
)

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, body string) error {
	slog.Debug("email disabled, dropping message", "to", to, "subject", subject)
	return nil
}

type smtpMailer struct {
	cfg config.Config
}

// throttledMailer caps outbound sends so a burst of review or invitation
// notifications cannot trip the relay's own rate limits.
type throttledMailer struct {
	next    notifications.Mailer
	limiter *rate.Limiter
}

func New(cfg config.Config) notifications.Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	return Throttle(&smtpMailer{cfg: cfg}, cfg.EmailRatePerMinute)
}

// Throttle wraps a mailer with a token bucket refilled perMinute times a
// minute. A non-positive rate returns the mailer unchanged.
func Throttle(next notifications.Mailer, perMinute int) notifications.Mailer {
	if perMinute <= 0 {
		return next
	}
	every := rate.Every(time.Minute / time.Duration(perMinute))
	return &throttledMailer{next: next, limiter: rate.NewLimiter(every, 1)}
}

func (t *throttledMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email throttle: %w", err)
	}
	return t.next.Send(ctx, from, to, subject, body)
}

func (s *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	addr := net.JoinHostPort(s.cfg.SMTPHost, fmt.Sprint(s.cfg.SMTPPort))
	msg := buildMessage(from, to, subject, body)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.SMTPUseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.SMTPHost}); err != nil {
			return err
		}
	}
	if s.cfg.SMTPUser != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"Date: " + time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n" + body)
}
