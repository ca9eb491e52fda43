package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// MailConfig holds SMTP relay settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Configured reports whether enough settings exist to send mail.
func (c MailConfig) Configured() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// MailSender sends alerts by email over an SMTP relay with STARTTLS.
type MailSender struct {
	cfg     MailConfig
	timeout time.Duration
}

// NewMailSender creates a mail sender. Returns nil if the relay is not
// configured (alerts then go to the log sender).
func NewMailSender(cfg MailConfig) *MailSender {
	if !cfg.Configured() {
		return nil
	}
	return &MailSender{cfg: cfg, timeout: sendTimeout}
}

// Name identifies the sender in logs.
func (s *MailSender) Name() string { return "smtp" }

// Send builds and delivers one email.
func (s *MailSender) Send(ctx context.Context, msg Message) error {
	if s == nil {
		return ErrNotConfigured
	}

	m, err := s.compose(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(s.timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return nil
}

func (s *MailSender) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("set from %q: %w", s.cfg.From, err)
	}
	if err := m.To(s.cfg.To...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// LogSender writes alerts to the log. Used when no relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Name identifies the sender in logs.
func (s *LogSender) Name() string { return "log" }

// Send logs the message.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("Alert (mail disabled)", "subject", msg.Subject, "body", msg.Body)
	return nil
}
