// Package notify delivers best-effort email notifications from a bounded
// background worker pool.
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Message is a plain-text notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// mailClient is the subset of *mail.Client used here, so tests can run without
// an SMTP server.
type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender sends mail through an SMTP relay using STARTTLS.
type SMTPSender struct {
	client mailClient
	from   string
}

// NewSMTPSender creates a sender for cfg.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newSMTPSenderWithClient(c, cfg.From), nil
}

func newSMTPSenderWithClient(c mailClient, from string) *SMTPSender {
	return &SMTPSender{client: c, from: from}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// LogSender only logs messages. Used when no SMTP relay is configured.
type LogSender struct {
	logger *zap.SugaredLogger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.SugaredLogger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Sender. The body is not logged since it may carry a code.
func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Infow("smtp not configured; notification not delivered",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
