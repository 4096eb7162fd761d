package notify

import (
	"context"
	"fmt"

	"github.com/25x8/velorent/internal/velorent/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers plain-text mail
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a mailer from SMTP settings
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.UseSSL

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{dialer: d, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer only logs the recipient and subject. Used when SMTP is not configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("mail delivery skipped, SMTP is not configured",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// NewMailer picks SMTP when a host is configured
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}

// PasswordResetMessage renders the reset code mail
func PasswordResetMessage(code string) (subject, body string) {
	subject = "Код для восстановления пароля"
	body = "Мы получили запрос на смену пароля.\n\n" +
		"Код подтверждения: " + code + "\n\n" +
		"Если вы не запрашивали смену пароля, просто игнорируйте это письмо."
	return subject, body
}
