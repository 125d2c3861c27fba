package smtp

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/providers"
)

// Dialer is the part of mail.Dialer the mailer uses.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer sends multipart (text + html) mails over SMTP with mandatory STARTTLS.
type Mailer struct {
	From   string
	Dialer Dialer
	Logger *zap.Logger
}

// NewMailer creates an SMTP mailer from the configuration.
func NewMailer(cfg *config.Config, logger *zap.Logger) *Mailer {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.SMTPHost,
		InsecureSkipVerify: cfg.SMTPSkipTLSVerify, // dev only
	}
	return &Mailer{From: cfg.SMTPFrom, Dialer: d, Logger: logger}
}

func (m *Mailer) Name() string {
	return "smtp"
}

// Send builds the MIME message and hands it to the dialer.
func (m *Mailer) Send(ctx context.Context, msg providers.Message) error {
	if msg.To == "" {
		return &providers.DeliveryError{Provider: m.Name(), Err: fmt.Errorf("empty recipient")}
	}
	if err := ctx.Err(); err != nil {
		return &providers.DeliveryError{Provider: m.Name(), To: msg.To, Err: err}
	}

	mm := mail.NewMessage()
	mm.SetHeader("From", m.From)
	mm.SetHeader("To", msg.To)
	mm.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		mm.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			mm.AddAlternative("text/html", msg.HTML)
		}
	} else {
		mm.SetBody("text/html", msg.HTML)
	}

	if err := m.Dialer.DialAndSend(mm); err != nil {
		return &providers.DeliveryError{Provider: m.Name(), To: msg.To, Err: err}
	}
	m.Logger.Debug("Mail sent via SMTP", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
