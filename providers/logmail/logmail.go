package logmail

import (
	"context"

	"go.uber.org/zap"

	"editorial-desk/providers"
)

// Mailer only logs outgoing mail. Used in development and when no transport is configured.
type Mailer struct {
	Logger *zap.Logger
}

// NewMailer creates a logging mailer.
func NewMailer(logger *zap.Logger) *Mailer {
	return &Mailer{Logger: logger}
}

func (m *Mailer) Name() string {
	return "log"
}

func (m *Mailer) Send(ctx context.Context, msg providers.Message) error {
	if err := ctx.Err(); err != nil {
		return &providers.DeliveryError{Provider: m.Name(), To: msg.To, Err: err}
	}
	m.Logger.Info("Mail (not sent, log transport)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text))
	return nil
}
