package providers

import (
	"context"
	"fmt"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer is the interface every email transport (smtp, relay, log) implements.
// A nil error means the transport accepted the message; retries are the transport's business.
type Mailer interface {
	// Send delivers one message.
	Send(ctx context.Context, msg Message) error

	// Name returns the unique name of the transport (e.g. "smtp").
	Name() string
}

// DeliveryError reports a failed email delivery. It never crosses the notification boundary.
type DeliveryError struct {
	Provider string
	To       string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s to %s failed: %v", e.Provider, e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
