package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/providers"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// payload is the JSON body the relay endpoint accepts.
type payload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// Mailer posts mails to an HTTP mail relay (transactional mail API or in-house gateway).
type Mailer struct {
	URL    string
	Token  string
	Client *http.Client
	Logger *zap.Logger
}

// NewMailer creates a relay mailer from the configuration.
func NewMailer(cfg *config.Config, logger *zap.Logger) *Mailer {
	return &Mailer{URL: cfg.MailRelayURL, Token: cfg.MailRelayToken, Client: httpClient, Logger: logger}
}

func (m *Mailer) Name() string {
	return "relay"
}

// Send posts one message; any non-2xx answer counts as a failed delivery.
func (m *Mailer) Send(ctx context.Context, msg providers.Message) error {
	body, err := json.Marshal(payload{To: msg.To, Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text})
	if err != nil {
		return &providers.DeliveryError{Provider: m.Name(), To: msg.To, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return &providers.DeliveryError{Provider: m.Name(), To: msg.To, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if m.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.Token)
	}

	log := m.Logger.With(zap.String("to", msg.To), zap.String("url", m.URL))
	log.Debug("Posting mail to relay.")

	resp, err := m.Client.Do(req)
	if err != nil {
		return &providers.DeliveryError{Provider: m.Name(), To: msg.To, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &providers.DeliveryError{
			Provider: m.Name(),
			To:       msg.To,
			Err:      fmt.Errorf("relay request failed with status: %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}

	log.Debug("Relay accepted mail.")
	return nil
}
