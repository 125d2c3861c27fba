package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"editorial-desk/models"
	"editorial-desk/providers"
	"editorial-desk/storage"
)

// bulkConcurrency bounds in-flight dispatches of DispatchBulk.
const bulkConcurrency = 5

var notificationMailTmpl = template.Must(template.New("notification").Parse(
	`<p>{{.Title}}</p><p>{{.Message}}</p>{{if .Link}}<p><a href="{{.Link}}">Open in the editorial desk</a></p>{{end}}`))

// Dispatch is one notification request.
type Dispatch struct {
	UserID    string                  `json:"user_id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Link      *string                 `json:"link,omitempty"`
	Metadata  map[string]any          `json:"metadata,omitempty"`
	SendEmail bool                    `json:"send_email"`
}

// DispatchResult is the outcome for one recipient of DispatchBulk.
type DispatchResult struct {
	UserID         string `json:"user_id"`
	NotificationID string `json:"notification_id,omitempty"`
	EmailSent      bool   `json:"email_sent"`
	Err            error  `json:"-"`
}

// Notifier persists notifications and optionally mails them.
type Notifier struct {
	Store   storage.Store
	Mailer  providers.Mailer
	Logger  *zap.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// Dispatch stores the notification and, if requested, emails it. Only the persistence error is
// returned; mail failures are logged and leave EmailSent false.
func (n *Notifier) Dispatch(ctx context.Context, d Dispatch) (*models.Notification, error) {
	row := &models.Notification{
		CreatedAt: n.Now(),
		UserID:    d.UserID,
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		Link:      d.Link,
	}
	if len(d.Metadata) > 0 {
		raw, err := json.Marshal(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode notification metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(raw)
	}
	if err := n.Store.CreateNotification(ctx, row); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	n.Metrics.NotificationsCreated.WithLabelValues(string(d.Type)).Inc()

	if !d.SendEmail {
		return row, nil
	}

	log := n.Logger.With(zap.String("notification_id", row.ID), zap.String("user_id", d.UserID))
	if err := n.mail(ctx, d); err != nil {
		n.Metrics.EmailDeliveries.WithLabelValues("notification", "failed").Inc()
		log.Warn("Notification email not delivered", zap.Error(err))
		return row, nil
	}
	n.Metrics.EmailDeliveries.WithLabelValues("notification", "sent").Inc()

	if err := n.Store.SetNotificationEmailSent(ctx, row.ID, true); err != nil {
		log.Error("Failed to record email delivery", zap.Error(err))
		return row, nil
	}
	row.EmailSent = true
	return row, nil
}

func (n *Notifier) mail(ctx context.Context, d Dispatch) error {
	user, err := n.Store.UserByID(ctx, d.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if user.Email == "" {
		return errors.New("recipient has no email address")
	}

	link := ""
	if d.Link != nil {
		link = *d.Link
	}
	var body bytes.Buffer
	err = notificationMailTmpl.Execute(&body, map[string]string{"Title": d.Title, "Message": d.Message, "Link": link})
	if err != nil {
		return fmt.Errorf("render notification mail: %w", err)
	}

	return n.Mailer.Send(ctx, providers.Message{
		To:      user.Email,
		Subject: d.Title,
		HTML:    body.String(),
		Text:    HTMLToText(body.String()),
	})
}

// DispatchBulk sends the same notification to every user with bounded concurrency. Results keep
// the order of userIDs; one failure never stops the others.
func (n *Notifier) DispatchBulk(ctx context.Context, userIDs []string, payload Dispatch) []DispatchResult {
	results := make([]DispatchResult, len(userIDs))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, bulkConcurrency)

	for i, userID := range userIDs {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, userID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			d := payload
			d.UserID = userID
			res := DispatchResult{UserID: userID}
			row, err := n.Dispatch(ctx, d)
			if err != nil {
				n.Logger.Error("Bulk notification failed", zap.String("user_id", userID), zap.Error(err))
				res.Err = err
			} else {
				res.NotificationID = row.ID
				res.EmailSent = row.EmailSent
			}
			results[i] = res
		}(i, userID)
	}

	wg.Wait()
	return results
}
