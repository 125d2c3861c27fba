package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"go.uber.org/zap"

	"editorial-desk/models"
	"editorial-desk/providers"
	"editorial-desk/storage"
)

// WorkflowEvent names a moment in the editorial process that gets its own email.
type WorkflowEvent string

const (
	EventReviewerInvited             WorkflowEvent = "REVIEWER_INVITED"
	EventReviewerDeadlineApproaching WorkflowEvent = "REVIEWER_DEADLINE_APPROACHING"
	EventReviewCompleted             WorkflowEvent = "REVIEW_COMPLETED"
	EventDecisionMade                WorkflowEvent = "DECISION_MADE"
	EventRevisionRequested           WorkflowEvent = "REVISION_REQUESTED"
	EventPaperPublished              WorkflowEvent = "PAPER_PUBLISHED"
	EventAuthorRevisionApproaching   WorkflowEvent = "AUTHOR_REVISION_APPROACHING"
)

// EventContext carries the template parameters of a workflow event. Recipient name and email are
// looked up from RecipientID when left empty.
type EventContext struct {
	RecipientID     string `json:"recipient_id"`
	RecipientName   string `json:"recipient_name,omitempty"`
	RecipientEmail  string `json:"recipient_email,omitempty"`
	SubmissionID    string `json:"submission_id,omitempty"`
	SubmissionCode  string `json:"submission_code,omitempty"`
	SubmissionTitle string `json:"submission_title,omitempty"`
	DaysLeft        *int   `json:"days_left,omitempty"`
	Decision        string `json:"decision,omitempty"`
	Link            string `json:"link,omitempty"`
}

// EventResult reports both legs of a workflow event separately.
type EventResult struct {
	Event           WorkflowEvent `json:"event"`
	EmailSent       bool          `json:"email_sent"`
	NotificationID  string        `json:"notification_id,omitempty"`
	EmailErr        error         `json:"-"`
	NotificationErr error         `json:"-"`
}

type eventTemplate struct {
	notification models.NotificationType
	subject      *template.Template
	body         *htmltemplate.Template
}

func newEventTemplate(name string, typ models.NotificationType, subject, body string) eventTemplate {
	return eventTemplate{
		notification: typ,
		subject:      template.Must(template.New(name).Parse(subject)),
		body:         htmltemplate.Must(htmltemplate.New(name).Parse(body)),
	}
}

const mailFooter = `{{if .Link}}<p><a href="{{.Link}}">{{.Link}}</a></p>{{end}}<p>The editorial office</p>`

var eventTemplates = map[WorkflowEvent]eventTemplate{
	EventReviewerInvited: newEventTemplate("reviewer-invited", models.NotificationReviewerInvited,
		`Invitation to review {{.Code}}`,
		`<p>Dear {{.Name}},</p><p>You are invited to review the manuscript <strong>{{.Code}}: {{.Title}}</strong>.</p><p>Please accept or decline the invitation.</p>`+mailFooter),
	EventReviewerDeadlineApproaching: newEventTemplate("reviewer-deadline", models.NotificationReviewReminder,
		`Review reminder for {{.Code}}{{if .DaysLeft}} ({{.DaysLeft}}){{end}}`,
		`<p>Dear {{.Name}},</p><p>Your review of <strong>{{.Code}}: {{.Title}}</strong> is still outstanding{{if .DaysLeft}}: {{.DaysLeft}}{{end}}.</p>`+mailFooter),
	EventReviewCompleted: newEventTemplate("review-completed", models.NotificationReviewCompleted,
		`Review received for {{.Code}}`,
		`<p>Dear {{.Name}},</p><p>A review for <strong>{{.Code}}: {{.Title}}</strong> has been submitted.</p>`+mailFooter),
	EventDecisionMade: newEventTemplate("decision-made", models.NotificationDecisionMade,
		`Decision on {{.Code}}: {{.Decision}}`,
		`<p>Dear {{.Name}},</p><p>The editors have reached a decision on <strong>{{.Code}}: {{.Title}}</strong>: {{.Decision}}.</p>`+mailFooter),
	EventRevisionRequested: newEventTemplate("revision-requested", models.NotificationRevisionRequested,
		`Revision requested for {{.Code}}`,
		`<p>Dear {{.Name}},</p><p>The editors request a revision of <strong>{{.Code}}: {{.Title}}</strong>.</p><p>Please submit the revised manuscript{{if .DaysLeft}} ({{.DaysLeft}}){{end}}.</p>`+mailFooter),
	EventPaperPublished: newEventTemplate("paper-published", models.NotificationPaperPublished,
		`{{.Code}} has been published`,
		`<p>Dear {{.Name}},</p><p>Your article <strong>{{.Code}}: {{.Title}}</strong> has been published.</p>`+mailFooter),
	EventAuthorRevisionApproaching: newEventTemplate("author-revision", models.NotificationAuthorRevisionReminder,
		`Revision due for {{.Code}}{{if .DaysLeft}} ({{.DaysLeft}}){{end}}`,
		`<p>Dear {{.Name}},</p><p>The revision of <strong>{{.Code}}: {{.Title}}</strong> is due soon{{if .DaysLeft}}: {{.DaysLeft}}{{end}}.</p>`+mailFooter),
}

// ParseWorkflowEvent validates a raw event name.
func ParseWorkflowEvent(raw string) (WorkflowEvent, bool) {
	e := WorkflowEvent(raw)
	_, ok := eventTemplates[e]
	return e, ok
}

// EventMapper renders workflow events into an email and an in-app notification.
type EventMapper struct {
	Store    storage.Store
	Mailer   providers.Mailer
	Notifier *Notifier
	Logger   *zap.Logger
	Metrics  *Metrics
}

type eventData struct {
	Name     string
	Code     string
	Title    string
	DaysLeft string
	Decision string
	Link     string
}

// TriggerWorkflowEvent mails the recipient and creates the matching notification. The two legs
// fail independently; the returned error covers only unknown events and rendering.
func (m *EventMapper) TriggerWorkflowEvent(ctx context.Context, event WorkflowEvent, ec EventContext) (*EventResult, error) {
	tmpl, ok := eventTemplates[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	log := m.Logger.With(zap.String("event", string(event)), zap.String("recipient_id", ec.RecipientID))

	var emailErr error
	if ec.RecipientID != "" && (ec.RecipientEmail == "" || ec.RecipientName == "") {
		user, err := m.Store.UserByID(ctx, ec.RecipientID)
		if err != nil {
			emailErr = fmt.Errorf("resolve recipient: %w", err)
		} else {
			if ec.RecipientEmail == "" {
				ec.RecipientEmail = user.Email
			}
			if ec.RecipientName == "" {
				ec.RecipientName = user.Name
			}
		}
	}

	data := eventData{
		Name:     ec.RecipientName,
		Code:     ec.SubmissionCode,
		Title:    ec.SubmissionTitle,
		Decision: ec.Decision,
		Link:     ec.Link,
	}
	if data.Name == "" {
		data.Name = "colleague"
	}
	if ec.DaysLeft != nil {
		data.DaysLeft = DaysLeftLabel(*ec.DaysLeft)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("render %s subject: %w", event, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render %s body: %w", event, err)
	}
	text := HTMLToText(body.String())

	res := &EventResult{Event: event}

	// email leg
	if emailErr == nil && ec.RecipientEmail == "" {
		emailErr = errors.New("recipient has no email address")
	}
	if emailErr == nil {
		emailErr = m.Mailer.Send(ctx, providers.Message{
			To:      ec.RecipientEmail,
			Subject: subject.String(),
			HTML:    body.String(),
			Text:    text,
		})
	}
	if emailErr != nil {
		res.EmailErr = emailErr
		m.Metrics.EmailDeliveries.WithLabelValues("event", "failed").Inc()
		log.Warn("Workflow event email not delivered", zap.Error(emailErr))
	} else {
		res.EmailSent = true
		m.Metrics.EmailDeliveries.WithLabelValues("event", "sent").Inc()
	}

	// notification leg
	if ec.RecipientID == "" {
		res.NotificationErr = fmt.Errorf("%w: recipient id required for notification", ErrInvalidInput)
	} else {
		var link *string
		if ec.Link != "" {
			link = &ec.Link
		}
		meta := map[string]any{"event": event}
		if ec.SubmissionID != "" {
			meta["submission_id"] = ec.SubmissionID
		}
		row, err := m.Notifier.Dispatch(ctx, Dispatch{
			UserID:   ec.RecipientID,
			Type:     tmpl.notification,
			Title:    subject.String(),
			Message:  text,
			Link:     link,
			Metadata: meta,
		})
		if err != nil {
			res.NotificationErr = err
		} else {
			res.NotificationID = row.ID
		}
	}
	if res.NotificationErr != nil {
		log.Error("Workflow event notification not created", zap.Error(res.NotificationErr))
	}

	return res, nil
}
