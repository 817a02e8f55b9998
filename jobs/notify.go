package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/hibiken/asynq"

	"github.com/labdesk/labdesk/internal/observability"
	"github.com/labdesk/labdesk/internal/shared"
)

var subjects = map[string]string{
	"quotation.sent":     "Quotation revision {{.Data.revision}} is ready for review",
	"quotation.invoiced": "Invoice issued for quotation {{.EntityID}}",
	"rfi.submitted":      "New request for information: {{.Data.subject}}",
	"rfi.message":        "New reply on: {{.Data.subject}}",
	"rfi.resolved":       "Resolved: {{.Data.subject}}",
}

const bodyText = `Project: {{.ProjectID}}
{{- if eq .EntityType "quotation"}}
Quotation: {{.EntityID}} (revision {{.Data.revision}})
Total incl. VAT: {{.Data.total_with_vat}} {{.Data.currency}}
{{- else}}
Request: {{.EntityID}}
Status: {{.Data.status}}
{{- with .Data.body}}

{{.}}
{{- end}}
{{- end}}
`

var (
	subjectTemplates = func() map[string]*template.Template {
		out := make(map[string]*template.Template, len(subjects))
		for event, text := range subjects {
			out[event] = template.Must(template.New(event).Option("missingkey=zero").Parse(text))
		}
		return out
	}()
	bodyTemplate = template.Must(template.New("body").Option("missingkey=zero").Parse(bodyText))
)

// NotifyJob delivers notify:client tasks by mail.
type NotifyJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewNotifyJob initialises the notification handler.
func NewNotifyJob(mailer Mailer, logger *slog.Logger, metrics *observability.Metrics) *NotifyJob {
	return &NotifyJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle renders and sends one notification. Malformed payloads and unknown
// events are not retried.
func (j *NotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("notify: handler not configured")
	}
	var n shared.Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("notify: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := j.logger().With(
		slog.String("event", n.Event),
		slog.String("entity_id", n.EntityID),
		slog.Int("recipients", len(n.Recipients)),
	)
	if len(n.Recipients) == 0 {
		logger.Info("notification without recipients skipped")
		return nil
	}
	subject, body, err := Compose(n)
	if err != nil {
		logger.Error("compose notification", slog.Any("error", err))
		return fmt.Errorf("notify: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.TrackDelivery(n.Event)
	if err := tracker.End(j.Mailer.Send(ctx, n.Recipients, subject, body)); err != nil {
		logger.Warn("deliver notification", slog.Any("error", err))
		return err
	}
	logger.Info("notification delivered")
	return nil
}

func (j *NotifyJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// Compose renders the mail subject and body for a notification.
func Compose(n shared.Notification) (string, string, error) {
	tmpl, ok := subjectTemplates[n.Event]
	if !ok {
		return "", "", fmt.Errorf("unknown event %q", n.Event)
	}
	var subject, body bytes.Buffer
	if err := tmpl.Execute(&subject, n); err != nil {
		return "", "", err
	}
	if err := bodyTemplate.Execute(&body, n); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}
