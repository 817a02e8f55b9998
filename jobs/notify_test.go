package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/labdesk/labdesk/internal/observability"
	"github.com/labdesk/labdesk/internal/shared"
)

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to []string, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func notifyTask(t *testing.T, n shared.Notification) *asynq.Task {
	t.Helper()
	task, err := NewNotifyClientTask(n)
	require.NoError(t, err)
	return task
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyJobDeliversQuotation(t *testing.T) {
	mailer := &fakeMailer{}
	job := NewNotifyJob(mailer, quietLogger(), observability.NewMetrics())

	require.NoError(t, job.Handle(context.Background(), notifyTask(t, sentNotification())))
	require.Len(t, mailer.sent, 1)
	mail := mailer.sent[0]
	require.Equal(t, []string{"ana@client.test"}, mail.to)
	require.Equal(t, "Quotation revision 0 is ready for review", mail.subject)
	require.Equal(t, "Project: p-1\nQuotation: q-1 (revision 0)\nTotal incl. VAT: 110.00 USD\n", mail.body)
}

func TestComposeRFIMessage(t *testing.T) {
	subject, body, err := Compose(shared.Notification{
		Event:      "rfi.message",
		EntityType: "rfi",
		EntityID:   "rfi-1",
		ProjectID:  "p-1",
		Data:       map[string]string{"subject": "Missing mix design", "status": "open", "body": "Please send it."},
	})
	require.NoError(t, err)
	require.Equal(t, "New reply on: Missing mix design", subject)
	require.Equal(t, "Project: p-1\nRequest: rfi-1\nStatus: open\n\nPlease send it.\n", body)

	_, _, err = Compose(shared.Notification{Event: "unknown"})
	require.Error(t, err)
}

func TestNotifyJobSkipsRetryOnBadInput(t *testing.T) {
	job := NewNotifyJob(&fakeMailer{}, quietLogger(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskNotifyClient, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	n := sentNotification()
	n.Event = "quotation.exploded"
	err = job.Handle(context.Background(), notifyTask(t, n))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNotifyJobRetriesDeliveryFailures(t *testing.T) {
	boom := errors.New("relay refused")
	metrics := observability.NewMetrics()
	job := NewNotifyJob(&fakeMailer{err: boom}, quietLogger(), metrics)

	err := job.Handle(context.Background(), notifyTask(t, sentNotification()))
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestNotifyJobIgnoresEmptyRecipients(t *testing.T) {
	mailer := &fakeMailer{}
	n := sentNotification()
	n.Recipients = nil
	payload, err := json.Marshal(n)
	require.NoError(t, err)

	require.NoError(t, NewNotifyJob(mailer, quietLogger(), nil).Handle(context.Background(), asynq.NewTask(TaskNotifyClient, payload)))
	require.Empty(t, mailer.sent)
}

func TestSMTPMailerFormatsMessage(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	mailer := NewSMTPMailer("mail.local", 1025, "no-reply@labdesk.local")
	mailer.now = func() time.Time { return time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC) }
	mailer.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err := mailer.Send(context.Background(), []string{"a@x.test", "b@x.test"}, "Résumé", "line one\nline two")
	require.NoError(t, err)
	require.Equal(t, "mail.local:1025", gotAddr)
	require.Equal(t, "no-reply@labdesk.local", gotFrom)
	require.Equal(t, []string{"a@x.test", "b@x.test"}, gotTo)
	require.Contains(t, gotMsg, "To: a@x.test, b@x.test\r\n")
	require.Contains(t, gotMsg, "Subject: =?utf-8?q?R=C3=A9sum=C3=A9?=\r\n")
	require.Contains(t, gotMsg, "Date: Mon, 04 May 2026 08:30:00 +0000\r\n")
	require.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline one\r\nline two"))

	require.Error(t, mailer.Send(context.Background(), nil, "x", "y"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, mailer.Send(ctx, []string{"a@x.test"}, "x", "y"), context.Canceled)
}
