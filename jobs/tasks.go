package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/labdesk/labdesk/internal/shared"
)

const (
	// QueueNotifications is the default queue for client notifications.
	QueueNotifications = "notifications"
	// TaskNotifyClient delivers one shared.Notification to its recipients.
	TaskNotifyClient = "notify:client"
)

const (
	notifyMaxRetry = 8
	notifyTimeout  = 30 * time.Second
)

// NewNotifyClientTask constructs an Asynq task carrying the notification.
func NewNotifyClientTask(n shared.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyClient, data, asynq.MaxRetry(notifyMaxRetry), asynq.Timeout(notifyTimeout)), nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits notification jobs and implements shared.Notifier.
type Client struct {
	client Enqueuer
	queue  string
}

// NewClient constructs a Client backed by Redis.
func NewClient(redisOpts asynq.RedisClientOpt, queue string) *Client {
	return NewClientWith(asynq.NewClient(redisOpts), queue)
}

// NewClientWith wraps an existing enqueuer.
func NewClientWith(enqueuer Enqueuer, queue string) *Client {
	if queue == "" {
		queue = QueueNotifications
	}
	return &Client{client: enqueuer, queue: queue}
}

// NotifyClient enqueues the notification. Notifications without recipients
// are dropped.
func (c *Client) NotifyClient(ctx context.Context, n shared.Notification) error {
	if c == nil || c.client == nil {
		return errors.New("jobs: client not configured")
	}
	if len(n.Recipients) == 0 {
		return nil
	}
	task, err := NewNotifyClientTask(n)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
