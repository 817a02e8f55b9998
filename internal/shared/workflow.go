package shared

import (
	"context"
	"time"
)

// Notification is a fire-and-forget message for the client side.
type Notification struct {
	Event      string            `json:"event"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	ProjectID  string            `json:"project_id,omitempty"`
	Recipients []string          `json:"recipients,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier delivers client notifications. Failures never roll back a
// committed transition.
type Notifier interface {
	NotifyClient(ctx context.Context, n Notification) error
}

// Invalidator tells the read side that cached views of an entity are stale.
type Invalidator interface {
	Invalidate(ctx context.Context, entityID string) error
}

// TransitionObserver counts workflow outcomes.
type TransitionObserver interface {
	ObserveTransition(entity, action, outcome string)
}

// Clock returns the current time; services take one so tests can pin it.
type Clock func() time.Time
