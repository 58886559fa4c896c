// Package service holds the business rules behind the HTTP handlers.
package service

import (
	"context"
)

// EventPublisher delivers realtime events. *notifications.Bus satisfies it.
type EventPublisher interface {
	PublishUser(ctx context.Context, userID uint, eventType string, payload map[string]any)
	PublishBroadcast(ctx context.Context, eventType string, payload map[string]any)
}

type noopEvents struct{}

func (noopEvents) PublishUser(context.Context, uint, string, map[string]any) {}
func (noopEvents) PublishBroadcast(context.Context, string, map[string]any)  {}

func eventsOrNoop(e EventPublisher) EventPublisher {
	if e == nil {
		return noopEvents{}
	}
	return e
}

// AdminChecker reports whether a user has admin privileges.
type AdminChecker func(ctx context.Context, userID uint) (bool, error)
