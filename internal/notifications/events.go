package notifications

import (
	"context"
	"encoding/json"

	"chainhire/internal/middleware"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated         = "post_created"
	EventPostDeleted         = "post_deleted"
	EventPostReactionUpdated = "post_reaction_updated"
	EventCommentCreated      = "comment_created"
	EventPostShared          = "post_shared"
	EventJobPosted           = "job_posted"
	EventPaymentConfirmed    = "payment_confirmed"
	EventPaymentFailed       = "payment_failed"
	EventApplicationReceived = "application_received"
)

// queuedEvents are also handed to the AMQP queue for offline consumers.
var queuedEvents = map[string]bool{
	EventJobPosted:           true,
	EventPaymentConfirmed:    true,
	EventPaymentFailed:       true,
	EventApplicationReceived: true,
}

// Event is the envelope written to websocket clients.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Forwarder hands events to an out-of-process consumer such as a message queue.
type Forwarder interface {
	Publish(ctx context.Context, eventType string, body []byte) error
}

// Bus fans events out to Redis subscribers (or the local hub when Redis is absent)
// and forwards the durable ones. A nil *Bus drops everything.
type Bus struct {
	notifier *Notifier
	hub      *Hub
	forward  Forwarder
}

// NewBus wires the delivery paths. Any argument may be nil.
func NewBus(n *Notifier, h *Hub, f Forwarder) *Bus {
	return &Bus{notifier: n, hub: h, forward: f}
}

// PublishUser delivers an event to one user's connections.
func (b *Bus) PublishUser(ctx context.Context, userID uint, eventType string, payload map[string]any) {
	if b == nil {
		return
	}
	message, ok := encode(ctx, eventType, payload)
	if !ok {
		return
	}
	delivered := false
	if b.notifier != nil && b.notifier.rdb != nil {
		if err := b.notifier.PublishUser(ctx, userID, message); err != nil {
			middleware.Logger.WarnContext(ctx, "redis publish failed, delivering locally",
				"event", eventType, "user_id", userID, "error", err)
		} else {
			delivered = true
		}
	}
	if !delivered && b.hub != nil {
		b.hub.Broadcast(userID, message)
	}
	b.queue(ctx, eventType, userID, payload)
}

// PublishBroadcast delivers an event to every connection.
func (b *Bus) PublishBroadcast(ctx context.Context, eventType string, payload map[string]any) {
	if b == nil {
		return
	}
	message, ok := encode(ctx, eventType, payload)
	if !ok {
		return
	}
	delivered := false
	if b.notifier != nil && b.notifier.rdb != nil {
		if err := b.notifier.PublishBroadcast(ctx, message); err != nil {
			middleware.Logger.WarnContext(ctx, "redis publish failed, delivering locally",
				"event", eventType, "error", err)
		} else {
			delivered = true
		}
	}
	if !delivered && b.hub != nil {
		b.hub.BroadcastAll(message)
	}
	b.queue(ctx, eventType, 0, payload)
}

func (b *Bus) queue(ctx context.Context, eventType string, userID uint, payload map[string]any) {
	if b.forward == nil || !queuedEvents[eventType] {
		return
	}
	body, err := json.Marshal(map[string]any{
		"type":    eventType,
		"user_id": userID,
		"payload": payload,
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal queued event", "event", eventType, "error", err)
		return
	}
	if err := b.forward.Publish(ctx, eventType, body); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to queue event", "event", eventType, "error", err)
	}
}

func encode(ctx context.Context, eventType string, payload map[string]any) (string, bool) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal event", "event", eventType, "error", err)
		return "", false
	}
	return string(data), true
}
