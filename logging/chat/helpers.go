package chat

import (
	"context"

	"scenerelay/logging"
)

const (
	EventDispatched logging.EventType = "chat.dispatched"
	EventCancelled  logging.EventType = "chat.cancelled"
	EventBroadcast  logging.EventType = "chat.broadcast"
	EventRejected   logging.EventType = "chat.rejected"
)

type MessagePayload struct {
	Text string `json:"text,omitempty"`
}

type RejectedPayload struct {
	Length int `json:"length"`
}

func Dispatched(ctx context.Context, pub logging.Publisher, actor logging.EntityRef) {
	publish(ctx, pub, EventDispatched, actor, "")
}

func Cancelled(ctx context.Context, pub logging.Publisher, actor logging.EntityRef) {
	publish(ctx, pub, EventCancelled, actor, "")
}

func Broadcast(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, text string) {
	publish(ctx, pub, EventBroadcast, actor, text)
}

// MessageRejected logs a BroadcastMessage call that failed the
// non-empty/MaxMessageLength validation (spec.md §4.9).
func MessageRejected(ctx context.Context, pub logging.Publisher, length int) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRejected,
		Actor:    logging.EntityRef{Kind: logging.EntityKindServer},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryChat,
		Payload:  RejectedPayload{Length: length},
	})
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, actor logging.EntityRef, text string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryChat,
		Payload:  MessagePayload{Text: text},
	})
}
