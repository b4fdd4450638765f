package lifecycle

import (
	"context"

	"scenerelay/logging"
)

const (
	EventHello       logging.EventType = "lifecycle.hello"
	EventEnterScene  logging.EventType = "lifecycle.enter_scene"
	EventLeaveScene  logging.EventType = "lifecycle.leave_scene"
	EventDisconnect  logging.EventType = "lifecycle.disconnect"
	EventTimeout     logging.EventType = "lifecycle.timeout"
)

type SceneTransitionPayload struct {
	FromScene string `json:"fromScene,omitempty"`
	ToScene   string `json:"toScene,omitempty"`
}

type DepartedPayload struct {
	Username string `json:"username"`
	Timeout  bool   `json:"timeout"`
}

func Hello(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, scene string) {
	publish(ctx, pub, EventHello, actor, SceneTransitionPayload{ToScene: scene})
}

func EnterScene(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, from, to string) {
	publish(ctx, pub, EventEnterScene, actor, SceneTransitionPayload{FromScene: from, ToScene: to})
}

func LeaveScene(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, scene string) {
	publish(ctx, pub, EventLeaveScene, actor, SceneTransitionPayload{FromScene: scene})
}

func Departed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, username string, timeout bool) {
	eventType := EventDisconnect
	if timeout {
		eventType = EventTimeout
	}
	publish(ctx, pub, eventType, actor, DepartedPayload{Username: username, Timeout: timeout})
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
