package scene

import (
	"context"

	"scenerelay/logging"
)

const (
	EventHostElected  logging.EventType = "scene.host_elected"
	EventHostCleared  logging.EventType = "scene.host_cleared"
	EventSceneEmptied logging.EventType = "scene.emptied"
)

type HostChangedPayload struct {
	Scene string `json:"scene"`
}

func HostElected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, sceneName string) {
	publish(ctx, pub, EventHostElected, actor, sceneName)
}

func HostCleared(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, sceneName string) {
	publish(ctx, pub, EventHostCleared, actor, sceneName)
}

func Emptied(ctx context.Context, pub logging.Publisher, sceneName string) {
	publish(ctx, pub, EventSceneEmptied, logging.EntityRef{Kind: logging.EntityKindScene, ID: sceneName}, sceneName)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, actor logging.EntityRef, sceneName string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryScene,
		Payload:  HostChangedPayload{Scene: sceneName},
	})
}
