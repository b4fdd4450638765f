package entity

import (
	"context"

	"scenerelay/logging"
)

const (
	EventSpawnRejected logging.EventType = "entity.spawn_rejected"
	EventScenePurged   logging.EventType = "entity.scene_purged"
)

type SpawnRejectedPayload struct {
	Scene    string `json:"scene"`
	EntityID uint16 `json:"entityId"`
}

func SpawnRejected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, sceneName string, entityID uint16) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpawnRejected,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryEntity,
		Payload:  SpawnRejectedPayload{Scene: sceneName, EntityID: entityID},
	})
}

func ScenePurged(ctx context.Context, pub logging.Publisher, sceneName string, count int) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventScenePurged,
		Actor:    logging.EntityRef{Kind: logging.EntityKindScene, ID: sceneName},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEntity,
		Payload:  map[string]any{"scene": sceneName, "purged": count},
	})
}
