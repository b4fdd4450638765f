// Package entityrelay implements C8 EntityRelay: applying and forwarding
// entity spawn / entity-update streams originated by a scene's host,
// merging them into EntityCache (spec.md §4.8).
package entityrelay

import (
	"context"

	"scenerelay/internal/entitycache"
	"scenerelay/internal/scene"
	"scenerelay/internal/session"
	"scenerelay/internal/transport"
	"scenerelay/internal/wire"
	"scenerelay/logging"
	loggingentity "scenerelay/logging/entity"
)

// Transport is the narrow outbox-lookup slice this package needs.
type Transport interface {
	OutboxFor(id uint16) transport.UpdateBuilder
}

// Controller applies inbound EntitySpawn/EntityUpdate frames against
// EntityCache and fans the corresponding single-field update out to every
// peer currently in the sender's scene.
type Controller struct {
	table     *session.Table
	scenes    *scene.Index
	cache     *entitycache.Cache
	transport Transport
	pub       logging.Publisher
}

func New(table *session.Table, scenes *scene.Index, cache *entitycache.Cache, tr Transport, pub logging.Publisher) *Controller {
	return &Controller{table: table, scenes: scenes, cache: cache, transport: tr, pub: pub}
}

// HandleSpawn rejects silently unless the sender currently holds scene-host
// status for its own scene, per spec.md §4.8.
func (c *Controller) HandleSpawn(ctx context.Context, id uint16, frame wire.EntitySpawnFrame) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	snap := rec.Snapshot()
	if !snap.IsSceneHost {
		loggingentity.SpawnRejected(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(id)}, snap.CurrentScene, frame.EntityID)
		return
	}

	key := entitycache.Key{Scene: snap.CurrentScene, EntityID: frame.EntityID}
	state := c.cache.GetOrCreate(key)
	state.ApplySpawn(frame.SpawningType, frame.SpawnedType)

	c.broadcastScene(snap.CurrentScene, id, func(o transport.UpdateBuilder) {
		o.SetEntitySpawn(frame.EntityID, frame.SpawningType, frame.SpawnedType)
	})
}

// HandleUpdate is accepted from any sender — not just the current scene
// host — to tolerate update ordering races during host handoff
// (spec.md §4.8).
func (c *Controller) HandleUpdate(ctx context.Context, id uint16, frame wire.EntityUpdateFrame) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	sceneName := rec.CurrentScene()
	key := entitycache.Key{Scene: sceneName, EntityID: frame.EntityID}
	state := c.cache.GetOrCreate(key)
	state.ApplyUpdate(frame)

	if frame.Fields.Has(wire.EntityUpdatePosition) {
		c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) { o.UpdateEntityPosition(frame.EntityID, frame.Position) })
	}
	if frame.Fields.Has(wire.EntityUpdateScale) {
		c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) { o.UpdateEntityScale(frame.EntityID, frame.Scale) })
	}
	if frame.Fields.Has(wire.EntityUpdateAnimation) {
		c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) {
			o.UpdateEntityAnimation(frame.EntityID, frame.AnimationID, frame.AnimationWrapMode)
		})
	}
	if frame.Fields.Has(wire.EntityUpdateActive) {
		c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) { o.UpdateEntityIsActive(frame.EntityID, frame.Active) })
	}
	if frame.Fields.Has(wire.EntityUpdateData) {
		for _, entry := range frame.Data {
			e := entry
			c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) { o.AddEntityData(frame.EntityID, e) })
		}
	}
	if frame.Fields.Has(wire.EntityUpdateHostFsm) {
		merged := state.Snapshot().HostFsmData
		for fsmIndex := range frame.HostFsm {
			snapshot := merged[fsmIndex]
			fi := fsmIndex
			c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) { o.AddEntityHostFsmData(frame.EntityID, fi, snapshot) })
		}
	}
}

func (c *Controller) broadcastScene(sceneName string, excludeID uint16, fn func(transport.UpdateBuilder)) {
	for _, peer := range c.scenes.PeersInScene(sceneName, excludeID) {
		if outbox := c.transport.OutboxFor(peer.ID); outbox != nil {
			fn(outbox)
		}
	}
}
