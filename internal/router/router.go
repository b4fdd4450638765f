// Package router implements C7 UpdateRouter: ingress dispatch by
// wire.PacketKind to a handler in PlayerLifecycle, EntityRelay, or
// ChatRouter, and the scene-filtered/global egress fan-out those handlers
// that don't already own a destination (PlayerUpdate, PlayerMapUpdate,
// PlayerDeath, PlayerTeamUpdate, PlayerSkinUpdate) depend on (spec.md §4.7).
package router

import (
	"context"
	"encoding/json"

	"scenerelay/internal/entityrelay"
	"scenerelay/internal/lifecycle"
	"scenerelay/internal/scene"
	"scenerelay/internal/session"
	"scenerelay/internal/settings"
	"scenerelay/internal/transport"
	"scenerelay/internal/wire"
	"scenerelay/logging"
)

// Transport is the narrow outbox-lookup slice of transport.Transport this
// package's broadcast helpers need.
type Transport interface {
	OutboxFor(id uint16) transport.UpdateBuilder
}

// ChatHandler is the ChatRouter (C9) entry point, kept as a narrow interface
// so this package does not import internal/chat directly; core passes the
// chat.Controller in as this interface.
type ChatHandler interface {
	HandleChatMessage(ctx context.Context, id uint16, text string)
}

// Controller dispatches one decoded inbound frame per call (spec.md §4.7).
type Controller struct {
	table     *session.Table
	scenes    *scene.Index
	transport Transport
	settings  func() settings.Settings
	lifecycle *lifecycle.Controller
	entities  *entityrelay.Controller
	chat      ChatHandler
	pub       logging.Publisher
}

func New(table *session.Table, scenes *scene.Index, tr Transport, settingsFn func() settings.Settings, lc *lifecycle.Controller, entities *entityrelay.Controller, chat ChatHandler, pub logging.Publisher) *Controller {
	return &Controller{table: table, scenes: scenes, transport: tr, settings: settingsFn, lifecycle: lc, entities: entities, chat: chat, pub: pub}
}

// Dispatch is the transport.Handlers.OnMessage target: one decoded frame in,
// routed by its PacketKind.
func (c *Controller) Dispatch(ctx context.Context, id uint16, envelope wire.InboundEnvelope) {
	switch envelope.Kind {
	case wire.PacketPlayerEnterScene:
		var frame wire.EnterSceneFrame
		if json.Unmarshal(envelope.Payload, &frame) == nil {
			c.lifecycle.HandleEnterScene(ctx, id, frame)
		}
	case wire.PacketPlayerLeaveScene:
		c.lifecycle.HandleLeaveScene(ctx, id)
	case wire.PacketPlayerUpdate:
		var frame wire.PlayerUpdateFrame
		if json.Unmarshal(envelope.Payload, &frame) == nil {
			c.handlePlayerUpdate(id, frame)
		}
	case wire.PacketPlayerMapUpdate:
		var frame wire.PlayerMapUpdateFrame
		if json.Unmarshal(envelope.Payload, &frame) == nil {
			c.handlePlayerMapUpdate(id, frame)
		}
	case wire.PacketEntitySpawn:
		var frame wire.EntitySpawnFrame
		if json.Unmarshal(envelope.Payload, &frame) == nil {
			c.entities.HandleSpawn(ctx, id, frame)
		}
	case wire.PacketEntityUpdate:
		var frame wire.EntityUpdateFrame
		if json.Unmarshal(envelope.Payload, &frame) == nil {
			c.entities.HandleUpdate(ctx, id, frame)
		}
	case wire.PacketPlayerDisconnect:
		// An explicit graceful-quit notice; the transport's eventual
		// OnClientDisconnect callback for the same id is a safe no-op once
		// the record is already gone.
		c.lifecycle.HandleDeparture(ctx, id, false)
	case wire.PacketPlayerDeath:
		c.handlePlayerDeath(id)
	case wire.PacketPlayerTeamUpdate:
		var frame wire.TeamUpdateFrame
		if json.Unmarshal(envelope.Payload, &frame) == nil {
			c.handleTeamUpdate(id, frame)
		}
	case wire.PacketPlayerSkinUpdate:
		var frame wire.SkinUpdateFrame
		if json.Unmarshal(envelope.Payload, &frame) == nil {
			c.handleSkinUpdate(id, frame)
		}
	case wire.PacketChatMessage:
		var frame wire.ChatFrame
		if json.Unmarshal(envelope.Payload, &frame) == nil {
			c.chat.HandleChatMessage(ctx, id, frame.Text)
		}
	}
}

func (c *Controller) handlePlayerUpdate(id uint16, frame wire.PlayerUpdateFrame) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	sceneName := rec.CurrentScene()

	if frame.Fields.Has(wire.PlayerUpdatePosition) {
		rec.SetPosition(frame.Position)
		c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) { o.UpdatePlayerPosition(id, frame.Position) })
	}
	if frame.Fields.Has(wire.PlayerUpdateScale) {
		rec.SetScale(frame.Scale)
		c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) { o.UpdatePlayerScale(id, frame.Scale) })
	}
	if frame.Fields.Has(wire.PlayerUpdateAnimation) {
		c.applyAnimation(rec, frame.Animation)
		c.broadcastScene(sceneName, id, func(o transport.UpdateBuilder) { o.UpdatePlayerAnimation(id, frame.Animation) })
	}
	if frame.Fields.Has(wire.PlayerUpdateMapPosition) {
		rec.SetMapPosition(frame.MapPosition)
		cfg := c.settings()
		snap := rec.Snapshot()
		if (cfg.AlwaysShowMapIcons || cfg.OnlyBroadcastMapIconWithWaywardCompass) && snap.HasMapIcon {
			c.broadcastGlobal(id, func(o transport.UpdateBuilder) { o.UpdatePlayerMapPosition(id, frame.MapPosition) })
		}
	}
}

// applyAnimation sets the record's canonical animationId from the last
// sub-DashEnd clip in the list, per spec.md §4.7 / §6's sentinel rule.
func (c *Controller) applyAnimation(rec *session.PlayerRecord, entries []wire.AnimationEntry) {
	canonical := rec.Snapshot().AnimationID
	for _, e := range entries {
		if e.ClipID < wire.AnimationSentinelDashEnd {
			canonical = e.ClipID
		}
	}
	rec.SetAnimationID(canonical)
}

func (c *Controller) handlePlayerMapUpdate(id uint16, frame wire.PlayerMapUpdateFrame) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	rec.SetHasMapIcon(frame.HasMapIcon)
	c.broadcastGlobal(id, func(o transport.UpdateBuilder) { o.UpdatePlayerMapIcon(id, frame.HasMapIcon) })
	if frame.HasMapIcon {
		pos := rec.Snapshot().MapPosition
		c.broadcastGlobal(id, func(o transport.UpdateBuilder) { o.UpdatePlayerMapPosition(id, pos) })
	}
}

func (c *Controller) handlePlayerDeath(id uint16) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	c.broadcastScene(rec.CurrentScene(), id, func(o transport.UpdateBuilder) { o.AddPlayerDeathData(id) })
}

func (c *Controller) handleTeamUpdate(id uint16, frame wire.TeamUpdateFrame) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	rec.SetTeam(frame.Team)
	c.broadcastScene(rec.CurrentScene(), id, func(o transport.UpdateBuilder) { o.AddPlayerTeamUpdateData(id, frame.Team) })
}

func (c *Controller) handleSkinUpdate(id uint16, frame wire.SkinUpdateFrame) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	if !rec.SetSkinID(frame.SkinID) {
		return
	}
	c.broadcastScene(rec.CurrentScene(), id, func(o transport.UpdateBuilder) { o.AddPlayerSkinUpdateData(id, frame.SkinID) })
}

func (c *Controller) broadcastScene(sceneName string, excludeID uint16, fn func(transport.UpdateBuilder)) {
	for _, peer := range c.scenes.PeersInScene(sceneName, excludeID) {
		if outbox := c.transport.OutboxFor(peer.ID); outbox != nil {
			fn(outbox)
		}
	}
}

func (c *Controller) broadcastGlobal(excludeID uint16, fn func(transport.UpdateBuilder)) {
	for _, peer := range c.table.Snapshot() {
		if peer.ID == excludeID {
			continue
		}
		if outbox := c.transport.OutboxFor(peer.ID); outbox != nil {
			fn(outbox)
		}
	}
}
