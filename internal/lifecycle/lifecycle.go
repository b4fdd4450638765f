// Package lifecycle implements C6 PlayerLifecycle: the
// Reserved→Greeted→InScene(scene)→Departed state machine and its
// transition side effects (spec.md §4.6).
package lifecycle

import (
	"context"

	"scenerelay/internal/admission"
	"scenerelay/internal/entitycache"
	"scenerelay/internal/scene"
	"scenerelay/internal/scenehost"
	"scenerelay/internal/session"
	"scenerelay/internal/transport"
	"scenerelay/internal/wire"
	"scenerelay/logging"
	logginglifecycle "scenerelay/logging/lifecycle"
	loggingscene "scenerelay/logging/scene"
)

// Transport is the narrow slice of transport.Transport the lifecycle needs:
// looking up one peer's outbox. Depending on this instead of the full
// Transport interface keeps this package's collaborator surface honest.
type Transport interface {
	OutboxFor(id uint16) transport.UpdateBuilder
}

// Controller wires SessionTable, SceneIndex, EntityCache, SceneHostElector,
// and AdmissionController together into the transition table from
// spec.md §4.6.
type Controller struct {
	table     *session.Table
	scenes    *scene.Index
	cache     *entitycache.Cache
	admission *admission.Controller
	transport Transport
	bus       HostAndConnectEmitter
	pub       logging.Publisher
}

// HostAndConnectEmitter is the subset of eventbus.Bus this package emits on.
type HostAndConnectEmitter interface {
	EmitConnect(playerID uint16, username string)
	EmitDisconnect(playerID uint16, username string, timeout bool)
	EmitHostChange(sceneName string, newHostID uint16)
}

func New(table *session.Table, scenes *scene.Index, cache *entitycache.Cache, admission *admission.Controller, tr Transport, bus HostAndConnectEmitter, pub logging.Publisher) *Controller {
	return &Controller{table: table, scenes: scenes, cache: cache, admission: admission, transport: tr, bus: bus, pub: pub}
}

// HandleLogin implements transport.Handlers.OnLoginRequest: admission
// evaluation, then (on acceptance) the Reserved→Greeted→InScene fallthrough
// spec.md §4.6 describes as part of the same Hello message.
func (c *Controller) HandleLogin(ctx context.Context, id uint16, remoteAddr string, hello wire.HelloFrame, outbox transport.UpdateBuilder) bool {
	result := c.admission.Evaluate(ctx, id, remoteAddr, hello.LoginRequest)
	outbox.SetLoginResponse(result.Status, result.AddonOrder, result.NetworkedAddons)
	if result.Status != wire.LoginSuccess {
		return false
	}

	rec := result.Record
	if err := c.table.Insert(rec); err != nil {
		outbox.SetLoginResponse(wire.LoginInvalidUser, nil, result.NetworkedAddons)
		return false
	}

	rec.SetPose(hello.Position, hello.Scale, hello.AnimationID)
	outbox.SetHelloClientData(id, result.AddonOrder)

	actor := logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(id)}
	logginglifecycle.Hello(ctx, c.pub, actor, hello.Scene)

	for _, peer := range c.table.Snapshot() {
		if peer.ID == id {
			continue
		}
		if peerOutbox := c.transport.OutboxFor(peer.ID); peerOutbox != nil {
			peerOutbox.AddPlayerConnectData(id, rec.Username)
		}
	}
	c.bus.EmitConnect(id, rec.Username)

	c.enterScene(ctx, rec, hello.Scene, hello.Position, hello.Scale, hello.AnimationID, outbox)
	return true
}

// HandleEnterScene implements the Greeted/InScene -- EnterScene --> InScene
// transition for an already-admitted player.
func (c *Controller) HandleEnterScene(ctx context.Context, id uint16, frame wire.EnterSceneFrame) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	outbox := c.transport.OutboxFor(id)
	if outbox == nil {
		return
	}
	if previous := rec.CurrentScene(); previous != "" {
		c.leaveScene(ctx, rec, previous, false, false)
	}
	c.enterScene(ctx, rec, frame.Scene, frame.Position, frame.Scale, frame.AnimationID, outbox)
}

// HandleLeaveScene implements InScene(S) -- LeaveScene --> Greeted.
func (c *Controller) HandleLeaveScene(ctx context.Context, id uint16) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	previous := rec.CurrentScene()
	if previous == "" {
		return
	}
	c.leaveScene(ctx, rec, previous, false, false)
}

// HandleDeparture implements any -- Disconnect/Timeout --> Departed: scene
// side effects first (if the player was InScene), then notify every
// remaining active record, then remove from the table. Peers already
// notified via the scene-scoped leave are not notified again — this is the
// one place the relay's egress differs from a literal re-reading of
// spec.md §4.6's two overlapping broadcast clauses, collapsed here to avoid
// double delivery to scene peers.
func (c *Controller) HandleDeparture(ctx context.Context, id uint16, timeout bool) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	snap := rec.Snapshot()

	notified := make(map[uint16]bool)
	if snap.CurrentScene != "" {
		for _, peer := range c.scenes.PeersInScene(snap.CurrentScene, id) {
			notified[peer.ID] = true
		}
		c.leaveScene(ctx, rec, snap.CurrentScene, true, timeout)
	}

	for _, peer := range c.table.Snapshot() {
		if peer.ID == id || notified[peer.ID] {
			continue
		}
		if peerOutbox := c.transport.OutboxFor(peer.ID); peerOutbox != nil {
			peerOutbox.AddPlayerDisconnectData(id, snap.Username, timeout)
		}
	}

	c.table.Remove(id)
	c.bus.EmitDisconnect(id, snap.Username, timeout)
	logginglifecycle.Departed(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(id)}, snap.Username, timeout)
}

// enterScene implements the EnterScene side effects of spec.md §4.6.
func (c *Controller) enterScene(ctx context.Context, rec *session.PlayerRecord, newScene string, pos wire.Vec2, scale bool, animationID int32, outbox transport.UpdateBuilder) {
	from := rec.CurrentScene()
	rec.SetPose(pos, scale, animationID)
	rec.SetCurrentScene(newScene)

	others := c.scenes.PeersInScene(newScene, rec.ID)
	peerSnapshots := make([]transport.PeerSnapshot, 0, len(others))
	selfSnapshot := rec.Snapshot()
	for _, peer := range others {
		peerSnap := peer.Snapshot()
		peerSnapshots = append(peerSnapshots, toPeerSnapshot(peerSnap))
		if peerOutbox := c.transport.OutboxFor(peer.ID); peerOutbox != nil {
			peerOutbox.AddPlayerEnterSceneData(toPeerSnapshot(selfSnapshot))
		}
	}

	entries := c.cache.SnapshotScene(newScene)
	spawns := make([]transport.EntitySpawnData, 0)
	updates := make([]transport.EntityUpdateData, 0, len(entries))
	for _, entry := range entries {
		if entry.State.Spawned {
			spawns = append(spawns, transport.EntitySpawnData{
				EntityID:     entry.Key.EntityID,
				SpawningType: entry.State.SpawningType,
				SpawnedType:  entry.State.SpawnedType,
			})
		}
		updates = append(updates, transport.EntityUpdateData{
			EntityID:          entry.Key.EntityID,
			Position:          entry.State.Position,
			Scale:             entry.State.Scale,
			AnimationID:       entry.State.AnimationID,
			AnimationWrapMode: entry.State.AnimationWrapMode,
			IsActive:          entry.State.IsActive,
			GenericData:       entry.State.GenericData,
			HostFsmData:       entry.State.HostFsmData,
		})
	}

	isHost := scenehost.ShouldBecomeInitialHost(others)
	if isHost {
		rec.SetSceneHost(true)
		loggingscene.HostElected(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(rec.ID)}, newScene)
	}

	outbox.AddPlayerAlreadyInSceneData(peerSnapshots, spawns, updates, isHost)
	logginglifecycle.EnterScene(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(rec.ID)}, from, newScene)
}

// leaveScene implements the LeaveScene side effects shared by transition,
// disconnect, and timeout (spec.md §4.6).
func (c *Controller) leaveScene(ctx context.Context, rec *session.PlayerRecord, previousScene string, disconnect, timeout bool) {
	snap := rec.Snapshot()
	others := c.scenes.PeersInScene(previousScene, rec.ID)

	for _, peer := range others {
		peerOutbox := c.transport.OutboxFor(peer.ID)
		if peerOutbox == nil {
			continue
		}
		if disconnect {
			peerOutbox.AddPlayerDisconnectData(rec.ID, snap.Username, timeout)
		} else {
			peerOutbox.AddPlayerLeaveSceneData(rec.ID)
		}
	}

	if snap.IsSceneHost {
		successor := scenehost.Elect(others)
		if successor != nil {
			successor.SetSceneHost(true)
			if succOutbox := c.transport.OutboxFor(successor.ID); succOutbox != nil {
				succOutbox.SetSceneHostTransfer()
			}
			c.bus.EmitHostChange(previousScene, successor.ID)
			loggingscene.HostElected(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(successor.ID)}, previousScene)
		} else {
			loggingscene.HostCleared(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(rec.ID)}, previousScene)
		}
		rec.SetSceneHost(false)
	}

	rec.SetCurrentScene("")
	logginglifecycle.LeaveScene(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(rec.ID)}, previousScene)

	if c.scenes.IsSceneEmpty(previousScene) {
		c.cache.PurgeScene(previousScene)
		loggingscene.Emptied(ctx, c.pub, previousScene)
	}
}

func toPeerSnapshot(s session.Snapshot) transport.PeerSnapshot {
	return transport.PeerSnapshot{
		ID:          s.ID,
		Username:    s.Username,
		Position:    s.Position,
		Scale:       s.Scale,
		AnimationID: s.AnimationID,
		Team:        s.Team,
		SkinID:      s.SkinID,
	}
}
