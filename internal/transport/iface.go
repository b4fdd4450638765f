// Package transport defines the Transport/UpdateBuilder capability spec.md
// §6 places out of scope for the core, plus (in ws.go) the one concrete
// implementation this repository ships: a gorilla/websocket transport. Core
// packages (router, lifecycle, entityrelay, chat) depend only on the
// interfaces in this file, never on the websocket implementation directly.
package transport

import (
	"scenerelay/internal/settings"
	"scenerelay/internal/wire"
)

// PeerSnapshot is the identity/pose subset of a PlayerRecord the wire
// vocabulary exposes to other peers.
type PeerSnapshot struct {
	ID          uint16
	Username    string
	Position    wire.Vec2
	Scale       bool
	AnimationID int32
	Team        string
	SkinID      string
}

// EntitySpawnData and EntityUpdateData are the replayed-entity shapes sent
// in AddPlayerAlreadyInSceneData, mirroring EntityCache's State fields.
type EntitySpawnData struct {
	EntityID     uint16
	SpawningType int32
	SpawnedType  int32
}

type EntityUpdateData struct {
	EntityID          uint16
	Position          *wire.Vec2
	Scale             *wire.Vec2
	AnimationID       *int32
	AnimationWrapMode int32
	IsActive          *bool
	GenericData       []wire.GenericDataEntry
	HostFsmData       map[int32]wire.FsmSnapshot
}

// UpdateBuilder is the per-client outbox: every method is a non-blocking
// enqueue onto the next outbound frame for that client (spec.md §6).
type UpdateBuilder interface {
	SetHelloClientData(selfID uint16, addonOrder []int32)
	AddPlayerConnectData(id uint16, username string)
	AddPlayerDisconnectData(id uint16, username string, timeout bool)
	AddPlayerEnterSceneData(peer PeerSnapshot)
	AddPlayerLeaveSceneData(id uint16)
	AddPlayerAlreadyInSceneData(peers []PeerSnapshot, entitySpawns []EntitySpawnData, entityUpdates []EntityUpdateData, sceneHost bool)
	AddPlayerDeathData(id uint16)
	AddPlayerTeamUpdateData(id uint16, team string)
	AddPlayerSkinUpdateData(id uint16, skinID string)
	AddChatMessage(text string)
	UpdatePlayerPosition(id uint16, pos wire.Vec2)
	UpdatePlayerScale(id uint16, scale bool)
	UpdatePlayerMapIcon(id uint16, hasIcon bool)
	UpdatePlayerMapPosition(id uint16, pos wire.Vec2)
	UpdatePlayerAnimation(id uint16, entries []wire.AnimationEntry)
	SetEntitySpawn(entityID uint16, spawningType, spawnedType int32)
	UpdateEntityPosition(entityID uint16, pos wire.Vec2)
	UpdateEntityScale(entityID uint16, scale wire.Vec2)
	UpdateEntityAnimation(entityID uint16, animationID, wrapMode int32)
	UpdateEntityIsActive(entityID uint16, active bool)
	AddEntityData(entityID uint16, entry wire.GenericDataEntry)
	AddEntityHostFsmData(entityID uint16, fsmIndex int32, snapshot wire.FsmSnapshot)
	SetSceneHostTransfer()
	UpdateServerSettings(s settings.Settings)
	SetLoginResponse(status wire.LoginStatus, addonOrder []int32, networkedAddons []wire.AddonDescriptor)
	SetDisconnect(reason wire.DisconnectReason)
}

// Handlers are the core-provided callbacks a Transport invokes. OnMessage is
// the one hook spec.md §6 leaves implicit: "inbound frames from Transport
// are dispatched by UpdateRouter" presumes Transport hands each decoded
// frame to the core somehow. OnLoginRequest takes the full HelloFrame
// (rather than just its embedded LoginRequest) because spec.md §4.6 folds
// the Reserved→Greeted→InScene transition into the same Hello message: the
// scene and entering pose ride along with the login credentials.
type Handlers struct {
	OnLoginRequest     func(id uint16, remoteAddr string, hello wire.HelloFrame, outbox UpdateBuilder) (accept bool)
	OnMessage          func(id uint16, envelope wire.InboundEnvelope)
	OnClientTimeout    func(id uint16)
	OnClientDisconnect func(id uint16)
	OnShutdown         func()
}

// Transport is the external capability the core consumes (spec.md §6). Its
// concrete packet framing, ACK, and retransmission machinery is explicitly
// out of scope for the core (spec.md §1); ws.go's WebSocketTransport is the
// one implementation shipped here.
type Transport interface {
	SetHandlers(h Handlers)
	StartListening(port int) error
	Stop() error
	IsStarted() bool
	OutboxFor(id uint16) UpdateBuilder
	SetDataForAllClients(fn func(UpdateBuilder))
}
