// Package transporttest provides a recording fake of transport.UpdateBuilder
// for the core packages' tests (lifecycle, router, entityrelay, chat) so
// each of them doesn't hand-roll a 26-method stub of its own.
package transporttest

import (
	"scenerelay/internal/settings"
	"scenerelay/internal/transport"
	"scenerelay/internal/wire"
)

// Outbox records every call made against it in call-order-preserving slices,
// standing in for transport.UpdateBuilder in tests that only need to assert
// "was X sent to this peer", not exercise the real JSON framing.
type Outbox struct {
	Hello             *hello
	PlayerConnect     []playerConnect
	PlayerDisconnect  []playerDisconnect
	PlayerEnterScene  []transport.PeerSnapshot
	PlayerLeaveScene  []uint16
	AlreadyInScene    []alreadyInScene
	PlayerDeath       []uint16
	PlayerTeamUpdate  []teamUpdate
	PlayerSkinUpdate  []skinUpdate
	ChatMessages      []string
	PlayerPositions   []posUpdate
	PlayerScales      []scaleUpdate
	PlayerMapIcons    []mapIconUpdate
	PlayerMapPosition []posUpdate
	PlayerAnimations  []animUpdate
	EntitySpawns      []entitySpawn
	EntityPositions   []entityPos
	EntityScales      []entityScale
	EntityAnimations  []entityAnim
	EntityActive      []entityActive
	EntityData        []entityData
	EntityHostFsm     []entityHostFsm
	SceneHostTransfer int
	ServerSettings    []settings.Settings
	LoginResponse     []loginResponse
	Disconnect        []wire.DisconnectReason
}

type hello struct {
	SelfID     uint16
	AddonOrder []int32
}

type playerConnect struct {
	ID       uint16
	Username string
}

type playerDisconnect struct {
	ID       uint16
	Username string
	Timeout  bool
}

type alreadyInScene struct {
	Peers         []transport.PeerSnapshot
	EntitySpawns  []transport.EntitySpawnData
	EntityUpdates []transport.EntityUpdateData
	SceneHost     bool
}

type teamUpdate struct {
	ID   uint16
	Team string
}

type skinUpdate struct {
	ID     uint16
	SkinID string
}

type posUpdate struct {
	ID  uint16
	Pos wire.Vec2
}

type scaleUpdate struct {
	ID    uint16
	Scale bool
}

type mapIconUpdate struct {
	ID      uint16
	HasIcon bool
}

type animUpdate struct {
	ID      uint16
	Entries []wire.AnimationEntry
}

type entitySpawn struct {
	EntityID               uint16
	SpawningType, SpawnedType int32
}

type entityPos struct {
	EntityID uint16
	Pos      wire.Vec2
}

type entityScale struct {
	EntityID uint16
	Scale    wire.Vec2
}

type entityAnim struct {
	EntityID              uint16
	AnimationID, WrapMode int32
}

type entityActive struct {
	EntityID uint16
	Active   bool
}

type entityData struct {
	EntityID uint16
	Entry    wire.GenericDataEntry
}

type entityHostFsm struct {
	EntityID uint16
	FsmIndex int32
	Snapshot wire.FsmSnapshot
}

type loginResponse struct {
	Status          wire.LoginStatus
	AddonOrder      []int32
	NetworkedAddons []wire.AddonDescriptor
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) SetHelloClientData(selfID uint16, addonOrder []int32) {
	o.Hello = &hello{SelfID: selfID, AddonOrder: addonOrder}
}

func (o *Outbox) AddPlayerConnectData(id uint16, username string) {
	o.PlayerConnect = append(o.PlayerConnect, playerConnect{ID: id, Username: username})
}

func (o *Outbox) AddPlayerDisconnectData(id uint16, username string, timeout bool) {
	o.PlayerDisconnect = append(o.PlayerDisconnect, playerDisconnect{ID: id, Username: username, Timeout: timeout})
}

func (o *Outbox) AddPlayerEnterSceneData(peer transport.PeerSnapshot) {
	o.PlayerEnterScene = append(o.PlayerEnterScene, peer)
}

func (o *Outbox) AddPlayerLeaveSceneData(id uint16) {
	o.PlayerLeaveScene = append(o.PlayerLeaveScene, id)
}

func (o *Outbox) AddPlayerAlreadyInSceneData(peers []transport.PeerSnapshot, entitySpawns []transport.EntitySpawnData, entityUpdates []transport.EntityUpdateData, sceneHost bool) {
	o.AlreadyInScene = append(o.AlreadyInScene, alreadyInScene{Peers: peers, EntitySpawns: entitySpawns, EntityUpdates: entityUpdates, SceneHost: sceneHost})
}

func (o *Outbox) AddPlayerDeathData(id uint16) {
	o.PlayerDeath = append(o.PlayerDeath, id)
}

func (o *Outbox) AddPlayerTeamUpdateData(id uint16, team string) {
	o.PlayerTeamUpdate = append(o.PlayerTeamUpdate, teamUpdate{ID: id, Team: team})
}

func (o *Outbox) AddPlayerSkinUpdateData(id uint16, skinID string) {
	o.PlayerSkinUpdate = append(o.PlayerSkinUpdate, skinUpdate{ID: id, SkinID: skinID})
}

func (o *Outbox) AddChatMessage(text string) {
	o.ChatMessages = append(o.ChatMessages, text)
}

func (o *Outbox) UpdatePlayerPosition(id uint16, pos wire.Vec2) {
	o.PlayerPositions = append(o.PlayerPositions, posUpdate{ID: id, Pos: pos})
}

func (o *Outbox) UpdatePlayerScale(id uint16, scale bool) {
	o.PlayerScales = append(o.PlayerScales, scaleUpdate{ID: id, Scale: scale})
}

func (o *Outbox) UpdatePlayerMapIcon(id uint16, hasIcon bool) {
	o.PlayerMapIcons = append(o.PlayerMapIcons, mapIconUpdate{ID: id, HasIcon: hasIcon})
}

func (o *Outbox) UpdatePlayerMapPosition(id uint16, pos wire.Vec2) {
	o.PlayerMapPosition = append(o.PlayerMapPosition, posUpdate{ID: id, Pos: pos})
}

func (o *Outbox) UpdatePlayerAnimation(id uint16, entries []wire.AnimationEntry) {
	o.PlayerAnimations = append(o.PlayerAnimations, animUpdate{ID: id, Entries: entries})
}

func (o *Outbox) SetEntitySpawn(entityID uint16, spawningType, spawnedType int32) {
	o.EntitySpawns = append(o.EntitySpawns, entitySpawn{EntityID: entityID, SpawningType: spawningType, SpawnedType: spawnedType})
}

func (o *Outbox) UpdateEntityPosition(entityID uint16, pos wire.Vec2) {
	o.EntityPositions = append(o.EntityPositions, entityPos{EntityID: entityID, Pos: pos})
}

func (o *Outbox) UpdateEntityScale(entityID uint16, scale wire.Vec2) {
	o.EntityScales = append(o.EntityScales, entityScale{EntityID: entityID, Scale: scale})
}

func (o *Outbox) UpdateEntityAnimation(entityID uint16, animationID, wrapMode int32) {
	o.EntityAnimations = append(o.EntityAnimations, entityAnim{EntityID: entityID, AnimationID: animationID, WrapMode: wrapMode})
}

func (o *Outbox) UpdateEntityIsActive(entityID uint16, active bool) {
	o.EntityActive = append(o.EntityActive, entityActive{EntityID: entityID, Active: active})
}

func (o *Outbox) AddEntityData(entityID uint16, entry wire.GenericDataEntry) {
	o.EntityData = append(o.EntityData, entityData{EntityID: entityID, Entry: entry})
}

func (o *Outbox) AddEntityHostFsmData(entityID uint16, fsmIndex int32, snapshot wire.FsmSnapshot) {
	o.EntityHostFsm = append(o.EntityHostFsm, entityHostFsm{EntityID: entityID, FsmIndex: fsmIndex, Snapshot: snapshot})
}

func (o *Outbox) SetSceneHostTransfer() {
	o.SceneHostTransfer++
}

func (o *Outbox) UpdateServerSettings(s settings.Settings) {
	o.ServerSettings = append(o.ServerSettings, s)
}

func (o *Outbox) SetLoginResponse(status wire.LoginStatus, addonOrder []int32, networkedAddons []wire.AddonDescriptor) {
	o.LoginResponse = append(o.LoginResponse, loginResponse{Status: status, AddonOrder: addonOrder, NetworkedAddons: networkedAddons})
}

func (o *Outbox) SetDisconnect(reason wire.DisconnectReason) {
	o.Disconnect = append(o.Disconnect, reason)
}

// Transport is an in-memory transport.Transport-shaped fake: Outboxes created
// on demand via Outbox so a test can register peers before wiring a
// Controller, then inspect what each peer would have received.
type Transport struct {
	outboxes map[uint16]*Outbox
}

func NewTransport() *Transport {
	return &Transport{outboxes: make(map[uint16]*Outbox)}
}

// Outbox returns (creating if necessary) the recording outbox for id.
func (t *Transport) Outbox(id uint16) *Outbox {
	if ob, ok := t.outboxes[id]; ok {
		return ob
	}
	ob := NewOutbox()
	t.outboxes[id] = ob
	return ob
}

// OutboxFor implements the narrow Transport interface every core package
// depends on.
func (t *Transport) OutboxFor(id uint16) transport.UpdateBuilder {
	if ob, ok := t.outboxes[id]; ok {
		return ob
	}
	return nil
}
