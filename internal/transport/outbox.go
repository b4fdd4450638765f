package transport

import (
	"encoding/json"
	"sync"

	"scenerelay/internal/settings"
	"scenerelay/internal/wire"
)

// outboundFrame is the coalesced set of field updates one dispatch turn
// accumulated for a single client. Every UpdateBuilder method appends to
// one of these slices/pointers; flush serializes whatever is non-empty into
// a single JSON frame, matching the teacher's per-tick stateMessage
// coalescing (mine-and-die's server/messages.go stateMessage).
type outboundFrame struct {
	Hello                *helloWire                `json:"hello,omitempty"`
	PlayerConnect        []playerConnectWire       `json:"playerConnect,omitempty"`
	PlayerDisconnect     []playerDisconnectWire    `json:"playerDisconnect,omitempty"`
	PlayerEnterScene     []PeerSnapshot            `json:"playerEnterScene,omitempty"`
	PlayerLeaveScene     []uint16                  `json:"playerLeaveScene,omitempty"`
	PlayerAlreadyInScene *alreadyInSceneWire       `json:"playerAlreadyInScene,omitempty"`
	PlayerDeath          []uint16                  `json:"playerDeath,omitempty"`
	PlayerTeamUpdate     []teamUpdateWire          `json:"playerTeamUpdate,omitempty"`
	PlayerSkinUpdate     []skinUpdateWire          `json:"playerSkinUpdate,omitempty"`
	ChatMessages         []string                  `json:"chatMessages,omitempty"`
	PlayerPositions      []playerPositionWire      `json:"playerPositions,omitempty"`
	PlayerScales         []playerScaleWire         `json:"playerScales,omitempty"`
	PlayerMapIcons       []playerMapIconWire       `json:"playerMapIcons,omitempty"`
	PlayerMapPositions   []playerMapPositionWire   `json:"playerMapPositions,omitempty"`
	PlayerAnimations     []playerAnimationWire     `json:"playerAnimations,omitempty"`
	EntitySpawns         []EntitySpawnData         `json:"entitySpawns,omitempty"`
	EntityPositions      []entityPositionWire      `json:"entityPositions,omitempty"`
	EntityScales         []entityScaleWire         `json:"entityScales,omitempty"`
	EntityAnimations     []entityAnimationWire     `json:"entityAnimations,omitempty"`
	EntityActive         []entityActiveWire        `json:"entityActive,omitempty"`
	EntityData           []entityDataWire          `json:"entityData,omitempty"`
	EntityHostFsm        []entityHostFsmWire       `json:"entityHostFsm,omitempty"`
	SceneHostTransfer    bool                      `json:"sceneHostTransfer,omitempty"`
	ServerSettings       *settings.Settings        `json:"serverSettings,omitempty"`
	LoginResponse        *loginResponseWire        `json:"loginResponse,omitempty"`
	Disconnect           *wire.DisconnectReason    `json:"disconnect,omitempty"`
}

func (f *outboundFrame) isEmpty() bool {
	return f.Hello == nil &&
		len(f.PlayerConnect) == 0 &&
		len(f.PlayerDisconnect) == 0 &&
		len(f.PlayerEnterScene) == 0 &&
		len(f.PlayerLeaveScene) == 0 &&
		f.PlayerAlreadyInScene == nil &&
		len(f.PlayerDeath) == 0 &&
		len(f.PlayerTeamUpdate) == 0 &&
		len(f.PlayerSkinUpdate) == 0 &&
		len(f.ChatMessages) == 0 &&
		len(f.PlayerPositions) == 0 &&
		len(f.PlayerScales) == 0 &&
		len(f.PlayerMapIcons) == 0 &&
		len(f.PlayerMapPositions) == 0 &&
		len(f.PlayerAnimations) == 0 &&
		len(f.EntitySpawns) == 0 &&
		len(f.EntityPositions) == 0 &&
		len(f.EntityScales) == 0 &&
		len(f.EntityAnimations) == 0 &&
		len(f.EntityActive) == 0 &&
		len(f.EntityData) == 0 &&
		len(f.EntityHostFsm) == 0 &&
		!f.SceneHostTransfer &&
		f.ServerSettings == nil &&
		f.LoginResponse == nil &&
		f.Disconnect == nil
}

type helloWire struct {
	SelfID     uint16  `json:"selfId"`
	AddonOrder []int32 `json:"addonOrder,omitempty"`
}

type playerConnectWire struct {
	ID       uint16 `json:"id"`
	Username string `json:"username"`
}

type playerDisconnectWire struct {
	ID       uint16 `json:"id"`
	Username string `json:"username"`
	Timeout  bool   `json:"timeout"`
}

type alreadyInSceneWire struct {
	Peers         []PeerSnapshot     `json:"peers"`
	EntitySpawns  []EntitySpawnData  `json:"entitySpawns"`
	EntityUpdates []EntityUpdateData `json:"entityUpdates"`
	SceneHost     bool               `json:"sceneHost"`
}

type teamUpdateWire struct {
	ID   uint16 `json:"id"`
	Team string `json:"team"`
}

type skinUpdateWire struct {
	ID     uint16 `json:"id"`
	SkinID string `json:"skinId"`
}

type playerPositionWire struct {
	ID  uint16   `json:"id"`
	Pos wire.Vec2 `json:"pos"`
}

type playerScaleWire struct {
	ID    uint16 `json:"id"`
	Scale bool   `json:"scale"`
}

type playerMapIconWire struct {
	ID         uint16 `json:"id"`
	HasMapIcon bool   `json:"hasMapIcon"`
}

type playerMapPositionWire struct {
	ID  uint16   `json:"id"`
	Pos wire.Vec2 `json:"pos"`
}

type playerAnimationWire struct {
	ID      uint16               `json:"id"`
	Entries []wire.AnimationEntry `json:"entries"`
}

type entityPositionWire struct {
	EntityID uint16   `json:"entityId"`
	Pos      wire.Vec2 `json:"pos"`
}

type entityScaleWire struct {
	EntityID uint16   `json:"entityId"`
	Scale    wire.Vec2 `json:"scale"`
}

type entityAnimationWire struct {
	EntityID    uint16 `json:"entityId"`
	AnimationID int32  `json:"animationId"`
	WrapMode    int32  `json:"wrapMode"`
}

type entityActiveWire struct {
	EntityID uint16 `json:"entityId"`
	Active   bool   `json:"active"`
}

type entityDataWire struct {
	EntityID uint16                 `json:"entityId"`
	Entry    wire.GenericDataEntry  `json:"entry"`
}

type entityHostFsmWire struct {
	EntityID uint16           `json:"entityId"`
	FsmIndex int32            `json:"fsmIndex"`
	Snapshot wire.FsmSnapshot `json:"snapshot"`
}

type loginResponseWire struct {
	Status          wire.LoginStatus        `json:"status"`
	AddonOrder      []int32                 `json:"addonOrder,omitempty"`
	NetworkedAddons []wire.AddonDescriptor  `json:"networkedAddons,omitempty"`
}

// clientOutbox implements UpdateBuilder, coalescing one dispatch turn's
// worth of enqueues behind a mutex and flushing them as a single JSON
// message, mirroring mine-and-die's per-client subscriber write lock.
type clientOutbox struct {
	mu    sync.Mutex
	frame outboundFrame
	send  func([]byte) error
}

func newClientOutbox(send func([]byte) error) *clientOutbox {
	return &clientOutbox{send: send}
}

func (o *clientOutbox) SetHelloClientData(selfID uint16, addonOrder []int32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.Hello = &helloWire{SelfID: selfID, AddonOrder: addonOrder}
}

func (o *clientOutbox) AddPlayerConnectData(id uint16, username string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerConnect = append(o.frame.PlayerConnect, playerConnectWire{ID: id, Username: username})
}

func (o *clientOutbox) AddPlayerDisconnectData(id uint16, username string, timeout bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerDisconnect = append(o.frame.PlayerDisconnect, playerDisconnectWire{ID: id, Username: username, Timeout: timeout})
}

func (o *clientOutbox) AddPlayerEnterSceneData(peer PeerSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerEnterScene = append(o.frame.PlayerEnterScene, peer)
}

func (o *clientOutbox) AddPlayerLeaveSceneData(id uint16) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerLeaveScene = append(o.frame.PlayerLeaveScene, id)
}

func (o *clientOutbox) AddPlayerAlreadyInSceneData(peers []PeerSnapshot, spawns []EntitySpawnData, updates []EntityUpdateData, sceneHost bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerAlreadyInScene = &alreadyInSceneWire{Peers: peers, EntitySpawns: spawns, EntityUpdates: updates, SceneHost: sceneHost}
}

func (o *clientOutbox) AddPlayerDeathData(id uint16) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerDeath = append(o.frame.PlayerDeath, id)
}

func (o *clientOutbox) AddPlayerTeamUpdateData(id uint16, team string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerTeamUpdate = append(o.frame.PlayerTeamUpdate, teamUpdateWire{ID: id, Team: team})
}

func (o *clientOutbox) AddPlayerSkinUpdateData(id uint16, skinID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerSkinUpdate = append(o.frame.PlayerSkinUpdate, skinUpdateWire{ID: id, SkinID: skinID})
}

func (o *clientOutbox) AddChatMessage(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Outbound server->one-client messages are split on literal newline
	// into separate chat frames, per spec.md §4.9.
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			o.frame.ChatMessages = append(o.frame.ChatMessages, text[start:i])
			start = i + 1
		}
	}
}

func (o *clientOutbox) UpdatePlayerPosition(id uint16, pos wire.Vec2) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerPositions = append(o.frame.PlayerPositions, playerPositionWire{ID: id, Pos: pos})
}

func (o *clientOutbox) UpdatePlayerScale(id uint16, scale bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerScales = append(o.frame.PlayerScales, playerScaleWire{ID: id, Scale: scale})
}

func (o *clientOutbox) UpdatePlayerMapIcon(id uint16, hasIcon bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerMapIcons = append(o.frame.PlayerMapIcons, playerMapIconWire{ID: id, HasMapIcon: hasIcon})
}

func (o *clientOutbox) UpdatePlayerMapPosition(id uint16, pos wire.Vec2) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerMapPositions = append(o.frame.PlayerMapPositions, playerMapPositionWire{ID: id, Pos: pos})
}

func (o *clientOutbox) UpdatePlayerAnimation(id uint16, entries []wire.AnimationEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.PlayerAnimations = append(o.frame.PlayerAnimations, playerAnimationWire{ID: id, Entries: entries})
}

func (o *clientOutbox) SetEntitySpawn(entityID uint16, spawningType, spawnedType int32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.EntitySpawns = append(o.frame.EntitySpawns, EntitySpawnData{EntityID: entityID, SpawningType: spawningType, SpawnedType: spawnedType})
}

func (o *clientOutbox) UpdateEntityPosition(entityID uint16, pos wire.Vec2) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.EntityPositions = append(o.frame.EntityPositions, entityPositionWire{EntityID: entityID, Pos: pos})
}

func (o *clientOutbox) UpdateEntityScale(entityID uint16, scale wire.Vec2) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.EntityScales = append(o.frame.EntityScales, entityScaleWire{EntityID: entityID, Scale: scale})
}

func (o *clientOutbox) UpdateEntityAnimation(entityID uint16, animationID, wrapMode int32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.EntityAnimations = append(o.frame.EntityAnimations, entityAnimationWire{EntityID: entityID, AnimationID: animationID, WrapMode: wrapMode})
}

func (o *clientOutbox) UpdateEntityIsActive(entityID uint16, active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.EntityActive = append(o.frame.EntityActive, entityActiveWire{EntityID: entityID, Active: active})
}

func (o *clientOutbox) AddEntityData(entityID uint16, entry wire.GenericDataEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.EntityData = append(o.frame.EntityData, entityDataWire{EntityID: entityID, Entry: entry})
}

func (o *clientOutbox) AddEntityHostFsmData(entityID uint16, fsmIndex int32, snapshot wire.FsmSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.EntityHostFsm = append(o.frame.EntityHostFsm, entityHostFsmWire{EntityID: entityID, FsmIndex: fsmIndex, Snapshot: snapshot})
}

func (o *clientOutbox) SetSceneHostTransfer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.SceneHostTransfer = true
}

func (o *clientOutbox) UpdateServerSettings(s settings.Settings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cloned := s
	o.frame.ServerSettings = &cloned
}

func (o *clientOutbox) SetLoginResponse(status wire.LoginStatus, addonOrder []int32, networkedAddons []wire.AddonDescriptor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.LoginResponse = &loginResponseWire{Status: status, AddonOrder: addonOrder, NetworkedAddons: networkedAddons}
}

func (o *clientOutbox) SetDisconnect(reason wire.DisconnectReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := reason
	o.frame.Disconnect = &r
}

// flush serializes and sends whatever was accumulated, then resets the
// frame for the next dispatch turn. A nil send (already-closed connection)
// silently drops the frame, matching spec.md §7's policy that handlers never
// propagate transport errors back into core state.
func (o *clientOutbox) flush() {
	o.mu.Lock()
	if o.frame.isEmpty() {
		o.mu.Unlock()
		return
	}
	frame := o.frame
	o.frame = outboundFrame{}
	o.mu.Unlock()

	data, err := json.Marshal(&frame)
	if err != nil || o.send == nil {
		return
	}
	_ = o.send(data)
}
