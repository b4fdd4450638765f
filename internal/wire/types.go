// Package wire holds the vocabulary shared between the core and the
// Transport capability: pose types, enums, and the inbound/outbound frame
// shapes described by spec.md §6. Nothing in here performs I/O; the
// concrete websocket framing lives in internal/transport.
package wire

import "encoding/json"

// PacketKind tags an inbound frame's message kind. UpdateRouter is a table
// from PacketKind to handler (spec.md §9's "tagged variant keyed by a small
// integer packet id").
type PacketKind int32

const (
	PacketHelloServer PacketKind = iota + 1
	PacketPlayerEnterScene
	PacketPlayerLeaveScene
	PacketPlayerUpdate
	PacketPlayerMapUpdate
	PacketEntitySpawn
	PacketEntityUpdate
	PacketPlayerDisconnect
	PacketPlayerDeath
	PacketPlayerTeamUpdate
	PacketPlayerSkinUpdate
	PacketChatMessage
)

// InboundEnvelope is the wire shape Transport decodes enough of to find the
// PacketKind before handing the remaining Payload to UpdateRouter.
type InboundEnvelope struct {
	Kind    PacketKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Vec2 is a 2D pose component (position, scale).
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 is used by FsmSnapshot's vec3 keyed map.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DataType discriminates entries in EntityState.GenericData. Rotation and
// Collider are replace-in-place; every other value is append-only, per
// spec.md §3.
type DataType int32

const (
	DataTypeRotation DataType = iota
	DataTypeCollider
	DataTypeCustom
)

// AnimationSentinelDashEnd is the "canonical clip" sentinel named in
// spec.md §9: clip ids below it are canonical pose, at/above it are
// effect/custom clips that never update PlayerRecord.AnimationID.
const AnimationSentinelDashEnd int32 = 1000

// AnimationEntry is one (clipId, frame, effectInfo) tuple from an inbound
// Animation sub-field, forwarded to peers in the order received.
type AnimationEntry struct {
	ClipID     int32  `json:"clipId"`
	Frame      int32  `json:"frame"`
	EffectInfo string `json:"effectInfo,omitempty"`
}

// GenericDataEntry is one opaque, server-uninterpreted blob in
// EntityState.GenericData.
type GenericDataEntry struct {
	DataType DataType `json:"dataType"`
	Blob     []byte   `json:"blob"`
}

// FsmSnapshot is the per-fsmIndex replicated state in EntityState.HostFsmData.
// Merge is key-wise last-writer-wins, implemented in internal/entitycache.
type FsmSnapshot struct {
	CurrentState *string            `json:"currentState,omitempty"`
	Float        map[string]float64 `json:"float,omitempty"`
	Int          map[string]int64   `json:"int,omitempty"`
	Bool         map[string]bool    `json:"bool,omitempty"`
	String       map[string]string  `json:"string,omitempty"`
	Vec2         map[string]Vec2    `json:"vec2,omitempty"`
	Vec3         map[string]Vec3    `json:"vec3,omitempty"`
}

// Clone returns a deep copy so callers can merge into it without aliasing
// the cached snapshot's maps.
func (s FsmSnapshot) Clone() FsmSnapshot {
	out := FsmSnapshot{CurrentState: s.CurrentState}
	out.Float = cloneMap(s.Float)
	out.Int = cloneMap(s.Int)
	out.Bool = cloneMap(s.Bool)
	out.String = cloneMap(s.String)
	out.Vec2 = cloneMap(s.Vec2)
	out.Vec3 = cloneMap(s.Vec3)
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LoginStatus is the result carried in a LoginResponse frame.
type LoginStatus string

const (
	LoginSuccess        LoginStatus = "Success"
	LoginInvalidAddons  LoginStatus = "InvalidAddons"
	LoginNotWhiteListed LoginStatus = "NotWhiteListed"
	LoginBanned         LoginStatus = "Banned"
	LoginInvalidUser    LoginStatus = "InvalidUsername"
)

// DisconnectReason is carried on UpdateBuilder.SetDisconnect.
type DisconnectReason string

const (
	DisconnectShutdown        DisconnectReason = "Shutdown"
	DisconnectKicked          DisconnectReason = "Kicked"
	DisconnectBanned          DisconnectReason = "Banned"
	DisconnectInvalidAddons   DisconnectReason = "InvalidAddons"
	DisconnectNotWhiteListed  DisconnectReason = "NotWhiteListed"
	DisconnectInvalidUsername DisconnectReason = "InvalidUsername"
)

// AddonDescriptor identifies one networked addon by (identifier, version).
// ID is the server's numeric id for the addon, used to build addonOrder.
type AddonDescriptor struct {
	Identifier string `json:"identifier"`
	Version    string `json:"version"`
	ID         int32  `json:"id,omitempty"`
}

// LoginRequest is the admission input carried by HelloServer.
type LoginRequest struct {
	Username string            `json:"username"`
	AuthKey  string            `json:"authKey"`
	Addons   []AddonDescriptor `json:"addons"`
}

// PlayerUpdateField is a bit position in an inbound PlayerUpdate frame.
type PlayerUpdateField uint8

const (
	PlayerUpdatePosition PlayerUpdateField = 1 << iota
	PlayerUpdateScale
	PlayerUpdateMapPosition
	PlayerUpdateAnimation
)

// EntityUpdateField is a bit position in an inbound EntityUpdate frame.
type EntityUpdateField uint8

const (
	EntityUpdatePosition EntityUpdateField = 1 << iota
	EntityUpdateScale
	EntityUpdateAnimation
	EntityUpdateActive
	EntityUpdateData
	EntityUpdateHostFsm
)

func (fields PlayerUpdateField) Has(bit PlayerUpdateField) bool { return fields&bit != 0 }
func (fields EntityUpdateField) Has(bit EntityUpdateField) bool { return fields&bit != 0 }

// HelloFrame is the first message a Reserved client sends.
type HelloFrame struct {
	LoginRequest
	Scene       string  `json:"scene"`
	Position    Vec2    `json:"position"`
	Scale       bool    `json:"scale"`
	AnimationID int32   `json:"animationId"`
}

// EnterSceneFrame requests a scene transition, carrying the entering pose.
type EnterSceneFrame struct {
	Scene       string `json:"scene"`
	Position    Vec2   `json:"position"`
	Scale       bool   `json:"scale"`
	AnimationID int32  `json:"animationId"`
}

// PlayerUpdateFrame carries whichever sub-fields Fields marks present.
type PlayerUpdateFrame struct {
	Fields      PlayerUpdateField
	Position    Vec2
	Scale       bool
	MapPosition Vec2
	Animation   []AnimationEntry
}

// PlayerMapUpdateFrame carries only hasMapIcon.
type PlayerMapUpdateFrame struct {
	HasMapIcon bool
}

// EntitySpawnFrame originates only from a scene host.
type EntitySpawnFrame struct {
	EntityID     uint16
	SpawningType int32
	SpawnedType  int32
}

// EntityUpdateFrame carries whichever sub-fields Fields marks present.
type EntityUpdateFrame struct {
	EntityID          uint16
	Fields            EntityUpdateField
	Position          Vec2
	Scale             Vec2
	AnimationID       int32
	AnimationWrapMode int32
	Active            bool
	Data              []GenericDataEntry
	HostFsm           map[int32]FsmSnapshot
}

// TeamUpdateFrame, SkinUpdateFrame, ChatFrame round out the remaining
// inbound kinds from spec.md §4.7.
type TeamUpdateFrame struct{ Team string }
type SkinUpdateFrame struct{ SkinID string }
type ChatFrame struct{ Text string }
