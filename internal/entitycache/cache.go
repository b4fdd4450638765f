// Package entitycache implements C3 EntityCache: the per-(scene, entityId)
// replicated state used to bootstrap late joiners and to apply EntitySpawn /
// EntityUpdate streams from a scene host.
package entitycache

import (
	"sync"

	"scenerelay/internal/wire"
)

// Key identifies an entity within a scene. Two entities with the same
// EntityID in different scenes are distinct (spec.md §3).
type Key struct {
	Scene    string
	EntityID uint16
}

// State is owned by Cache, created lazily on first reference and destroyed
// in bulk when its scene empties (I3).
type State struct {
	mu sync.RWMutex

	Spawned      bool
	SpawningType int32
	SpawnedType  int32

	Position          *wire.Vec2
	Scale             *wire.Vec2
	AnimationID       *int32
	AnimationWrapMode int32
	IsActive          *bool

	GenericData []wire.GenericDataEntry
	HostFsmData map[int32]wire.FsmSnapshot
}

// Snapshot is an immutable copy of a State, safe to read without holding the
// originating lock.
type Snapshot struct {
	Spawned           bool
	SpawningType      int32
	SpawnedType       int32
	Position          *wire.Vec2
	Scale             *wire.Vec2
	AnimationID       *int32
	AnimationWrapMode int32
	IsActive          *bool
	GenericData       []wire.GenericDataEntry
	HostFsmData       map[int32]wire.FsmSnapshot
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Spawned:           s.Spawned,
		SpawningType:      s.SpawningType,
		SpawnedType:       s.SpawnedType,
		Position:          clonePtr(s.Position),
		Scale:             clonePtr(s.Scale),
		AnimationID:       clonePtrInt32(s.AnimationID),
		AnimationWrapMode: s.AnimationWrapMode,
		IsActive:          clonePtrBool(s.IsActive),
		GenericData:       append([]wire.GenericDataEntry(nil), s.GenericData...),
		HostFsmData:       cloneFsmMap(s.HostFsmData),
	}
}

func clonePtr(v *wire.Vec2) *wire.Vec2 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func clonePtrInt32(v *int32) *int32 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func clonePtrBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneFsmMap(m map[int32]wire.FsmSnapshot) map[int32]wire.FsmSnapshot {
	if m == nil {
		return nil
	}
	out := make(map[int32]wire.FsmSnapshot, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// ApplySpawn marks the entity spawned. Callers must have already checked
// sender authority (EntityRelay enforces this, not the cache).
func (s *State) ApplySpawn(spawningType, spawnedType int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spawned = true
	s.SpawningType = spawningType
	s.SpawnedType = spawnedType
}

// ApplyUpdate merges whichever sub-fields frame.Fields marks present, per the
// merge rules in spec.md §3/§4.8.
func (s *State) ApplyUpdate(frame wire.EntityUpdateFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame.Fields.Has(wire.EntityUpdatePosition) {
		pos := frame.Position
		s.Position = &pos
	}
	if frame.Fields.Has(wire.EntityUpdateScale) {
		scale := frame.Scale
		s.Scale = &scale
	}
	if frame.Fields.Has(wire.EntityUpdateAnimation) {
		id := frame.AnimationID
		s.AnimationID = &id
		s.AnimationWrapMode = frame.AnimationWrapMode
	}
	if frame.Fields.Has(wire.EntityUpdateActive) {
		active := frame.Active
		s.IsActive = &active
	}
	if frame.Fields.Has(wire.EntityUpdateData) {
		for _, entry := range frame.Data {
			s.mergeGenericDataLocked(entry)
		}
	}
	if frame.Fields.Has(wire.EntityUpdateHostFsm) {
		if s.HostFsmData == nil {
			s.HostFsmData = make(map[int32]wire.FsmSnapshot, len(frame.HostFsm))
		}
		for fsmIndex, incoming := range frame.HostFsm {
			s.HostFsmData[fsmIndex] = mergeFsmSnapshot(s.HostFsmData[fsmIndex], incoming)
		}
	}
}

// mergeGenericDataLocked implements the replace-for-{Rotation,Collider},
// append-for-everything-else rule. Caller holds s.mu.
func (s *State) mergeGenericDataLocked(entry wire.GenericDataEntry) {
	switch entry.DataType {
	case wire.DataTypeRotation, wire.DataTypeCollider:
		for i, existing := range s.GenericData {
			if existing.DataType == entry.DataType {
				s.GenericData[i] = entry
				return
			}
		}
		s.GenericData = append(s.GenericData, entry)
	default:
		s.GenericData = append(s.GenericData, entry)
	}
}

// mergeFsmSnapshot unions keys across base and incoming; incoming wins on
// every key it sets, per spec.md §3's "most recently received value" rule.
func mergeFsmSnapshot(base, incoming wire.FsmSnapshot) wire.FsmSnapshot {
	out := base.Clone()
	if incoming.CurrentState != nil {
		out.CurrentState = incoming.CurrentState
	}
	out.Float = mergeScalarMap(out.Float, incoming.Float)
	out.Int = mergeScalarMap(out.Int, incoming.Int)
	out.Bool = mergeScalarMap(out.Bool, incoming.Bool)
	out.String = mergeScalarMap(out.String, incoming.String)
	out.Vec2 = mergeScalarMap(out.Vec2, incoming.Vec2)
	out.Vec3 = mergeScalarMap(out.Vec3, incoming.Vec3)
	return out
}

func mergeScalarMap[V any](base, incoming map[string]V) map[string]V {
	if len(incoming) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]V, len(incoming))
	}
	for k, v := range incoming {
		base[k] = v
	}
	return base
}

// Cache is the concurrent (scene, entityId) -> State mapping (C3).
type Cache struct {
	mu     sync.RWMutex
	states map[Key]*State
}

func New() *Cache {
	return &Cache{states: make(map[Key]*State)}
}

// GetOrCreate atomically ensures a State exists for key.
func (c *Cache) GetOrCreate(key Key) *State {
	c.mu.RLock()
	state, ok := c.states[key]
	c.mu.RUnlock()
	if ok {
		return state
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[key]; ok {
		return state
	}
	state = &State{}
	c.states[key] = state
	return state
}

// Get returns the existing state for key without creating one.
func (c *Cache) Get(key Key) (*State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[key]
	return state, ok
}

// PurgeScene removes every key whose scene matches. Callers must only call
// this after the last occupant's currentScene has already been cleared
// (spec.md §4.3), so no concurrent GetOrCreate from a stale host can
// resurrect an entry for an empty scene.
func (c *Cache) PurgeScene(sceneName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for key := range c.states {
		if key.Scene == sceneName {
			delete(c.states, key)
			purged++
		}
	}
	return purged
}

// Entry pairs a Key with a point-in-time Snapshot of its State.
type Entry struct {
	Key   Key
	State Snapshot
}

// SnapshotScene returns every (key, state) pair for sceneName, used by
// PlayerLifecycle to bootstrap an entering player (spec.md §4.6).
func (c *Cache) SnapshotScene(sceneName string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Entry
	for key, state := range c.states {
		if key.Scene == sceneName {
			out = append(out, Entry{Key: key, State: state.Snapshot()})
		}
	}
	return out
}
