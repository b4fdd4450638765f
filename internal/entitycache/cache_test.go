package entitycache

import (
	"testing"

	"scenerelay/internal/wire"
)

func TestGetOrCreateReturnsSameStateForSameKey(t *testing.T) {
	c := New()
	key := Key{Scene: "forest", EntityID: 7}
	a := c.GetOrCreate(key)
	b := c.GetOrCreate(key)
	if a != b {
		t.Fatalf("expected GetOrCreate to return the same *State for the same key")
	}
}

func TestApplySpawnMarksSpawned(t *testing.T) {
	c := New()
	state := c.GetOrCreate(Key{Scene: "forest", EntityID: 1})
	state.ApplySpawn(2, 3)
	snap := state.Snapshot()
	if !snap.Spawned || snap.SpawningType != 2 || snap.SpawnedType != 3 {
		t.Fatalf("unexpected snapshot after spawn: %+v", snap)
	}
}

func TestApplyUpdateOnlyTouchesMarkedFields(t *testing.T) {
	c := New()
	state := c.GetOrCreate(Key{Scene: "forest", EntityID: 1})
	state.ApplyUpdate(wire.EntityUpdateFrame{
		EntityID: 1,
		Fields:   wire.EntityUpdatePosition,
		Position: wire.Vec2{X: 1, Y: 2},
	})
	snap := state.Snapshot()
	if snap.Position == nil || *snap.Position != (wire.Vec2{X: 1, Y: 2}) {
		t.Fatalf("expected position to be set, got %+v", snap.Position)
	}
	if snap.Scale != nil {
		t.Fatalf("expected scale to remain unset, got %+v", snap.Scale)
	}
}

func TestApplyUpdateGenericDataReplacesRotationAppendsCustom(t *testing.T) {
	c := New()
	state := c.GetOrCreate(Key{Scene: "forest", EntityID: 1})
	state.ApplyUpdate(wire.EntityUpdateFrame{
		Fields: wire.EntityUpdateData,
		Data: []wire.GenericDataEntry{
			{DataType: wire.DataTypeRotation, Blob: []byte("a")},
			{DataType: wire.DataTypeCustom, Blob: []byte("b")},
		},
	})
	state.ApplyUpdate(wire.EntityUpdateFrame{
		Fields: wire.EntityUpdateData,
		Data: []wire.GenericDataEntry{
			{DataType: wire.DataTypeRotation, Blob: []byte("c")},
			{DataType: wire.DataTypeCustom, Blob: []byte("d")},
		},
	})

	snap := state.Snapshot()
	var rotations, customs int
	for _, entry := range snap.GenericData {
		switch entry.DataType {
		case wire.DataTypeRotation:
			rotations++
			if string(entry.Blob) != "c" {
				t.Fatalf("expected rotation entry to be replaced with latest value, got %q", entry.Blob)
			}
		case wire.DataTypeCustom:
			customs++
		}
	}
	if rotations != 1 {
		t.Fatalf("expected exactly one rotation entry after replace, got %d", rotations)
	}
	if customs != 2 {
		t.Fatalf("expected custom entries to append, got %d", customs)
	}
}

func TestApplyUpdateHostFsmMergesKeysLastWriterWins(t *testing.T) {
	c := New()
	state := c.GetOrCreate(Key{Scene: "forest", EntityID: 1})
	state.ApplyUpdate(wire.EntityUpdateFrame{
		Fields: wire.EntityUpdateHostFsm,
		HostFsm: map[int32]wire.FsmSnapshot{
			0: {Int: map[string]int64{"hp": 10}},
		},
	})
	state.ApplyUpdate(wire.EntityUpdateFrame{
		Fields: wire.EntityUpdateHostFsm,
		HostFsm: map[int32]wire.FsmSnapshot{
			0: {Int: map[string]int64{"mana": 5}},
		},
	})

	snap := state.Snapshot()
	fsm := snap.HostFsmData[0]
	if fsm.Int["hp"] != 10 || fsm.Int["mana"] != 5 {
		t.Fatalf("expected merged keys hp=10 mana=5, got %+v", fsm.Int)
	}
}

func TestPurgeSceneOnlyRemovesMatchingScene(t *testing.T) {
	c := New()
	c.GetOrCreate(Key{Scene: "forest", EntityID: 1})
	c.GetOrCreate(Key{Scene: "cave", EntityID: 2})

	purged := c.PurgeScene("forest")
	if purged != 1 {
		t.Fatalf("expected to purge 1 entry, got %d", purged)
	}
	if _, ok := c.Get(Key{Scene: "forest", EntityID: 1}); ok {
		t.Fatalf("expected forest entry to be purged")
	}
	if _, ok := c.Get(Key{Scene: "cave", EntityID: 2}); !ok {
		t.Fatalf("expected cave entry to survive purge")
	}
}

func TestSnapshotSceneFiltersByScene(t *testing.T) {
	c := New()
	c.GetOrCreate(Key{Scene: "forest", EntityID: 1})
	c.GetOrCreate(Key{Scene: "forest", EntityID: 2})
	c.GetOrCreate(Key{Scene: "cave", EntityID: 3})

	entries := c.SnapshotScene("forest")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for forest, got %d", len(entries))
	}
}
