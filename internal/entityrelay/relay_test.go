package entityrelay

import (
	"context"
	"testing"

	"scenerelay/internal/entitycache"
	"scenerelay/internal/scene"
	"scenerelay/internal/session"
	"scenerelay/internal/transport/transporttest"
	"scenerelay/internal/wire"
	"scenerelay/logging"
)

func newTestController(t *testing.T) (*Controller, *session.Table, *transporttest.Transport) {
	t.Helper()
	table := session.NewTable()
	scenes := scene.New(table)
	cache := entitycache.New()
	tr := transporttest.NewTransport()
	c := New(table, scenes, cache, tr, logging.NopPublisher())
	return c, table, tr
}

func addOccupant(t *testing.T, table *session.Table, tr *transporttest.Transport, id uint16, sceneName string, isHost bool) *session.PlayerRecord {
	t.Helper()
	rec := &session.PlayerRecord{ID: id, Username: "p"}
	if err := table.Insert(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec.SetCurrentScene(sceneName)
	rec.SetSceneHost(isHost)
	tr.Outbox(id)
	return rec
}

func TestHandleSpawnRejectedWhenSenderIsNotHost(t *testing.T) {
	c, table, tr := newTestController(t)
	addOccupant(t, table, tr, 1, "forest", false)
	addOccupant(t, table, tr, 2, "forest", false)

	c.HandleSpawn(context.Background(), 1, wire.EntitySpawnFrame{EntityID: 10, SpawningType: 1, SpawnedType: 2})

	ob2 := tr.Outbox(2)
	if len(ob2.EntitySpawns) != 0 {
		t.Fatalf("expected no spawn broadcast from a non-host sender, got %+v", ob2.EntitySpawns)
	}
	if _, ok := c.cache.Get(entitycache.Key{Scene: "forest", EntityID: 10}); ok {
		t.Fatalf("expected no cache entry to be created for a rejected spawn")
	}
}

func TestHandleSpawnAcceptedFromHostBroadcastsToScene(t *testing.T) {
	c, table, tr := newTestController(t)
	addOccupant(t, table, tr, 1, "forest", true)
	addOccupant(t, table, tr, 2, "forest", false)
	addOccupant(t, table, tr, 3, "cave", false)

	c.HandleSpawn(context.Background(), 1, wire.EntitySpawnFrame{EntityID: 10, SpawningType: 1, SpawnedType: 2})

	ob2 := tr.Outbox(2)
	if len(ob2.EntitySpawns) != 1 || ob2.EntitySpawns[0].EntityID != 10 {
		t.Fatalf("expected scene peer to receive the spawn, got %+v", ob2.EntitySpawns)
	}
	ob3 := tr.Outbox(3)
	if len(ob3.EntitySpawns) != 0 {
		t.Fatalf("expected peer in a different scene not to receive the spawn")
	}
	state, ok := c.cache.Get(entitycache.Key{Scene: "forest", EntityID: 10})
	if !ok || !state.Snapshot().Spawned {
		t.Fatalf("expected the accepted spawn to be recorded in the cache")
	}
}

func TestHandleUpdateAcceptedFromNonHostDuringHandoff(t *testing.T) {
	c, table, tr := newTestController(t)
	addOccupant(t, table, tr, 1, "forest", false)
	addOccupant(t, table, tr, 2, "forest", false)

	c.HandleUpdate(context.Background(), 1, wire.EntityUpdateFrame{
		EntityID: 10,
		Fields:   wire.EntityUpdatePosition,
		Position: wire.Vec2{X: 1, Y: 2},
	})

	ob2 := tr.Outbox(2)
	if len(ob2.EntityPositions) != 1 || ob2.EntityPositions[0].Pos != (wire.Vec2{X: 1, Y: 2}) {
		t.Fatalf("expected entity position update from a non-host sender to still be applied and broadcast, got %+v", ob2.EntityPositions)
	}
}

func TestHandleUpdateHostFsmBroadcastsMergedSnapshot(t *testing.T) {
	c, table, tr := newTestController(t)
	addOccupant(t, table, tr, 1, "forest", true)
	addOccupant(t, table, tr, 2, "forest", false)

	c.HandleUpdate(context.Background(), 1, wire.EntityUpdateFrame{
		EntityID: 10,
		Fields:   wire.EntityUpdateHostFsm,
		HostFsm: map[int32]wire.FsmSnapshot{
			0: {Int: map[string]int64{"hp": 10}},
		},
	})
	c.HandleUpdate(context.Background(), 1, wire.EntityUpdateFrame{
		EntityID: 10,
		Fields:   wire.EntityUpdateHostFsm,
		HostFsm: map[int32]wire.FsmSnapshot{
			0: {Int: map[string]int64{"mana": 5}},
		},
	})

	ob2 := tr.Outbox(2)
	if len(ob2.EntityHostFsm) != 2 {
		t.Fatalf("expected two broadcasts, one per update, got %d", len(ob2.EntityHostFsm))
	}
	last := ob2.EntityHostFsm[len(ob2.EntityHostFsm)-1]
	if last.Snapshot.Int["hp"] != 10 || last.Snapshot.Int["mana"] != 5 {
		t.Fatalf("expected the broadcast snapshot to reflect the merged fsm state, got %+v", last.Snapshot.Int)
	}
}
