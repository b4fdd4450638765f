package router

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"scenerelay/internal/accesslists"
	"scenerelay/internal/addons"
	"scenerelay/internal/admission"
	"scenerelay/internal/entitycache"
	"scenerelay/internal/entityrelay"
	"scenerelay/internal/lifecycle"
	"scenerelay/internal/scene"
	"scenerelay/internal/session"
	"scenerelay/internal/settings"
	"scenerelay/internal/transport/transporttest"
	"scenerelay/internal/wire"
	"scenerelay/logging"
)

type fakeChatHandler struct {
	received []string
}

func (f *fakeChatHandler) HandleChatMessage(ctx context.Context, id uint16, text string) {
	f.received = append(f.received, text)
}

type testRig struct {
	controller *Controller
	table      *session.Table
	tr         *transporttest.Transport
	chat       *fakeChatHandler
	cfg        *settings.Settings
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	table := session.NewTable()
	scenes := scene.New(table)
	cache := entitycache.New()

	dbPath := filepath.Join(t.TempDir(), "accesslists.db")
	lists, err := accesslists.Open(dbPath)
	if err != nil {
		t.Fatalf("open accesslists: %v", err)
	}
	t.Cleanup(func() { lists.Close() })

	registry := addons.New([]wire.AddonDescriptor{{Identifier: "core", Version: "1.0"}})
	cfg := settings.Default()
	settingsFn := func() settings.Settings { return cfg }
	admissionCtrl := admission.New(table, lists, registry, settingsFn, logging.NopPublisher())

	tr := transporttest.NewTransport()
	lc := lifecycle.New(table, scenes, cache, admissionCtrl, tr, noopEmitter{}, logging.NopPublisher())
	ec := entityrelay.New(table, scenes, cache, tr, logging.NopPublisher())
	chat := &fakeChatHandler{}

	c := New(table, scenes, tr, settingsFn, lc, ec, chat, logging.NopPublisher())
	return &testRig{controller: c, table: table, tr: tr, chat: chat, cfg: &cfg}
}

type noopEmitter struct{}

func (noopEmitter) EmitConnect(playerID uint16, username string)                  {}
func (noopEmitter) EmitDisconnect(playerID uint16, username string, timeout bool) {}
func (noopEmitter) EmitHostChange(sceneName string, newHostID uint16)             {}

func (r *testRig) addOccupant(t *testing.T, id uint16, sceneName string) {
	t.Helper()
	rec := &session.PlayerRecord{ID: id, Username: "p"}
	if err := r.table.Insert(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec.SetCurrentScene(sceneName)
	r.tr.Outbox(id)
}

func TestDispatchPlayerUpdatePositionBroadcastsToSceneExcludingSelf(t *testing.T) {
	r := newTestRig(t)
	r.addOccupant(t, 1, "forest")
	r.addOccupant(t, 2, "forest")
	r.addOccupant(t, 3, "cave")

	payload, _ := json.Marshal(wire.PlayerUpdateFrame{Fields: wire.PlayerUpdatePosition, Position: wire.Vec2{X: 5, Y: 6}})
	r.controller.Dispatch(context.Background(), 1, wire.InboundEnvelope{Kind: wire.PacketPlayerUpdate, Payload: payload})

	ob2 := r.tr.Outbox(2)
	if len(ob2.PlayerPositions) != 1 || ob2.PlayerPositions[0].Pos != (wire.Vec2{X: 5, Y: 6}) {
		t.Fatalf("expected scene peer to receive position update, got %+v", ob2.PlayerPositions)
	}
	ob3 := r.tr.Outbox(3)
	if len(ob3.PlayerPositions) != 0 {
		t.Fatalf("expected peer in a different scene not to receive the update, got %+v", ob3.PlayerPositions)
	}
	ob1 := r.tr.Outbox(1)
	if len(ob1.PlayerPositions) != 0 {
		t.Fatalf("expected sender not to receive its own broadcast")
	}
}

func TestDispatchPlayerMapUpdateBroadcastsGloballyWhenAlwaysShowEnabled(t *testing.T) {
	r := newTestRig(t)
	r.cfg.AlwaysShowMapIcons = true
	r.addOccupant(t, 1, "forest")
	r.addOccupant(t, 2, "cave")

	payload, _ := json.Marshal(wire.PlayerMapUpdateFrame{HasMapIcon: true})
	r.controller.Dispatch(context.Background(), 1, wire.InboundEnvelope{Kind: wire.PacketPlayerMapUpdate, Payload: payload})

	ob2 := r.tr.Outbox(2)
	if len(ob2.PlayerMapIcons) != 1 || !ob2.PlayerMapIcons[0].HasIcon {
		t.Fatalf("expected cross-scene peer to receive the map icon update, got %+v", ob2.PlayerMapIcons)
	}
	if len(ob2.PlayerMapPosition) != 1 {
		t.Fatalf("expected cross-scene peer to also receive the map position once icon is shown, got %+v", ob2.PlayerMapPosition)
	}
}

func TestDispatchPlayerDeathBroadcastsToScene(t *testing.T) {
	r := newTestRig(t)
	r.addOccupant(t, 1, "forest")
	r.addOccupant(t, 2, "forest")

	r.controller.Dispatch(context.Background(), 1, wire.InboundEnvelope{Kind: wire.PacketPlayerDeath})

	ob2 := r.tr.Outbox(2)
	if len(ob2.PlayerDeath) != 1 || ob2.PlayerDeath[0] != 1 {
		t.Fatalf("expected scene peer to receive the death notice, got %+v", ob2.PlayerDeath)
	}
}

func TestDispatchSkinUpdateOnlyBroadcastsOnChange(t *testing.T) {
	r := newTestRig(t)
	r.addOccupant(t, 1, "forest")
	r.addOccupant(t, 2, "forest")

	payload, _ := json.Marshal(wire.SkinUpdateFrame{SkinID: "red"})
	r.controller.Dispatch(context.Background(), 1, wire.InboundEnvelope{Kind: wire.PacketPlayerSkinUpdate, Payload: payload})
	r.controller.Dispatch(context.Background(), 1, wire.InboundEnvelope{Kind: wire.PacketPlayerSkinUpdate, Payload: payload})

	ob2 := r.tr.Outbox(2)
	if len(ob2.PlayerSkinUpdate) != 1 {
		t.Fatalf("expected exactly one broadcast for a no-op repeated skin update, got %d", len(ob2.PlayerSkinUpdate))
	}
}

func TestDispatchChatMessageRoutesToChatHandler(t *testing.T) {
	r := newTestRig(t)
	r.controller.Dispatch(context.Background(), 1, wire.InboundEnvelope{
		Kind:    wire.PacketChatMessage,
		Payload: mustMarshal(wire.ChatFrame{Text: "hi"}),
	})
	if len(r.chat.received) != 1 || r.chat.received[0] != "hi" {
		t.Fatalf("expected chat handler to receive %q, got %+v", "hi", r.chat.received)
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
