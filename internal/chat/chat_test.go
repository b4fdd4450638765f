package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"scenerelay/internal/accesslists"
	"scenerelay/internal/eventbus"
	"scenerelay/internal/session"
	"scenerelay/internal/settings"
	"scenerelay/internal/transport/transporttest"
	"scenerelay/logging"
)

type fakeCommandBus struct {
	handle bool
	seen   []string
}

func (f *fakeCommandBus) Dispatch(ctx context.Context, sender Sender, text string) bool {
	f.seen = append(f.seen, text)
	return f.handle
}

type fakeEmitter struct {
	cancel bool
	events []eventbus.ChatEvent
}

func (f *fakeEmitter) EmitChat(event eventbus.ChatEvent) bool {
	f.events = append(f.events, event)
	return f.cancel
}

func newTestLists(t *testing.T) *accesslists.Lists {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accesslists.db")
	lists, err := accesslists.Open(path)
	if err != nil {
		t.Fatalf("open accesslists: %v", err)
	}
	t.Cleanup(func() { lists.Close() })
	return lists
}

func newTestRig(t *testing.T, commands CommandBus, bus ChatEmitter) (*Controller, *session.Table, *transporttest.Transport) {
	t.Helper()
	table := session.NewTable()
	tr := transporttest.NewTransport()
	lists := newTestLists(t)
	cfg := settings.Default()
	c := New(table, lists, tr, commands, bus, func() settings.Settings { return cfg }, logging.NopPublisher())
	return c, table, tr
}

func TestHandleChatMessageHandledByCommandBusStopsThere(t *testing.T) {
	cmds := &fakeCommandBus{handle: true}
	emitter := &fakeEmitter{}
	c, table, tr := newTestRig(t, cmds, emitter)
	table.Insert(&session.PlayerRecord{ID: 1, Username: "alice"})
	tr.Outbox(1)

	c.HandleChatMessage(context.Background(), 1, "/teleport")

	if len(cmds.seen) != 1 || cmds.seen[0] != "/teleport" {
		t.Fatalf("expected command bus to see the message, got %+v", cmds.seen)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("expected no chat event when a command handled the message")
	}
}

func TestHandleChatMessageCancelledEventSkipsBroadcast(t *testing.T) {
	emitter := &fakeEmitter{cancel: true}
	c, table, tr := newTestRig(t, nil, emitter)
	table.Insert(&session.PlayerRecord{ID: 1, Username: "alice"})
	table.Insert(&session.PlayerRecord{ID: 2, Username: "bob"})
	tr.Outbox(1)
	tr.Outbox(2)

	c.HandleChatMessage(context.Background(), 1, "hello")

	if len(emitter.events) != 1 || emitter.events[0].Text != "hello" {
		t.Fatalf("expected the chat event to be emitted, got %+v", emitter.events)
	}
	ob2 := tr.Outbox(2)
	if len(ob2.ChatMessages) != 0 {
		t.Fatalf("expected a cancelled event to suppress the broadcast, got %+v", ob2.ChatMessages)
	}
}

func TestHandleChatMessageFallsThroughToBroadcast(t *testing.T) {
	emitter := &fakeEmitter{}
	c, table, tr := newTestRig(t, nil, emitter)
	table.Insert(&session.PlayerRecord{ID: 1, Username: "alice"})
	table.Insert(&session.PlayerRecord{ID: 2, Username: "bob"})
	tr.Outbox(1)
	tr.Outbox(2)

	c.HandleChatMessage(context.Background(), 1, "hello")

	ob2 := tr.Outbox(2)
	if len(ob2.ChatMessages) != 1 || !strings.Contains(ob2.ChatMessages[0], "hello") {
		t.Fatalf("expected bob to receive a broadcast containing the message, got %+v", ob2.ChatMessages)
	}
	ob1 := tr.Outbox(1)
	if len(ob1.ChatMessages) != 1 {
		t.Fatalf("expected the sender to also receive the broadcast, got %+v", ob1.ChatMessages)
	}
}

func TestBroadcastMessageRejectsOverLongText(t *testing.T) {
	c, table, tr := newTestRig(t, nil, &fakeEmitter{})
	table.Insert(&session.PlayerRecord{ID: 1, Username: "alice"})
	tr.Outbox(1)

	err := c.BroadcastMessage(context.Background(), strings.Repeat("x", 10000))
	if err != ErrInvalidMessage {
		t.Fatalf("expected ErrInvalidMessage for an over-long message, got %v", err)
	}
	if len(tr.Outbox(1).ChatMessages) != 0 {
		t.Fatalf("expected no broadcast to have been delivered for a rejected message")
	}
}

func TestBroadcastMessageRejectsEmptyText(t *testing.T) {
	c, _, _ := newTestRig(t, nil, &fakeEmitter{})
	if err := c.BroadcastMessage(context.Background(), ""); err != ErrInvalidMessage {
		t.Fatalf("expected ErrInvalidMessage for empty text, got %v", err)
	}
}
