package eventbus

import "testing"

func TestEmitChatRunsAllSubscribersAndReportsCancellation(t *testing.T) {
	b := New(nil)
	var calls []string
	b.SubscribeChat(func(e ChatEvent) bool {
		calls = append(calls, "first")
		return true
	})
	b.SubscribeChat(func(e ChatEvent) bool {
		calls = append(calls, "second")
		return false
	})

	cancelled := b.EmitChat(ChatEvent{PlayerID: 1, Username: "alice", Text: "hi"})
	if !cancelled {
		t.Fatalf("expected cancellation once any subscriber returns true")
	}
	if len(calls) != 2 {
		t.Fatalf("expected both subscribers to run despite the first cancelling, got %+v", calls)
	}
}

func TestUnsubscribeChatStopsFurtherDelivery(t *testing.T) {
	b := New(nil)
	var count int
	h := b.SubscribeChat(func(e ChatEvent) bool { count++; return false })
	b.EmitChat(ChatEvent{})
	b.UnsubscribeChat(h)
	b.EmitChat(ChatEvent{})
	if count != 1 {
		t.Fatalf("expected exactly one delivery before unsubscribe, got %d", count)
	}
}

func TestPanickingChatSubscriberDoesNotCancelOrCrash(t *testing.T) {
	b := New(nil)
	b.SubscribeChat(func(e ChatEvent) bool { panic("boom") })
	var ran bool
	b.SubscribeChat(func(e ChatEvent) bool { ran = true; return false })

	cancelled := b.EmitChat(ChatEvent{})
	if cancelled {
		t.Fatalf("expected a panicking subscriber to be treated as non-cancelling")
	}
	if !ran {
		t.Fatalf("expected the subscriber after the panicking one to still run")
	}
}

func TestEmitConnectDeliversToAllSubscribers(t *testing.T) {
	b := New(nil)
	var got []uint16
	b.SubscribeConnect(func(playerID uint16, username string) { got = append(got, playerID) })
	b.SubscribeConnect(func(playerID uint16, username string) { got = append(got, playerID) })

	b.EmitConnect(7, "alice")
	if len(got) != 2 || got[0] != 7 || got[1] != 7 {
		t.Fatalf("expected both connect subscribers to receive id 7, got %+v", got)
	}
}

func TestEmitHostChangeDeliversSceneAndHost(t *testing.T) {
	b := New(nil)
	var gotScene string
	var gotHost uint16
	b.SubscribeHostChange(func(sceneName string, newHostID uint16) {
		gotScene, gotHost = sceneName, newHostID
	})
	b.EmitHostChange("forest", 3)
	if gotScene != "forest" || gotHost != 3 {
		t.Fatalf("expected forest/3, got %s/%d", gotScene, gotHost)
	}
}

func TestPanickingConnectSubscriberDoesNotCrash(t *testing.T) {
	b := New(nil)
	b.SubscribeConnect(func(playerID uint16, username string) { panic("boom") })
	var ran bool
	b.SubscribeConnect(func(playerID uint16, username string) { ran = true })
	b.EmitConnect(1, "alice")
	if !ran {
		t.Fatalf("expected the subscriber after the panicking one to still run")
	}
}
