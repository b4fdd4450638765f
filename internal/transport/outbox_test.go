package transport

import (
	"encoding/json"
	"testing"

	"scenerelay/internal/wire"
)

func TestFlushSkipsEmptyFrame(t *testing.T) {
	var sent [][]byte
	o := newClientOutbox(func(b []byte) error { sent = append(sent, b); return nil })
	o.flush()
	if len(sent) != 0 {
		t.Fatalf("expected no send for an empty frame, got %d sends", len(sent))
	}
}

func TestFlushCoalescesMultipleCallsIntoOneFrame(t *testing.T) {
	var sent [][]byte
	o := newClientOutbox(func(b []byte) error { sent = append(sent, b); return nil })

	o.UpdatePlayerPosition(1, wire.Vec2{X: 1, Y: 2})
	o.UpdatePlayerScale(1, true)
	o.AddChatMessage("hello")
	o.flush()

	if len(sent) != 1 {
		t.Fatalf("expected exactly one send for a single dispatch turn, got %d", len(sent))
	}
	var decoded outboundFrame
	if err := json.Unmarshal(sent[0], &decoded); err != nil {
		t.Fatalf("unmarshal sent frame: %v", err)
	}
	if len(decoded.PlayerPositions) != 1 || len(decoded.PlayerScales) != 1 || len(decoded.ChatMessages) != 1 {
		t.Fatalf("expected all three enqueued updates to appear in one frame, got %+v", decoded)
	}
}

func TestFlushResetsFrameForNextTurn(t *testing.T) {
	var sent [][]byte
	o := newClientOutbox(func(b []byte) error { sent = append(sent, b); return nil })

	o.AddPlayerDeathData(1)
	o.flush()
	o.flush()

	if len(sent) != 1 {
		t.Fatalf("expected the second flush of an empty frame to be a no-op, got %d sends", len(sent))
	}
}

func TestAddChatMessageSplitsOnNewline(t *testing.T) {
	var sent [][]byte
	o := newClientOutbox(func(b []byte) error { sent = append(sent, b); return nil })
	o.AddChatMessage("line one\nline two")
	o.flush()

	var decoded outboundFrame
	if err := json.Unmarshal(sent[0], &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.ChatMessages) != 2 || decoded.ChatMessages[0] != "line one" || decoded.ChatMessages[1] != "line two" {
		t.Fatalf("expected chat text to split into two frames on the newline, got %+v", decoded.ChatMessages)
	}
}

func TestFlushWithNilSendDropsSilently(t *testing.T) {
	o := newClientOutbox(nil)
	o.AddPlayerDeathData(1)
	o.flush()
}

func TestSetLoginResponseOverwritesPriorCall(t *testing.T) {
	var sent [][]byte
	o := newClientOutbox(func(b []byte) error { sent = append(sent, b); return nil })
	o.SetLoginResponse(wire.LoginInvalidUser, nil, nil)
	o.SetLoginResponse(wire.LoginSuccess, []int32{1}, nil)
	o.flush()

	var decoded outboundFrame
	json.Unmarshal(sent[0], &decoded)
	if decoded.LoginResponse == nil || decoded.LoginResponse.Status != wire.LoginSuccess {
		t.Fatalf("expected the last SetLoginResponse call to win, got %+v", decoded.LoginResponse)
	}
}
