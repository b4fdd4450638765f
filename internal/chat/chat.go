// Package chat implements C9 ChatRouter: routing inbound chat to the
// command dispatcher, the cancelable chat event, or a plain broadcast
// (spec.md §4.9).
package chat

import (
	"context"
	"errors"
	"fmt"

	"scenerelay/internal/accesslists"
	"scenerelay/internal/eventbus"
	"scenerelay/internal/session"
	"scenerelay/internal/settings"
	"scenerelay/internal/transport"
	"scenerelay/logging"
	loggingchat "scenerelay/logging/chat"
)

// ErrInvalidMessage is returned by BroadcastMessage when text is empty or
// exceeds the server's configured MaxMessageLength (spec.md §4.9).
var ErrInvalidMessage = errors.New("chat: invalid message")

// Sender describes the player a CommandBus dispatch is evaluated against.
type Sender struct {
	ID           uint16
	IsAuthorized bool
	Outbox       transport.UpdateBuilder
}

// CommandBus is the command parsing/dispatch collaborator spec.md §1 places
// out of scope for the core. A nil CommandBus is valid: every message then
// falls through to the chat event and broadcast path.
type CommandBus interface {
	Dispatch(ctx context.Context, sender Sender, text string) (handled bool)
}

// ChatEmitter is the eventbus.Bus slice this package emits the cancelable
// PlayerChatEvent through.
type ChatEmitter interface {
	EmitChat(event eventbus.ChatEvent) (cancelled bool)
}

// Transport is the narrow outbox-lookup slice this package needs.
type Transport interface {
	OutboxFor(id uint16) transport.UpdateBuilder
}

// Controller routes one inbound chat message at a time.
type Controller struct {
	table     *session.Table
	lists     *accesslists.Lists
	transport Transport
	commands  CommandBus
	bus       ChatEmitter
	settings  func() settings.Settings
	pub       logging.Publisher
}

func New(table *session.Table, lists *accesslists.Lists, tr Transport, commands CommandBus, bus ChatEmitter, settingsFn func() settings.Settings, pub logging.Publisher) *Controller {
	return &Controller{table: table, lists: lists, transport: tr, commands: commands, bus: bus, settings: settingsFn, pub: pub}
}

// HandleChatMessage implements spec.md §4.9's inbound ChatMessage flow:
// CommandBus dispatch, then the cancelable event, then a plain broadcast.
func (c *Controller) HandleChatMessage(ctx context.Context, id uint16, text string) {
	rec, ok := c.table.Get(id)
	if !ok {
		return
	}
	snap := rec.Snapshot()
	outbox := c.transport.OutboxFor(id)
	if outbox == nil {
		return
	}

	actor := logging.EntityRef{Kind: logging.EntityKindPlayer, ID: session.IDString(id)}

	if c.commands != nil {
		isAuthorized := c.lists.IsAuthorized(snap.AuthKey)
		sender := Sender{ID: id, IsAuthorized: isAuthorized, Outbox: outbox}
		if c.commands.Dispatch(ctx, sender, text) {
			loggingchat.Dispatched(ctx, c.pub, actor)
			return
		}
	}

	cancelled := c.bus.EmitChat(eventbus.ChatEvent{PlayerID: id, Username: snap.Username, Text: text})
	if cancelled {
		loggingchat.Cancelled(ctx, c.pub, actor)
		return
	}

	_ = c.BroadcastMessage(ctx, fmt.Sprintf("[%s]: %s", snap.Username, text))
}

// BroadcastMessage sends a server-originated message to every active
// record, including the sender if it happens to be one (spec.md §4.9).
func (c *Controller) BroadcastMessage(ctx context.Context, text string) error {
	cfg := c.settings()
	if text == "" || (cfg.MaxMessageLength > 0 && len(text) > cfg.MaxMessageLength) {
		loggingchat.MessageRejected(ctx, c.pub, len(text))
		return ErrInvalidMessage
	}
	for _, peer := range c.table.Snapshot() {
		if outbox := c.transport.OutboxFor(peer.ID); outbox != nil {
			outbox.AddChatMessage(text)
		}
	}
	loggingchat.Broadcast(ctx, c.pub, logging.EntityRef{Kind: logging.EntityKindServer}, text)
	return nil
}
