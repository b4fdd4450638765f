// Package core wires C1-C9 together behind the transport.Handlers callbacks,
// the single integration point spec.md §9 calls out to keep every other
// package's dependency surface acyclic: transport depends on nothing in
// core, and core depends on transport only through its narrow interfaces.
package core

import (
	"context"

	"scenerelay/internal/accesslists"
	"scenerelay/internal/addons"
	"scenerelay/internal/admission"
	"scenerelay/internal/chat"
	"scenerelay/internal/entitycache"
	"scenerelay/internal/entityrelay"
	"scenerelay/internal/eventbus"
	"scenerelay/internal/lifecycle"
	"scenerelay/internal/router"
	"scenerelay/internal/scene"
	"scenerelay/internal/session"
	"scenerelay/internal/settings"
	"scenerelay/internal/transport"
	"scenerelay/internal/wire"
	"scenerelay/logging"
)

// Server owns every C1-C9 component and the WebSocketTransport it drives.
// Its exported surface is deliberately thin: Start/Stop and the accessors an
// operator CLI needs (Lists, Table, BroadcastAnnouncement, Kick), not the
// internals the relay handlers call.
type Server struct {
	table     *session.Table
	scenes    *scene.Index
	cache     *entitycache.Cache
	lists     *accesslists.Lists
	registry  *addons.Registry
	bus       *eventbus.Bus
	pub       logging.Publisher
	settings  func() settings.Settings
	transport transport.Transport

	admission *admission.Controller
	lifecycle *lifecycle.Controller
	router    *router.Controller
	entities  *entityrelay.Controller
	chat      *chat.Controller
}

// Dependencies collects every externally-owned collaborator Server needs.
// Settings is a func rather than a value so every component reads the
// current settings on each use instead of holding its own copy. Server has
// no entry point that replaces the settings or pushes them to clients.
type Dependencies struct {
	Lists      *accesslists.Lists
	Registry   *addons.Registry
	Bus        *eventbus.Bus
	Publisher  logging.Publisher
	Settings   func() settings.Settings
	Transport  transport.Transport
	CommandBus chat.CommandBus
}

// New builds a Server and registers its transport.Handlers, but does not
// start listening — call Start for that.
func New(deps Dependencies) *Server {
	table := session.NewTable()
	scenes := scene.New(table)
	cache := entitycache.New()

	pub := deps.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}

	s := &Server{
		table:     table,
		scenes:    scenes,
		cache:     cache,
		lists:     deps.Lists,
		registry:  deps.Registry,
		bus:       deps.Bus,
		pub:       pub,
		settings:  deps.Settings,
		transport: deps.Transport,
	}

	s.admission = admission.New(table, deps.Lists, deps.Registry, deps.Settings, pub)
	s.lifecycle = lifecycle.New(table, scenes, cache, s.admission, deps.Transport, deps.Bus, pub)
	s.entities = entityrelay.New(table, scenes, cache, deps.Transport, pub)
	s.chat = chat.New(table, deps.Lists, deps.Transport, deps.CommandBus, deps.Bus, deps.Settings, pub)
	s.router = router.New(table, scenes, deps.Transport, deps.Settings, s.lifecycle, s.entities, s.chat, pub)

	deps.Transport.SetHandlers(transport.Handlers{
		OnLoginRequest:     s.onLoginRequest,
		OnMessage:          s.onMessage,
		OnClientTimeout:    s.onClientTimeout,
		OnClientDisconnect: s.onClientDisconnect,
		OnShutdown:         s.onShutdown,
	})

	return s
}

// Start begins listening on port. Blocks for nothing; the transport serves
// on its own goroutines.
func (s *Server) Start(port int) error {
	return s.transport.StartListening(port)
}

// Stop runs the shutdown sequence (spec.md §5's cancellation clause) and
// then tears down the transport.
func (s *Server) Stop() error {
	s.onShutdown()
	return s.transport.Stop()
}

func (s *Server) onLoginRequest(id uint16, remoteAddr string, hello wire.HelloFrame, outbox transport.UpdateBuilder) bool {
	return s.lifecycle.HandleLogin(context.Background(), id, remoteAddr, hello, outbox)
}

func (s *Server) onMessage(id uint16, envelope wire.InboundEnvelope) {
	s.router.Dispatch(context.Background(), id, envelope)
}

func (s *Server) onClientTimeout(id uint16) {
	s.lifecycle.HandleDeparture(context.Background(), id, true)
}

func (s *Server) onClientDisconnect(id uint16) {
	s.lifecycle.HandleDeparture(context.Background(), id, false)
}

// onShutdown implements spec.md §5: every active client is told why, then
// the table is cleared so no further broadcast can reach a now-gone
// connection.
func (s *Server) onShutdown() {
	s.transport.SetDataForAllClients(func(o transport.UpdateBuilder) {
		o.SetDisconnect(wire.DisconnectShutdown)
	})
	for _, rec := range s.table.Snapshot() {
		s.table.Remove(rec.ID)
	}
}

// Lists exposes the persistent access-list store for an operator CLI.
func (s *Server) Lists() *accesslists.Lists { return s.lists }

// Table exposes a read-only view of currently connected players for an
// operator CLI's "list" subcommand.
func (s *Server) Table() *session.Table { return s.table }

// BroadcastAnnouncement sends an operator-originated chat message to every
// connected client, bypassing CommandBus/ChatEvent (spec.md §4.15 "announce").
func (s *Server) BroadcastAnnouncement(ctx context.Context, text string) error {
	return s.chat.BroadcastMessage(ctx, text)
}

// Kick forcibly disconnects id after telling its client why; peers see an
// ordinary disconnect, not a timeout (spec.md §4.15 "kick").
func (s *Server) Kick(id uint16, reason wire.DisconnectReason) {
	if outbox := s.transport.OutboxFor(id); outbox != nil {
		outbox.SetDisconnect(reason)
	}
	s.lifecycle.HandleDeparture(context.Background(), id, false)
}
