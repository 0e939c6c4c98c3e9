// Package router implements a reference Frame Router: the external
// collaborator the framing core in pkg/transport hands inbound frames to,
// and through which an embedder pushes outbound frames back onto a peer's
// internal or external source queue.
//
// This is a minimal registry-based router, the Go analogue of a map-based
// dispatch table: Tag → Handler. Production embedders with richer routing
// needs (per-stream dispatch, session state machines) are expected to
// layer their own logic on top of Manager directly; this package covers
// the common case of "dispatch by frame tag, with a default handler for
// anything unregistered".
package router

import (
	"sync"

	"github.com/domeland/network/pkg/transport"
	"github.com/domeland/network/pkg/wire"
)

// Handler processes one inbound frame from a known peer.
type Handler func(peer transport.PeerAddress, f wire.Frame)

// Router dispatches inbound frames to a Handler registered for their tag,
// falling back to a default handler (typically raw-frame bookkeeping or a
// connection-reset decision) when no specific handler is registered.
type Router struct {
	mu       sync.RWMutex
	handlers map[wire.Tag]Handler
	fallback Handler

	manager *transport.Manager

	participantsMu sync.RWMutex
	participants   map[string]wire.ParticipantID // PeerAddress.String() -> ID
}

// New creates a Router that sends outbound frames through manager.
func New(manager *transport.Manager) *Router {
	return &Router{
		handlers:     make(map[wire.Tag]Handler),
		manager:      manager,
		participants: make(map[string]wire.ParticipantID),
	}
}

// Handle registers the handler invoked for inbound frames carrying tag.
// Registering a handler for a tag that already has one replaces it.
func (r *Router) Handle(tag wire.Tag, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tag] = h
}

// HandleDefault registers the handler invoked for any tag without a
// specific registration, including wire.TagRaw.
func (r *Router) HandleDefault(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Dispatch is the transport.FrameHandler this Router exposes to
// transport.Manager/transport.StreamProtocol/transport.DatagramProtocol:
// it is frame_sink from the framing core's point of view.
func (r *Router) Dispatch(msg *transport.Inbound) {
	if pid, ok := msg.Frame.(wire.ParticipantID); ok {
		r.participantsMu.Lock()
		r.participants[msg.Peer.String()] = pid
		r.participantsMu.Unlock()
	}

	r.mu.RLock()
	h, ok := r.handlers[msg.Frame.Tag()]
	fallback := r.fallback
	r.mu.RUnlock()

	if ok {
		h(msg.Peer, msg.Frame)
		return
	}
	if fallback != nil {
		fallback(msg.Peer, msg.Frame)
	}
}

// ParticipantOf returns the ParticipantID most recently announced by peer,
// and whether one has been seen yet.
func (r *Router) ParticipantOf(peer transport.PeerAddress) (wire.ParticipantID, bool) {
	r.participantsMu.RLock()
	defer r.participantsMu.RUnlock()
	pid, ok := r.participants[peer.String()]
	return pid, ok
}

// SendInternal queues a control frame to peer on its internal source.
func (r *Router) SendInternal(peer transport.PeerAddress, f wire.Frame) error {
	return r.manager.SendInternal(peer, f)
}

// SendExternal queues an application frame to peer on its external source.
func (r *Router) SendExternal(peer transport.PeerAddress, f wire.Frame) error {
	return r.manager.SendExternal(peer, f)
}

// Forget drops any participant-ID bookkeeping for peer, for use once its
// connection has been torn down.
func (r *Router) Forget(peer transport.PeerAddress) {
	r.participantsMu.Lock()
	delete(r.participants, peer.String())
	r.participantsMu.Unlock()
}
