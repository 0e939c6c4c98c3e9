package transport

import "github.com/domeland/network/pkg/wire"

// Inbound is a decoded frame delivered to the frame router, tagged with
// the peer it arrived from.
type Inbound struct {
	// Frame is the decoded frame.
	Frame wire.Frame
	// Peer identifies the source of the frame.
	Peer PeerAddress
}

// FrameHandler is called for each inbound frame. Implementations should
// process frames quickly or dispatch to a goroutine, since it runs on a
// connection's read task and blocking it stalls that connection.
type FrameHandler func(msg *Inbound)
