// Package transport implements the two Transport Protocol variants that own
// a connection endpoint and drive its read/write tasks: StreamProtocol for
// a reliable, ordered byte channel, and DatagramProtocol for an unreliable,
// message-at-a-time datagram socket shared across many peers.
//
// Both variants read outbound frames from two independently-ordered queues
// (internal and external) and deliver inbound frames to a single sink, per
// the non-biased multiplexing and exclusive-inbound-ownership rules
// described in §5/§9 of the protocol this package implements.
//
// A Raw frame observed coming out of a StreamProtocol's read task is, in
// practice, a signal that the underlying byte stream is desynchronized:
// the stream codec cannot resynchronize past an unknown tag, it can only
// surface a bounded diagnostic blob. Embedders should treat repeated Raw
// frames from a stream connection as grounds to tear the connection down,
// not as ordinary application data.
package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrInvalidAddress is returned when an invalid peer address is provided.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrNotStarted reports an operation that requires a started transport.
	// No operation in this package returns it: sending before Start is
	// accepted.
	ErrNotStarted = errors.New("transport: not started")

	// ErrNoHandler is returned when a protocol is constructed without a
	// FrameHandler.
	ErrNoHandler = errors.New("transport: no frame handler configured")

	// ErrNoMetrics is returned when a protocol is constructed without a
	// Metrics handle.
	ErrNoMetrics = errors.New("transport: no metrics handle configured")

	// ErrAlreadyStarted is returned when Start is called a second time on
	// the same protocol or manager instance.
	ErrAlreadyStarted = errors.New("transport: task already started")

	// ErrNoRemote reports a missing remote address. NewDatagramProtocol
	// does not return it: DatagramConfig has no remote address, since the
	// remote is given per send.
	ErrNoRemote = errors.New("transport: no remote address configured")

	// ErrUnknownRemote is returned by a Demultiplexer when asked to
	// deregister a remote address it never registered.
	ErrUnknownRemote = errors.New("transport: unknown remote address")

	// ErrDuplicateRemote reports a remote address that already has an
	// inbound queue. The demultiplexer does not return it: asking for a
	// known remote hands back its existing connection.
	ErrDuplicateRemote = errors.New("transport: remote address already registered")
)
