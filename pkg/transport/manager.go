package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/domeland/network/pkg/wire"
	"github.com/pion/logging"
)

// Manager coordinates a peer's stream and datagram protocols behind a
// single Send/FrameHandler surface, so a frame router need not know which
// transport variant carried a given frame.
type Manager struct {
	stream   *StreamProtocol
	datagram *DatagramProtocol
	handler  FrameHandler

	mu      sync.RWMutex
	started bool
	closed  bool
}

// ManagerConfig configures the transport manager.
type ManagerConfig struct {
	// Port is the port to listen on (default: DefaultPort).
	Port int

	// StreamEnabled controls whether the stream protocol is enabled. If
	// both StreamEnabled and DatagramEnabled are false, both are enabled.
	StreamEnabled bool

	// DatagramEnabled controls whether the datagram protocol is enabled.
	// If both StreamEnabled and DatagramEnabled are false, both are enabled.
	DatagramEnabled bool

	// FrameHandler is called for each inbound frame, regardless of which
	// transport variant delivered it. Required.
	FrameHandler FrameHandler

	// Metrics receives counters for both protocols. Required.
	Metrics *Metrics

	// LoggerFactory creates loggers for both protocols. If nil, logging is
	// disabled.
	LoggerFactory logging.LoggerFactory

	// DatagramConn is an optional pre-existing PacketConn, for testing.
	DatagramConn net.PacketConn

	// StreamListener is an optional pre-existing Listener, for testing.
	StreamListener net.Listener
}

// NewManager creates a new transport manager with the given configuration.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.FrameHandler == nil {
		return nil, ErrNoHandler
	}
	if config.Metrics == nil {
		return nil, ErrNoMetrics
	}

	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if !config.StreamEnabled && !config.DatagramEnabled {
		config.StreamEnabled = true
		config.DatagramEnabled = true
	}

	m := &Manager{handler: config.FrameHandler}
	listenAddr := fmt.Sprintf(":%d", config.Port)

	if config.DatagramEnabled {
		dp, err := NewDatagramProtocol(DatagramConfig{
			Conn:          config.DatagramConn,
			ListenAddr:    listenAddr,
			FrameHandler:  config.FrameHandler,
			Metrics:       config.Metrics,
			LoggerFactory: config.LoggerFactory,
		})
		if err != nil {
			return nil, fmt.Errorf("creating datagram protocol: %w", err)
		}
		m.datagram = dp
	}

	if config.StreamEnabled {
		sp, err := NewStreamProtocol(StreamConfig{
			Listener:      config.StreamListener,
			ListenAddr:    listenAddr,
			FrameHandler:  config.FrameHandler,
			Metrics:       config.Metrics,
			LoggerFactory: config.LoggerFactory,
		})
		if err != nil {
			if m.datagram != nil {
				m.datagram.Stop()
			}
			return nil, fmt.Errorf("creating stream protocol: %w", err)
		}
		m.stream = sp
	}

	return m, nil
}

// Start begins both enabled protocols.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	if m.datagram != nil {
		if err := m.datagram.Start(); err != nil {
			return fmt.Errorf("starting datagram protocol: %w", err)
		}
	}

	if m.stream != nil {
		if err := m.stream.Start(); err != nil {
			if m.datagram != nil {
				m.datagram.Stop()
			}
			return fmt.Errorf("starting stream protocol: %w", err)
		}
	}

	return nil
}

// Stop closes both protocols.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	m.mu.Unlock()

	var errs []error

	if m.datagram != nil {
		if err := m.datagram.Stop(); err != nil && err != ErrClosed {
			errs = append(errs, fmt.Errorf("stopping datagram protocol: %w", err))
		}
	}

	if m.stream != nil {
		if err := m.stream.Stop(); err != nil && err != ErrClosed {
			errs = append(errs, fmt.Errorf("stopping stream protocol: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// SendInternal routes a control frame to peer over the protocol variant
// peer.Kind names.
func (m *Manager) SendInternal(peer PeerAddress, f wire.Frame) error {
	return m.send(peer, f, true)
}

// SendExternal routes an application frame to peer over the protocol
// variant peer.Kind names.
func (m *Manager) SendExternal(peer PeerAddress, f wire.Frame) error {
	return m.send(peer, f, false)
}

func (m *Manager) send(peer PeerAddress, f wire.Frame, internal bool) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	m.mu.RUnlock()

	if !peer.IsValid() {
		return ErrInvalidAddress
	}

	switch peer.Kind {
	case KindDatagram:
		if m.datagram == nil {
			return fmt.Errorf("transport: datagram protocol not enabled")
		}
		if internal {
			return m.datagram.SendInternal(peer.Addr, f)
		}
		return m.datagram.SendExternal(peer.Addr, f)
	case KindStream:
		if m.stream == nil {
			return fmt.Errorf("transport: stream protocol not enabled")
		}
		if internal {
			return m.stream.SendInternal(peer.Addr, f)
		}
		return m.stream.SendExternal(peer.Addr, f)
	default:
		return ErrInvalidAddress
	}
}

// LocalAddresses returns all local addresses the manager is listening on.
func (m *Manager) LocalAddresses() []net.Addr {
	var addrs []net.Addr

	if m.datagram != nil {
		addrs = append(addrs, m.datagram.LocalAddr())
	}
	if m.stream != nil {
		addrs = append(addrs, m.stream.LocalAddr())
	}

	return addrs
}

// Datagram returns the datagram protocol, or nil if not enabled.
func (m *Manager) Datagram() *DatagramProtocol {
	return m.datagram
}

// Stream returns the stream protocol, or nil if not enabled.
func (m *Manager) Stream() *StreamProtocol {
	return m.stream
}
