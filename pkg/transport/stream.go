package transport

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/domeland/network/internal/queue"
	"github.com/domeland/network/pkg/codec"
	"github.com/domeland/network/pkg/wire"
	"github.com/pion/logging"
)

// StreamProtocol is the reliable, ordered Transport Protocol variant. It
// wraps a net.Listener and manages one connection per peer, each driven by
// an independent read task and write task.
type StreamProtocol struct {
	listener net.Listener
	handler  FrameHandler
	metrics  *Metrics
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	connsMu sync.RWMutex
	conns   map[string]*streamConn

	mu      sync.RWMutex
	started bool
	closed  bool
}

// streamConn is one peer's stream connection: a byte-oriented net.Conn plus
// the pair of outbound frame queues its write task multiplexes between.
// Per the non-biased multiplexing rule, the write task does not prefer
// internal over external or vice versa.
type streamConn struct {
	conn     net.Conn
	internal *queue.Queue[wire.Frame]
	external *queue.Queue[wire.Frame]

	closeOnce sync.Once
}

func newStreamConn(conn net.Conn) *streamConn {
	return &streamConn{
		conn:     conn,
		internal: queue.New[wire.Frame](),
		external: queue.New[wire.Frame](),
	}
}

func (c *streamConn) close() {
	c.closeOnce.Do(func() {
		c.internal.Close()
		c.external.Close()
		c.conn.Close()
	})
}

// StreamConfig configures a StreamProtocol.
type StreamConfig struct {
	// Listener is an optional pre-existing Listener to use. If nil, a new
	// listener is created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":14625"). Ignored if
	// Listener is provided.
	ListenAddr string

	// FrameHandler is called for each inbound frame. Required.
	FrameHandler FrameHandler

	// Metrics receives counters for this protocol instance. Required.
	Metrics *Metrics

	// LoggerFactory creates loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewStreamProtocol creates a new StreamProtocol with the given configuration.
func NewStreamProtocol(config StreamConfig) (*StreamProtocol, error) {
	if config.FrameHandler == nil {
		return nil, ErrNoHandler
	}
	if config.Metrics == nil {
		return nil, ErrNoMetrics
	}

	s := &StreamProtocol{
		listener: config.Listener,
		handler:  config.FrameHandler,
		metrics:  config.Metrics,
		closeCh:  make(chan struct{}),
		conns:    make(map[string]*streamConn),
	}

	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("transport-stream")
	}

	if s.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		s.listener = listener
	}

	return s, nil
}

// Start begins accepting connections.
func (s *StreamProtocol) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infof("stream protocol listening on %s", s.listener.Addr())
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes all connections and the listener, and waits for every task
// goroutine to exit.
func (s *StreamProtocol) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("stopping stream protocol")
	}

	close(s.closeCh)
	s.listener.Close()

	s.connsMu.Lock()
	for _, c := range s.conns {
		c.close()
	}
	s.conns = make(map[string]*streamConn)
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// LocalAddr returns the local address the protocol is listening on.
func (s *StreamProtocol) LocalAddr() net.Addr {
	return s.listener.Addr()
}

// SendInternal queues a control frame to addr on the internal source, per
// the priority the non-biased multiplexer gives internal_src over
// external_src only in that both are considered on every write, never one
// starved in favor of the other.
func (s *StreamProtocol) SendInternal(addr net.Addr, f wire.Frame) error {
	return s.send(addr, f, true)
}

// SendExternal queues an application frame to addr on the external source.
func (s *StreamProtocol) SendExternal(addr net.Addr, f wire.Frame) error {
	return s.send(addr, f, false)
}

func (s *StreamProtocol) send(addr net.Addr, f wire.Frame, internal bool) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	if addr == nil {
		return ErrInvalidAddress
	}

	c, err := s.getOrDialConn(addr)
	if err != nil {
		return err
	}
	if internal {
		c.internal.Push(f)
	} else {
		c.external.Push(f)
	}
	return nil
}

// AddConnection adopts an already-established net.Conn (e.g. from
// net.Pipe, for tests) and starts its read and write tasks.
func (s *StreamProtocol) AddConnection(conn net.Conn) {
	c := newStreamConn(conn)
	s.trackConn(conn.RemoteAddr().String(), c)
	s.startConnTasks(c)
}

func (s *StreamProtocol) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				continue
			}
		}

		c := newStreamConn(conn)
		s.trackConn(conn.RemoteAddr().String(), c)
		s.startConnTasks(c)
	}
}

func (s *StreamProtocol) getOrDialConn(addr net.Addr) (*streamConn, error) {
	addrStr := addr.String()

	s.connsMu.RLock()
	c, ok := s.conns[addrStr]
	s.connsMu.RUnlock()
	if ok {
		return c, nil
	}

	conn, err := net.Dial("tcp", addrStr)
	if err != nil {
		return nil, err
	}

	c = newStreamConn(conn)

	s.connsMu.Lock()
	if existing, ok := s.conns[addrStr]; ok {
		s.connsMu.Unlock()
		conn.Close()
		c.close()
		return existing, nil
	}
	s.conns[addrStr] = c
	s.connsMu.Unlock()
	s.metrics.ConnsOpen.WithLabelValues(KindStream.String()).Inc()

	s.startConnTasks(c)
	return c, nil
}

func (s *StreamProtocol) trackConn(addrStr string, c *streamConn) {
	s.connsMu.Lock()
	s.conns[addrStr] = c
	s.connsMu.Unlock()
	s.metrics.ConnsOpen.WithLabelValues(KindStream.String()).Inc()
}

func (s *StreamProtocol) startConnTasks(c *streamConn) {
	s.wg.Add(2)
	go s.readTask(c)
	go s.writeTask(c)
}

// readTask decodes frames off the wire until the connection closes or a
// fatal codec error occurs, delivering each to the configured FrameHandler.
func (s *StreamProtocol) readTask(c *streamConn) {
	defer s.wg.Done()
	defer s.dropConn(c)

	peer := NewStreamPeerAddress(c.conn.RemoteAddr())
	for {
		f, err := codec.DecodeStream(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-s.closeCh:
				return
			default:
				if s.log != nil {
					s.log.Warnf("stream decode error from %v: %v", peer, err)
				}
				return
			}
		}

		s.metrics.FramesReceived.WithLabelValues(KindStream.String()).Inc()
		if _, ok := f.(wire.Raw); ok {
			s.metrics.RawFrames.WithLabelValues(KindStream.String()).Inc()
		}

		s.handler(&Inbound{Frame: f, Peer: peer})
	}
}

// writeTask multiplexes c's internal and external outbound queues onto the
// connection using a plain select, which Go picks among ready cases
// uniformly at random: neither queue is starved in favor of the other.
func (s *StreamProtocol) writeTask(c *streamConn) {
	defer s.wg.Done()

	internal := c.internal.Out()
	external := c.external.Out()

	for internal != nil || external != nil {
		var f wire.Frame
		var ok bool

		select {
		case f, ok = <-internal:
			if !ok {
				internal = nil
				continue
			}
		case f, ok = <-external:
			if !ok {
				external = nil
				continue
			}
		}

		if err := codec.EncodeStream(c.conn, f); err != nil {
			if s.log != nil {
				s.log.Warnf("stream encode error to %v: %v", c.conn.RemoteAddr(), err)
			}
			c.close()
			return
		}
		s.metrics.FramesSent.WithLabelValues(KindStream.String()).Inc()
	}
}

func (s *StreamProtocol) dropConn(c *streamConn) {
	addrStr := c.conn.RemoteAddr().String()
	s.connsMu.Lock()
	if existing, ok := s.conns[addrStr]; ok && existing == c {
		delete(s.conns, addrStr)
	}
	s.connsMu.Unlock()
	c.close()
	s.metrics.ConnsOpen.WithLabelValues(KindStream.String()).Dec()
}
