package transport

import (
	"net"
	"sync"
	"time"

	"github.com/domeland/network/internal/queue"
	"github.com/domeland/network/pkg/codec"
	"github.com/domeland/network/pkg/wire"
	"github.com/pion/logging"
)

// DefaultPort is the default port peers listen on.
const DefaultPort = 14625

// DatagramProtocol is the unreliable, message-at-a-time Transport Protocol
// variant. A single net.PacketConn is shared across every peer; an internal
// Demultiplexer routes each inbound datagram to the peer it came from by
// source address, and each peer's connection exclusively owns the inbound
// queue the demultiplexer feeds it.
type DatagramProtocol struct {
	conn    net.PacketConn
	handler FrameHandler
	metrics *Metrics
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	demux *demultiplexer

	mu      sync.RWMutex
	started bool
	closed  bool
}

// DatagramConfig configures a DatagramProtocol.
type DatagramConfig struct {
	// Conn is an optional pre-existing PacketConn to use. If nil, a new
	// connection is created using ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the address to listen on (e.g., ":14625"). Ignored if
	// Conn is provided.
	ListenAddr string

	// FrameHandler is called for each inbound frame. Required.
	FrameHandler FrameHandler

	// Metrics receives counters for this protocol instance. Required.
	Metrics *Metrics

	// LoggerFactory creates loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewDatagramProtocol creates a new DatagramProtocol with the given
// configuration.
func NewDatagramProtocol(config DatagramConfig) (*DatagramProtocol, error) {
	if config.FrameHandler == nil {
		return nil, ErrNoHandler
	}
	if config.Metrics == nil {
		return nil, ErrNoMetrics
	}

	d := &DatagramProtocol{
		conn:    config.Conn,
		handler: config.FrameHandler,
		metrics: config.Metrics,
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("transport-datagram")
	}

	if d.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		d.conn = conn
	}

	d.demux = newDemultiplexer(d)

	return d, nil
}

// Start begins the shared read loop.
func (d *DatagramProtocol) Start() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	if d.log != nil {
		d.log.Infof("datagram protocol listening on %s", d.conn.LocalAddr())
	}

	d.wg.Add(1)
	go d.readLoop()

	return nil
}

// Stop closes the shared socket and every per-peer connection, and waits
// for all task goroutines to exit.
func (d *DatagramProtocol) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	if d.log != nil {
		d.log.Info("stopping datagram protocol")
	}

	close(d.closeCh)
	d.conn.SetReadDeadline(time.Now())
	d.conn.Close()
	d.demux.closeAll()
	d.wg.Wait()

	return nil
}

// LocalAddr returns the local address the protocol is listening on.
func (d *DatagramProtocol) LocalAddr() net.Addr {
	return d.conn.LocalAddr()
}

// SendInternal queues a control frame to addr on the internal source.
func (d *DatagramProtocol) SendInternal(addr net.Addr, f wire.Frame) error {
	return d.send(addr, f, true)
}

// SendExternal queues an application frame to addr on the external source.
func (d *DatagramProtocol) SendExternal(addr net.Addr, f wire.Frame) error {
	return d.send(addr, f, false)
}

func (d *DatagramProtocol) send(addr net.Addr, f wire.Frame, internal bool) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	d.mu.RUnlock()

	if addr == nil {
		return ErrInvalidAddress
	}

	c := d.demux.getOrCreate(addr, d)
	if internal {
		c.internal.Push(f)
	} else {
		c.external.Push(f)
	}
	return nil
}

// writeDatagram sends payload to remote, looping on a short write until
// every byte is accepted. A short write here is not a correctness
// mechanism: the reader side assumes exactly one frame per datagram, so a
// split write would land as two malformed datagrams on the wire. It is
// purely a diagnostic signal, logged and counted each time it happens.
func (d *DatagramProtocol) writeDatagram(payload []byte, remote net.Addr) error {
	offset := 0
	for offset < len(payload) {
		n, err := d.conn.WriteTo(payload[offset:], remote)
		if err != nil {
			return err
		}
		offset += n
		if offset < len(payload) {
			d.metrics.ShortSends.WithLabelValues(KindDatagram.String()).Inc()
			if d.log != nil {
				d.log.Warnf("short datagram send to %v: wrote %d of %d bytes, retrying", remote, offset, len(payload))
			}
		}
	}
	return nil
}

// readLoop is the shared socket's only reader: it demultiplexes every
// inbound datagram to its source peer's exclusively-owned inbound queue.
func (d *DatagramProtocol) readLoop() {
	defer d.wg.Done()

	buf := make([]byte, wire.DatagramScratchSize)

	for {
		select {
		case <-d.closeCh:
			return
		default:
		}

		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-d.closeCh:
				return
			default:
				if d.log != nil {
					d.log.Warnf("datagram read error: %v", err)
				}
				continue
			}
		}
		if n == 0 {
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		c := d.demux.getOrCreate(addr, d)
		c.inbound.Push(datagram)
	}
}

// datagramConn is one peer's share of the datagram socket: an exclusively
// owned inbound queue fed by the shared read loop, and the pair of
// outbound queues its write task multiplexes between.
type datagramConn struct {
	remote   net.Addr
	inbound  *queue.Queue[[]byte]
	internal *queue.Queue[wire.Frame]
	external *queue.Queue[wire.Frame]

	closeOnce sync.Once
}

func newDatagramConn(remote net.Addr) *datagramConn {
	return &datagramConn{
		remote:   remote,
		inbound:  queue.New[[]byte](),
		internal: queue.New[wire.Frame](),
		external: queue.New[wire.Frame](),
	}
}

func (c *datagramConn) close() {
	c.closeOnce.Do(func() {
		c.inbound.Close()
		c.internal.Close()
		c.external.Close()
	})
}

// decodeTask drains c's inbound queue, decoding each raw datagram and
// delivering it to the protocol's FrameHandler. DecodeDatagram never
// errors, so a malformed datagram surfaces as a Raw frame rather than
// terminating the connection.
func (c *datagramConn) decodeTask(wg *sync.WaitGroup, d *DatagramProtocol) {
	defer wg.Done()

	peer := NewDatagramPeerAddress(c.remote)
	for datagram := range c.inbound.Out() {
		f := codec.DecodeDatagram(datagram)

		d.metrics.FramesReceived.WithLabelValues(KindDatagram.String()).Inc()
		if _, ok := f.(wire.Raw); ok {
			d.metrics.RawFrames.WithLabelValues(KindDatagram.String()).Inc()
		}

		d.handler(&Inbound{Frame: f, Peer: peer})
	}
}

// writeTask multiplexes c's internal and external outbound queues onto the
// shared socket using a plain select, giving neither queue priority.
func (c *datagramConn) writeTask(wg *sync.WaitGroup, d *DatagramProtocol) {
	defer wg.Done()

	internal := c.internal.Out()
	external := c.external.Out()
	buf := make([]byte, wire.DatagramScratchSize)

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

		n, err := codec.EncodeDatagram(buf, f)
		if err != nil {
			if d.log != nil {
				d.log.Warnf("datagram encode error to %v: %v", c.remote, err)
			}
			continue
		}
		if err := d.writeDatagram(buf[:n], c.remote); err != nil {
			if d.log != nil {
				d.log.Warnf("datagram send error to %v: %v", c.remote, err)
			}
			continue
		}
		d.metrics.FramesSent.WithLabelValues(KindDatagram.String()).Inc()
	}
}

// demultiplexer maps remote addresses to their datagramConn, creating one
// on first contact (inbound or outbound) and tearing it down on request.
type demultiplexer struct {
	mu    sync.Mutex
	conns map[string]*datagramConn
	wg    sync.WaitGroup
}

func newDemultiplexer(d *DatagramProtocol) *demultiplexer {
	return &demultiplexer{conns: make(map[string]*datagramConn)}
}

func (m *demultiplexer) getOrCreate(addr net.Addr, d *DatagramProtocol) *datagramConn {
	key := addr.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conns[key]; ok {
		return c
	}

	c := newDatagramConn(addr)
	m.conns[key] = c
	d.metrics.ConnsOpen.WithLabelValues(KindDatagram.String()).Inc()

	m.wg.Add(2)
	go c.decodeTask(&m.wg, d)
	go c.writeTask(&m.wg, d)

	return c
}

// deregister removes addr's connection, if any, closing its queues. It
// reports ErrUnknownRemote if addr was never registered.
func (m *demultiplexer) deregister(addr net.Addr, d *DatagramProtocol) error {
	key := addr.String()

	m.mu.Lock()
	c, ok := m.conns[key]
	if ok {
		delete(m.conns, key)
	}
	m.mu.Unlock()

	if !ok {
		return ErrUnknownRemote
	}
	c.close()
	d.metrics.ConnsOpen.WithLabelValues(KindDatagram.String()).Dec()
	return nil
}

func (m *demultiplexer) closeAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*datagramConn)
	m.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	m.wg.Wait()
}
