package transport

import (
	"net"
	"testing"
	"time"

	"github.com/domeland/network/pkg/wire"
)

func TestNewManager(t *testing.T) {
	t.Run("with handler", func(t *testing.T) {
		m, err := NewManager(ManagerConfig{
			Port:         0,
			FrameHandler: func(msg *Inbound) {},
			Metrics:      newTestMetrics(),
		})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		defer m.Stop()

		if m.datagram == nil {
			t.Error("NewManager() datagram protocol is nil")
		}
		if m.stream == nil {
			t.Error("NewManager() stream protocol is nil")
		}
	})

	t.Run("without handler", func(t *testing.T) {
		_, err := NewManager(ManagerConfig{Port: 0, Metrics: newTestMetrics()})
		if err != ErrNoHandler {
			t.Errorf("NewManager() error = %v, want %v", err, ErrNoHandler)
		}
	})

	t.Run("datagram only", func(t *testing.T) {
		m, err := NewManager(ManagerConfig{
			Port:            0,
			DatagramEnabled: true,
			StreamEnabled:   false,
			FrameHandler:    func(msg *Inbound) {},
			Metrics:         newTestMetrics(),
		})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		defer m.Stop()

		if m.datagram == nil {
			t.Error("NewManager() datagram protocol is nil")
		}
		if m.stream != nil {
			t.Error("NewManager() stream protocol should be nil")
		}
	})

	t.Run("stream only", func(t *testing.T) {
		m, err := NewManager(ManagerConfig{
			Port:            0,
			DatagramEnabled: false,
			StreamEnabled:   true,
			FrameHandler:    func(msg *Inbound) {},
			Metrics:         newTestMetrics(),
		})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		defer m.Stop()

		if m.datagram != nil {
			t.Error("NewManager() datagram protocol should be nil")
		}
		if m.stream == nil {
			t.Error("NewManager() stream protocol is nil")
		}
	})
}

func TestManagerStartStop(t *testing.T) {
	m, err := NewManager(ManagerConfig{Port: 0, FrameHandler: func(msg *Inbound) {}, Metrics: newTestMetrics()})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if err := m.Start(); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if err := m.Start(); err != ErrAlreadyStarted {
		t.Errorf("Start() second call error = %v, want %v", err, ErrAlreadyStarted)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := m.Stop(); err != ErrClosed {
		t.Errorf("Stop() second call error = %v, want %v", err, ErrClosed)
	}
}

func TestManagerSendDatagram(t *testing.T) {
	received := make(chan *Inbound, 1)

	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() server error = %v", err)
	}
	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() client error = %v", err)
	}

	server, err := NewManager(ManagerConfig{
		DatagramConn:    serverConn,
		DatagramEnabled: true,
		StreamEnabled:   false,
		FrameHandler:    func(msg *Inbound) { received <- msg },
		Metrics:         newTestMetrics(),
	})
	if err != nil {
		t.Fatalf("NewManager() server error = %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start() server error = %v", err)
	}
	defer server.Stop()

	client, err := NewManager(ManagerConfig{
		DatagramConn:    clientConn,
		DatagramEnabled: true,
		StreamEnabled:   false,
		FrameHandler:    func(msg *Inbound) {},
		Metrics:         newTestMetrics(),
	})
	if err != nil {
		t.Fatalf("NewManager() client error = %v", err)
	}
	if err := client.Start(); err != nil {
		t.Fatalf("Start() client error = %v", err)
	}
	defer client.Stop()

	peer := NewDatagramPeerAddress(server.Datagram().LocalAddr())
	want := wire.Shutdown{}
	if err := client.SendExternal(peer, want); err != nil {
		t.Fatalf("SendExternal() error = %v", err)
	}

	select {
	case msg := <-received:
		if _, ok := msg.Frame.(wire.Shutdown); !ok {
			t.Errorf("received = %+v, want Shutdown", msg.Frame)
		}
		if msg.Peer.Kind != KindDatagram {
			t.Errorf("Kind = %v, want datagram", msg.Peer.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestManagerSendErrors(t *testing.T) {
	t.Run("invalid peer address", func(t *testing.T) {
		m, err := NewManager(ManagerConfig{Port: 0, FrameHandler: func(msg *Inbound) {}, Metrics: newTestMetrics()})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		defer m.Stop()

		if err := m.SendExternal(PeerAddress{}, wire.Shutdown{}); err != ErrInvalidAddress {
			t.Errorf("SendExternal() error = %v, want %v", err, ErrInvalidAddress)
		}
	})

	t.Run("send after close", func(t *testing.T) {
		m, err := NewManager(ManagerConfig{Port: 0, FrameHandler: func(msg *Inbound) {}, Metrics: newTestMetrics()})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		m.Stop()

		addr, _ := net.ResolveUDPAddr("udp", "127.0.0.1:14625")
		if err := m.SendExternal(NewDatagramPeerAddress(addr), wire.Shutdown{}); err != ErrClosed {
			t.Errorf("SendExternal() error = %v, want %v", err, ErrClosed)
		}
	})

	t.Run("datagram send when disabled", func(t *testing.T) {
		m, err := NewManager(ManagerConfig{
			Port:            0,
			DatagramEnabled: false,
			StreamEnabled:   true,
			FrameHandler:    func(msg *Inbound) {},
			Metrics:         newTestMetrics(),
		})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		defer m.Stop()

		addr, _ := net.ResolveUDPAddr("udp", "127.0.0.1:14625")
		if err := m.SendExternal(NewDatagramPeerAddress(addr), wire.Shutdown{}); err == nil {
			t.Error("SendExternal() expected error for disabled datagram protocol")
		}
	})

	t.Run("stream send when disabled", func(t *testing.T) {
		m, err := NewManager(ManagerConfig{
			Port:            0,
			DatagramEnabled: true,
			StreamEnabled:   false,
			FrameHandler:    func(msg *Inbound) {},
			Metrics:         newTestMetrics(),
		})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		defer m.Stop()

		addr, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:14625")
		if err := m.SendExternal(NewStreamPeerAddress(addr), wire.Shutdown{}); err == nil {
			t.Error("SendExternal() expected error for disabled stream protocol")
		}
	})
}

func TestManagerLocalAddresses(t *testing.T) {
	m, err := NewManager(ManagerConfig{Port: 0, FrameHandler: func(msg *Inbound) {}, Metrics: newTestMetrics()})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Stop()

	addrs := m.LocalAddresses()
	if len(addrs) != 2 {
		t.Errorf("LocalAddresses() count = %d, want 2", len(addrs))
	}

	hasUDP, hasTCP := false, false
	for _, addr := range addrs {
		switch addr.(type) {
		case *net.UDPAddr:
			hasUDP = true
		case *net.TCPAddr:
			hasTCP = true
		}
	}
	if !hasUDP {
		t.Error("LocalAddresses() missing datagram address")
	}
	if !hasTCP {
		t.Error("LocalAddresses() missing stream address")
	}
}

func TestManagerAccessors(t *testing.T) {
	m, err := NewManager(ManagerConfig{Port: 0, FrameHandler: func(msg *Inbound) {}, Metrics: newTestMetrics()})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Stop()

	if m.Datagram() == nil {
		t.Error("Datagram() = nil")
	}
	if m.Stream() == nil {
		t.Error("Stream() = nil")
	}
}
