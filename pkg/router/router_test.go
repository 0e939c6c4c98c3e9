package router

import (
	"net"
	"testing"

	"github.com/domeland/network/pkg/transport"
	"github.com/domeland/network/pkg/wire"
)

func testPeer() transport.PeerAddress {
	addr, _ := net.ResolveUDPAddr("udp", "127.0.0.1:14625")
	return transport.NewDatagramPeerAddress(addr)
}

func TestRouterDispatchesByTag(t *testing.T) {
	r := New(nil)

	var gotShutdown bool
	r.Handle(wire.TagShutdown, func(peer transport.PeerAddress, f wire.Frame) {
		gotShutdown = true
	})

	var gotDefault wire.Frame
	r.HandleDefault(func(peer transport.PeerAddress, f wire.Frame) {
		gotDefault = f
	})

	r.Dispatch(&transport.Inbound{Frame: wire.Shutdown{}, Peer: testPeer()})
	if !gotShutdown {
		t.Error("Dispatch() did not invoke the registered Shutdown handler")
	}

	r.Dispatch(&transport.Inbound{Frame: wire.CloseStream{StreamID: 1}, Peer: testPeer()})
	if gotDefault == nil {
		t.Error("Dispatch() did not fall back to the default handler for an unregistered tag")
	}
}

func TestRouterTracksParticipantID(t *testing.T) {
	r := New(nil)
	peer := testPeer()

	if _, ok := r.ParticipantOf(peer); ok {
		t.Fatal("ParticipantOf() reported a participant before any was seen")
	}

	pid := wire.ParticipantID{ID: [16]byte{1: 1}}
	r.Dispatch(&transport.Inbound{Frame: pid, Peer: peer})

	got, ok := r.ParticipantOf(peer)
	if !ok || got != pid {
		t.Fatalf("ParticipantOf() = %+v, %v, want %+v, true", got, ok, pid)
	}

	r.Forget(peer)
	if _, ok := r.ParticipantOf(peer); ok {
		t.Error("ParticipantOf() still reports a participant after Forget()")
	}
}
