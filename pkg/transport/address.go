package transport

import (
	"fmt"
	"net"
)

// PeerAddress identifies a remote endpoint by network address and which
// Transport Protocol variant it is reached through.
type PeerAddress struct {
	// Addr is the network address of the peer.
	Addr net.Addr
	// Kind identifies the transport variant (stream or datagram).
	Kind Kind
}

// String returns a human-readable representation of the peer address.
func (p PeerAddress) String() string {
	if p.Addr == nil {
		return fmt.Sprintf("%s:<nil>", p.Kind)
	}
	return fmt.Sprintf("%s:%s", p.Kind, p.Addr.String())
}

// IsValid returns true if the peer address has a valid kind and address.
func (p PeerAddress) IsValid() bool {
	return p.Kind.IsValid() && p.Addr != nil
}

// NewDatagramPeerAddress creates a PeerAddress reached over the datagram
// transport.
func NewDatagramPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{
		Addr: addr,
		Kind: KindDatagram,
	}
}

// NewStreamPeerAddress creates a PeerAddress reached over the stream
// transport.
func NewStreamPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{
		Addr: addr,
		Kind: KindStream,
	}
}

// DatagramAddrFromString parses an address string and creates a datagram
// PeerAddress.
func DatagramAddrFromString(addr string) (PeerAddress, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return PeerAddress{}, err
	}
	return NewDatagramPeerAddress(udpAddr), nil
}

// StreamAddrFromString parses an address string and creates a stream
// PeerAddress.
func StreamAddrFromString(addr string) (PeerAddress, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return PeerAddress{}, err
	}
	return NewStreamPeerAddress(tcpAddr), nil
}
