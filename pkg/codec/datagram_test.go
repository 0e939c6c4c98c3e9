package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/domeland/network/pkg/wire"
)

func TestDatagramRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame wire.Frame
	}{
		{"Handshake", wire.Handshake{Magic: [7]byte{'V', 'E', 'L', 'O', 'R', 'E', 'N'}, Version: [3]uint32{0, 3, 1}}},
		{"ParticipantID", wire.ParticipantID{ID: [16]byte{1: 1, 15: 2}}},
		{"Shutdown", wire.Shutdown{}},
		{"OpenStream", wire.OpenStream{StreamID: 9, Prio: 1, Promises: 2}},
		{"CloseStream", wire.CloseStream{StreamID: 9}},
		{"DataHeader", wire.DataHeader{MessageID: 1, StreamID: 2, Length: 3}},
		{"Data", wire.Data{MessageID: 1, Start: 0, Payload: []byte("hello")}},
		{"Raw", wire.Raw{Payload: []byte{1, 2, 3}}},
	}

	buf := make([]byte, wire.DatagramScratchSize)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := EncodeDatagram(buf, tc.frame)
			if err != nil {
				t.Fatalf("EncodeDatagram() error = %v", err)
			}
			got := DecodeDatagram(buf[:n])

			switch g := got.(type) {
			case wire.Data:
				w := tc.frame.(wire.Data)
				if g.MessageID != w.MessageID || g.Start != w.Start || !bytes.Equal(g.Payload, w.Payload) {
					t.Fatalf("DecodeDatagram() = %+v, want %+v", got, tc.frame)
				}
			case wire.Raw:
				w := tc.frame.(wire.Raw)
				if !bytes.Equal(g.Payload, w.Payload) {
					t.Fatalf("DecodeDatagram() = %+v, want %+v", got, tc.frame)
				}
			default:
				if got != tc.frame {
					t.Fatalf("DecodeDatagram() = %+v, want %+v", got, tc.frame)
				}
			}
		})
	}
}

func TestEncodeDatagramBufferTooSmall(t *testing.T) {
	buf := make([]byte, 4)
	_, err := EncodeDatagram(buf, wire.OpenStream{StreamID: 1})
	if !errors.Is(err, wire.ErrBufferTooSmall) {
		t.Fatalf("EncodeDatagram() error = %v, want wire.ErrBufferTooSmall", err)
	}
}

func TestEncodeDatagramRejectsOversizedPayload(t *testing.T) {
	buf := make([]byte, wire.DatagramScratchSize)
	big := make([]byte, wire.DatagramScratchSize) // also too small for MaxPayloadLen, but we want the length check first
	_, err := EncodeDatagram(buf, wire.Data{MessageID: 1, Payload: make([]byte, wire.MaxPayloadLen+1)})
	if !errors.Is(err, wire.ErrFrameTooLarge) {
		t.Fatalf("EncodeDatagram() error = %v, want wire.ErrFrameTooLarge", err)
	}
	_ = big
}

// S6 — a 10-byte datagram whose first byte is the Data tag but which is too
// short for the 18-byte Data header must not crash the decoder. This
// implementation's documented choice: wrap the whole datagram as Raw.
func TestShortDataDatagramYieldsRaw(t *testing.T) {
	datagram := make([]byte, 10)
	datagram[0] = byte(wire.TagData)

	got := DecodeDatagram(datagram)
	raw, ok := got.(wire.Raw)
	if !ok {
		t.Fatalf("DecodeDatagram() = %T, want wire.Raw", got)
	}
	if !bytes.Equal(raw.Payload, datagram) {
		t.Fatalf("Raw.Payload = % X, want % X", raw.Payload, datagram)
	}
}

func TestUnknownTagDatagramYieldsRaw(t *testing.T) {
	datagram := []byte{0xFF, 1, 2, 3}
	got := DecodeDatagram(datagram)
	raw, ok := got.(wire.Raw)
	if !ok {
		t.Fatalf("DecodeDatagram() = %T, want wire.Raw", got)
	}
	if !bytes.Equal(raw.Payload, datagram) {
		t.Fatalf("Raw.Payload = % X, want % X", raw.Payload, datagram)
	}
}

func TestEmptyDatagramYieldsRaw(t *testing.T) {
	got := DecodeDatagram(nil)
	if _, ok := got.(wire.Raw); !ok {
		t.Fatalf("DecodeDatagram(nil) = %T, want wire.Raw", got)
	}
}
