package codec

import (
	"encoding/binary"

	"github.com/domeland/network/pkg/wire"
)

// DecodeDatagram interprets one whole datagram as exactly one frame.
//
// This protocol version carries one frame per datagram with no
// cross-datagram reassembly: fragmented sends that would span multiple
// datagrams are a known limitation.
//
// Unlike DecodeStream, this function never returns an error. A datagram
// that is too short for the body its tag requires, or that carries an
// unknown tag, is wrapped whole as a wire.Raw frame exactly the way an
// unknown tag is — there is no "next datagram" to resynchronize with, so a
// truncated or unrecognized datagram is just as recoverable as an
// unrecognized one. Callers that want to distinguish "clean Raw passthrough"
// from "diagnostic Raw" should compare the original first byte against
// wire.TagRaw themselves.
func DecodeDatagram(b []byte) wire.Frame {
	if len(b) == 0 {
		return wire.Raw{Payload: nil}
	}

	tag := wire.Tag(b[0])
	body := b[1:]

	switch tag {
	case wire.TagHandshake:
		if len(body) < 19 {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		return wire.Handshake{
			Magic: [7]byte{body[0], body[1], body[2], body[3], body[4], body[5], body[6]},
			Version: [3]uint32{
				binary.LittleEndian.Uint32(body[7:11]),
				binary.LittleEndian.Uint32(body[11:15]),
				binary.LittleEndian.Uint32(body[15:19]),
			},
		}

	case wire.TagParticipantID:
		if len(body) < 16 {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		var id [16]byte
		copy(id[:], body[:16])
		return wire.ParticipantID{ID: id}

	case wire.TagShutdown:
		return wire.Shutdown{}

	case wire.TagOpenStream:
		if len(body) < 10 {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		return wire.OpenStream{
			StreamID: binary.LittleEndian.Uint64(body[0:8]),
			Prio:     body[8],
			Promises: body[9],
		}

	case wire.TagCloseStream:
		if len(body) < 8 {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		return wire.CloseStream{StreamID: binary.LittleEndian.Uint64(body[0:8])}

	case wire.TagDataHeader:
		if len(body) < 24 {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		return wire.DataHeader{
			MessageID: binary.LittleEndian.Uint64(body[0:8]),
			StreamID:  binary.LittleEndian.Uint64(body[8:16]),
			Length:    binary.LittleEndian.Uint64(body[16:24]),
		}

	case wire.TagData:
		if len(body) < 18 {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		length := binary.LittleEndian.Uint16(body[16:18])
		rest := body[18:]
		if len(rest) != int(length) {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		return wire.Data{
			MessageID: binary.LittleEndian.Uint64(body[0:8]),
			Start:     binary.LittleEndian.Uint64(body[8:16]),
			Payload:   cloneBytes(rest),
		}

	case wire.TagRaw:
		if len(body) < 2 {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		length := binary.LittleEndian.Uint16(body[0:2])
		rest := body[2:]
		if len(rest) != int(length) {
			return wire.Raw{Payload: cloneBytes(b)}
		}
		return wire.Raw{Payload: cloneBytes(rest)}

	default:
		return wire.Raw{Payload: cloneBytes(b)}
	}
}

// EncodeDatagram serializes f into buf starting at offset 0 and returns the
// number of bytes written. The largest possible frame needs
// wire.MaxFrameSize bytes, more than the default wire.DatagramScratchSize;
// a buffer too small for the given frame yields ErrBufferTooSmall.
func EncodeDatagram(buf []byte, f wire.Frame) (int, error) {
	need, err := encodedLen(f)
	if err != nil {
		return 0, err
	}
	if need > len(buf) {
		return 0, wire.ErrBufferTooSmall
	}

	buf[0] = byte(f.Tag())

	switch v := f.(type) {
	case wire.Handshake:
		copy(buf[1:8], v.Magic[:])
		binary.LittleEndian.PutUint32(buf[8:12], v.Version[0])
		binary.LittleEndian.PutUint32(buf[12:16], v.Version[1])
		binary.LittleEndian.PutUint32(buf[16:20], v.Version[2])

	case wire.ParticipantID:
		copy(buf[1:17], v.ID[:])

	case wire.Shutdown:
		// tag byte only

	case wire.OpenStream:
		binary.LittleEndian.PutUint64(buf[1:9], v.StreamID)
		buf[9] = v.Prio
		buf[10] = v.Promises

	case wire.CloseStream:
		binary.LittleEndian.PutUint64(buf[1:9], v.StreamID)

	case wire.DataHeader:
		binary.LittleEndian.PutUint64(buf[1:9], v.MessageID)
		binary.LittleEndian.PutUint64(buf[9:17], v.StreamID)
		binary.LittleEndian.PutUint64(buf[17:25], v.Length)

	case wire.Data:
		binary.LittleEndian.PutUint64(buf[1:9], v.MessageID)
		binary.LittleEndian.PutUint64(buf[9:17], v.Start)
		binary.LittleEndian.PutUint16(buf[17:19], uint16(len(v.Payload)))
		copy(buf[19:19+len(v.Payload)], v.Payload)

	case wire.Raw:
		binary.LittleEndian.PutUint16(buf[1:3], uint16(len(v.Payload)))
		copy(buf[3:3+len(v.Payload)], v.Payload)

	default:
		return 0, wire.ErrReservedTag
	}

	return need, nil
}

// encodedLen returns the exact wire size of f, or an error if f carries a
// payload too large to encode.
func encodedLen(f wire.Frame) (int, error) {
	switch v := f.(type) {
	case wire.Handshake:
		return 20, nil
	case wire.ParticipantID:
		return 17, nil
	case wire.Shutdown:
		return 1, nil
	case wire.OpenStream:
		return 11, nil
	case wire.CloseStream:
		return 9, nil
	case wire.DataHeader:
		return 25, nil
	case wire.Data:
		if len(v.Payload) > wire.MaxPayloadLen {
			return 0, wire.ErrFrameTooLarge
		}
		return 19 + len(v.Payload), nil
	case wire.Raw:
		if len(v.Payload) > wire.MaxPayloadLen {
			return 0, wire.ErrFrameTooLarge
		}
		return 3 + len(v.Payload), nil
	default:
		return 0, wire.ErrReservedTag
	}
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
