// Package codec implements the frame encoders/decoders described in the
// wire format: a pair of pure functions per transport discipline (stream vs
// datagram), ported directly from the reference protocol implementation.
package codec

import (
	"encoding/binary"
	"io"

	"github.com/domeland/network/pkg/wire"
)

// DecodeStream reads exactly one frame from r.
//
// The only error that means "the channel closed in an orderly fashion" is
// one returned while reading the tag byte itself (typically io.EOF) — the
// caller should treat that as a normal read-loop exit, not a failure. Any
// error while reading the fixed body bytes that follow a valid tag is
// fatal: the stream offset is lost and no partial-frame recovery is
// possible, so it comes back as wire.ErrTruncatedBody (the underlying I/O
// error is not kept).
func DecodeStream(r io.Reader) (wire.Frame, error) {
	var tagByte [1]byte
	if _, err := io.ReadFull(r, tagByte[:]); err != nil {
		return nil, err
	}

	switch wire.Tag(tagByte[0]) {
	case wire.TagHandshake:
		var b [19]byte
		if err := readBody(r, b[:]); err != nil {
			return nil, err
		}
		return wire.Handshake{
			Magic: [7]byte{b[0], b[1], b[2], b[3], b[4], b[5], b[6]},
			Version: [3]uint32{
				binary.LittleEndian.Uint32(b[7:11]),
				binary.LittleEndian.Uint32(b[11:15]),
				binary.LittleEndian.Uint32(b[15:19]),
			},
		}, nil

	case wire.TagParticipantID:
		var b [16]byte
		if err := readBody(r, b[:]); err != nil {
			return nil, err
		}
		return wire.ParticipantID{ID: b}, nil

	case wire.TagShutdown:
		return wire.Shutdown{}, nil

	case wire.TagOpenStream:
		var b [10]byte
		if err := readBody(r, b[:]); err != nil {
			return nil, err
		}
		return wire.OpenStream{
			StreamID: binary.LittleEndian.Uint64(b[0:8]),
			Prio:     b[8],
			Promises: b[9],
		}, nil

	case wire.TagCloseStream:
		var b [8]byte
		if err := readBody(r, b[:]); err != nil {
			return nil, err
		}
		return wire.CloseStream{StreamID: binary.LittleEndian.Uint64(b[:])}, nil

	case wire.TagDataHeader:
		var b [24]byte
		if err := readBody(r, b[:]); err != nil {
			return nil, err
		}
		return wire.DataHeader{
			MessageID: binary.LittleEndian.Uint64(b[0:8]),
			StreamID:  binary.LittleEndian.Uint64(b[8:16]),
			Length:    binary.LittleEndian.Uint64(b[16:24]),
		}, nil

	case wire.TagData:
		var h [18]byte
		if err := readBody(r, h[:]); err != nil {
			return nil, err
		}
		length := binary.LittleEndian.Uint16(h[16:18])
		payload := make([]byte, length)
		if err := readBody(r, payload); err != nil {
			return nil, err
		}
		return wire.Data{
			MessageID: binary.LittleEndian.Uint64(h[0:8]),
			Start:     binary.LittleEndian.Uint64(h[8:16]),
			Payload:   payload,
		}, nil

	case wire.TagRaw:
		var h [2]byte
		if err := readBody(r, h[:]); err != nil {
			return nil, err
		}
		length := binary.LittleEndian.Uint16(h[:])
		payload := make([]byte, length)
		if err := readBody(r, payload); err != nil {
			return nil, err
		}
		return wire.Raw{Payload: payload}, nil

	default:
		// Unknown tag: the stream cannot be resynchronized without an
		// application-level framing restart, so the best this codec can do
		// is surface a bounded blob for the upper layer to log or act on.
		// A short trailing read (EOF before the full blob) still yields
		// whatever bytes were available rather than an error, since this
		// path is already a best-effort diagnostic, not a protocol frame.
		buf := make([]byte, wire.UnknownTagStreamBlobLen)
		n, err := io.ReadFull(r, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		return wire.Raw{Payload: buf[:n]}, nil
	}
}

// readBody reads len(buf) body bytes following an already-consumed tag
// byte. Any error here — including EOF — means the peer is misbehaving or
// the connection dropped mid-frame, which is always fatal to the stream.
func readBody(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return wire.ErrTruncatedBody
	}
	return nil
}

// EncodeStream writes one frame to w: the tag byte followed by the body
// fields in the order declared in the wire format, with payload length
// prefixes preceding payload bytes. The tag byte, the fixed-size body (or
// header) and the payload are each written with their own Write call and
// retried on short writes, since this codec makes no buffering guarantee
// beyond what w itself provides.
func EncodeStream(w io.Writer, f wire.Frame) error {
	if err := writeFull(w, []byte{byte(f.Tag())}); err != nil {
		return err
	}

	switch v := f.(type) {
	case wire.Handshake:
		var b [19]byte
		copy(b[0:7], v.Magic[:])
		binary.LittleEndian.PutUint32(b[7:11], v.Version[0])
		binary.LittleEndian.PutUint32(b[11:15], v.Version[1])
		binary.LittleEndian.PutUint32(b[15:19], v.Version[2])
		return writeFull(w, b[:])

	case wire.ParticipantID:
		return writeFull(w, v.ID[:])

	case wire.Shutdown:
		return nil

	case wire.OpenStream:
		var b [10]byte
		binary.LittleEndian.PutUint64(b[0:8], v.StreamID)
		b[8] = v.Prio
		b[9] = v.Promises
		return writeFull(w, b[:])

	case wire.CloseStream:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v.StreamID)
		return writeFull(w, b[:])

	case wire.DataHeader:
		var b [24]byte
		binary.LittleEndian.PutUint64(b[0:8], v.MessageID)
		binary.LittleEndian.PutUint64(b[8:16], v.StreamID)
		binary.LittleEndian.PutUint64(b[16:24], v.Length)
		return writeFull(w, b[:])

	case wire.Data:
		if len(v.Payload) > wire.MaxPayloadLen {
			return wire.ErrFrameTooLarge
		}
		var h [18]byte
		binary.LittleEndian.PutUint64(h[0:8], v.MessageID)
		binary.LittleEndian.PutUint64(h[8:16], v.Start)
		binary.LittleEndian.PutUint16(h[16:18], uint16(len(v.Payload)))
		if err := writeFull(w, h[:]); err != nil {
			return err
		}
		return writeFull(w, v.Payload)

	case wire.Raw:
		if len(v.Payload) > wire.MaxPayloadLen {
			return wire.ErrFrameTooLarge
		}
		var h [2]byte
		binary.LittleEndian.PutUint16(h[:], uint16(len(v.Payload)))
		if err := writeFull(w, h[:]); err != nil {
			return err
		}
		return writeFull(w, v.Payload)

	default:
		return wire.ErrReservedTag
	}
}

// writeFull writes all of buf to w, looping on short writes.
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
