// Package wire defines the Frame tagged union carried across a connection
// and the tag constants that identify each variant on the wire.
//
// Every frame starts with exactly one tag byte; the body layout that
// follows is uniquely determined by the tag. Multi-byte scalar fields are
// little-endian; the tag itself is serialized as a big-endian u8, which is
// bit-identical to little-endian for a single byte but keeps the encoding
// contract explicit at the call site.
package wire

import "github.com/google/uuid"

// Tag identifies a Frame variant on the wire.
type Tag uint8

// Frame tags. Values 0, 10 and 13 are reserved so that a peer accidentally
// sending line-terminated text (e.g. a stray '\n' or '\r') is distinguishable
// from a valid frame.
const (
	TagHandshake     Tag = 1
	TagParticipantID Tag = 2
	TagShutdown      Tag = 3
	TagOpenStream    Tag = 4
	TagCloseStream   Tag = 5
	TagDataHeader    Tag = 6
	TagData          Tag = 7
	TagRaw           Tag = 8
)

// Reserved tag values that must never be used by any frame kind.
const (
	tagReservedNUL Tag = 0
	tagReservedLF  Tag = 10
	tagReservedCR  Tag = 13
)

// IsReserved reports whether t is one of the reserved tag values.
func (t Tag) IsReserved() bool {
	return t == tagReservedNUL || t == tagReservedLF || t == tagReservedCR
}

// String returns a human-readable name for the tag.
func (t Tag) String() string {
	switch t {
	case TagHandshake:
		return "Handshake"
	case TagParticipantID:
		return "ParticipantID"
	case TagShutdown:
		return "Shutdown"
	case TagOpenStream:
		return "OpenStream"
	case TagCloseStream:
		return "CloseStream"
	case TagDataHeader:
		return "DataHeader"
	case TagData:
		return "Data"
	case TagRaw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// MaxPayloadLen is the largest payload a Data or Raw frame may carry; the
// wire length prefix for both is a u16.
const MaxPayloadLen = 65535

// UnknownTagStreamBlobLen is the size of the diagnostic blob the stream
// codec reads (and cannot resynchronize past) when it meets an unknown tag.
const UnknownTagStreamBlobLen = 256

// DatagramScratchSize is the default size of the reusable buffer the
// datagram writer encodes into. It is smaller than MaxFrameSize: a frame
// whose encoding does not fit is rejected by the encoder with
// ErrBufferTooSmall rather than sent.
const DatagramScratchSize = 2000

// MaxFrameSize is the size of the largest possible encoded frame (a Data
// frame carrying MaxPayloadLen bytes of payload).
const MaxFrameSize = 19 + MaxPayloadLen

// Frame is implemented by every frame variant. It exists purely to group the
// variants for documentation and exhaustive-switch purposes; callers type
// switch on the concrete type to access fields.
type Frame interface {
	Tag() Tag
}

// Handshake is the first frame exchanged on a new connection.
type Handshake struct {
	// Magic is an opaque 7-byte protocol identifier.
	Magic [7]byte
	// Version is the three-component protocol version.
	Version [3]uint32
}

func (Handshake) Tag() Tag { return TagHandshake }

// ParticipantID announces the 128-bit identity of one end of the connection.
type ParticipantID struct {
	ID [16]byte
}

func (ParticipantID) Tag() Tag { return TagParticipantID }

// ParticipantIDFromUUID builds a ParticipantID frame from a uuid.UUID.
func ParticipantIDFromUUID(id uuid.UUID) ParticipantID {
	return ParticipantID{ID: id}
}

// ToUUID returns the participant id as a uuid.UUID for logging and
// session-layer bookkeeping. The codec never depends on this conversion.
func (p ParticipantID) ToUUID() uuid.UUID {
	return uuid.UUID(p.ID)
}

// Shutdown requests an orderly teardown of the connection.
type Shutdown struct{}

func (Shutdown) Tag() Tag { return TagShutdown }

// OpenStream negotiates a new logical substream.
type OpenStream struct {
	StreamID uint64
	Prio     uint8
	Promises uint8
}

func (OpenStream) Tag() Tag { return TagOpenStream }

// CloseStream tears down a previously opened substream.
type CloseStream struct {
	StreamID uint64
}

func (CloseStream) Tag() Tag { return TagCloseStream }

// DataHeader announces the total length of a logical message that will
// follow as one or more Data frames sharing the same MessageID.
type DataHeader struct {
	MessageID uint64
	StreamID  uint64
	Length    uint64
}

func (DataHeader) Tag() Tag { return TagDataHeader }

// Data carries one fragment of a logical message.
//
// Start is the byte offset of Payload's first byte within the logical
// message; the sum of all fragment lengths sharing a MessageID must equal
// the Length announced in the matching DataHeader. Ordering and delivery of
// Data frames across a stream is the stream scheduler's concern, not the
// codec's.
type Data struct {
	MessageID uint64
	Start     uint64
	Payload   []byte
}

func (Data) Tag() Tag { return TagData }

// Raw is both an application escape hatch and the codec's way of
// surfacing malformed or unrecognized input: an unknown tag, a truncated
// datagram, or a pass-through application payload all arrive as Raw.
//
// A Raw frame received from a stream transport is, in practice, a signal
// that the stream is desynchronized — see the package doc on
// pkg/transport for why the "recovery" in that case is best-effort only.
type Raw struct {
	Payload []byte
}

func (Raw) Tag() Tag { return TagRaw }
