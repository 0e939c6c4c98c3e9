package wire

import "errors"

// Wire-level errors.
var (
	// ErrFrameTooLarge is returned when encoding a Data or Raw frame whose
	// payload exceeds MaxPayloadLen.
	ErrFrameTooLarge = errors.New("wire: frame payload exceeds maximum length")

	// ErrBufferTooSmall is returned when a datagram encode target cannot
	// hold the encoded frame.
	ErrBufferTooSmall = errors.New("wire: scratch buffer too small for frame")

	// ErrTruncatedBody is returned by the stream codec when an I/O error or
	// EOF occurs while reading a frame body after the tag byte has already
	// been consumed. The stream offset is unrecoverable at that point.
	ErrTruncatedBody = errors.New("wire: truncated frame body")

	// ErrReservedTag is returned when asked to encode a Frame whose concrete
	// type is not one of the defined variants, whatever its Tag() value; none
	// of the defined variants can trigger it. The encoders do not inspect
	// the tag value itself, so the reserved values (0, 10, 13) are kept off
	// the wire only because no defined variant uses them.
	ErrReservedTag = errors.New("wire: refusing to encode reserved tag value")
)
