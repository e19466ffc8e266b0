package wire

import "errors"

// Sentinel errors returned by this package. Use errors.Is to test for
// them — functions in this package always wrap
// one of these rather than returning it bare, so callers get context
// in the message while still being able to classify the failure.
var (
	// ErrMalformedDatagram is returned by Decode when a datagram's
	// header is missing its terminator, has the wrong field count, or
	// carries a non-numeric id/sequence/count.
	ErrMalformedDatagram = errors.New("wire: malformed datagram")

	// ErrUnsupportedEncoding is returned by Encode and EncodeValue when
	// asked to encode with a value other than EncodingYAML or
	// EncodingBinary.
	ErrUnsupportedEncoding = errors.New("wire: unsupported encoding")
)
