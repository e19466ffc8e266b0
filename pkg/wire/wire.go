// Package wire implements the on-wire datagram framing used by rtbus
// peers: encoding an application payload as one or more length-bounded
// UDP fragments, and decoding a single fragment back into its header
// fields and raw payload bytes.
//
// The framing is deliberately textual and line-oriented so it can be
// inspected with a packet sniffer without additional tooling:
//
//	<device>/<endpoint>:<encoding>:<id>:<seq>:<count>\n<fragment-bytes>
//
// Decode never interprets the payload bytes; structured-payload
// round-tripping (the "yaml" encoding) is handled separately by
// EncodeValue/DecodeValue once a message has been fully reassembled.
package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Encoding is the wire-format tag carried in every fragment header.
type Encoding string

const (
	// EncodingYAML marks a payload as a structured value; both sides
	// apply a YAML round trip on the fully reassembled bytes.
	EncodingYAML Encoding = "yaml"

	// EncodingBinary marks a payload as opaque bytes, passed through
	// unchanged.
	EncodingBinary Encoding = "binary"
)

const (
	// MaxFragmentPayload is the maximum number of payload bytes carried
	// by a single fragment, per spec (1000 bytes, leaving headroom for
	// the header within a single Ethernet-MTU-sized UDP datagram).
	MaxFragmentPayload = 1000

	// MaxDatagramSize is the largest datagram this protocol assumes
	// fits on the local segment (header + fragment bytes).
	MaxDatagramSize = 1500

	// IDResetThreshold is the absolute difference beyond which an
	// incoming transmission id is accepted even though it is not
	// strictly greater than the stored one — it allows a sender that
	// reset its counter (e.g. after a restart) to make forward
	// progress without an explicit reset message.
	IDResetThreshold = 10

	headerSeparator = '\n'
)

// Fragment is one decoded datagram: its header fields plus the raw
// slice of payload bytes it carries. Payload is never decoded here —
// only once a message is fully reassembled is it passed through
// DecodeValue.
type Fragment struct {
	Device         string
	Endpoint       string
	Encoding       Encoding
	TransmissionID int
	Sequence       int
	Count          int
	Payload        []byte
}

// Encode splits payload into one or more fragment datagrams addressed
// from device to endpoint, each carrying at most MaxFragmentPayload
// bytes. Exactly one datagram is produced when payload is empty or
// fits in a single fragment. encoding must be EncodingYAML or
// EncodingBinary; any other value is rejected.
func Encode(device, endpoint string, payload []byte, encoding Encoding, id int) ([][]byte, error) {
	if encoding != EncodingYAML && encoding != EncodingBinary {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
	if id < 0 {
		return nil, fmt.Errorf("transmission id must be non-negative, got %d", id)
	}

	count := 1
	if len(payload) > 0 {
		count = (len(payload) + MaxFragmentPayload - 1) / MaxFragmentPayload
	}

	datagrams := make([][]byte, 0, count)
	for seq := 0; seq < count; seq++ {
		start := seq * MaxFragmentPayload
		end := start + MaxFragmentPayload
		if end > len(payload) {
			end = len(payload)
		}

		header := fmt.Sprintf("%s/%s:%s:%d:%d:%d\n", device, endpoint, encoding, id, seq, count)
		dg := make([]byte, 0, len(header)+(end-start))
		dg = append(dg, header...)
		dg = append(dg, payload[start:end]...)
		datagrams = append(datagrams, dg)
	}
	return datagrams, nil
}

// Decode parses a single datagram into its header fields and raw
// fragment payload. It fails if the header terminator is missing, the
// header does not split into exactly six fields, or the numeric
// fields do not parse. The encoding field is carried through
// verbatim, even if it names an encoding this package doesn't
// otherwise recognize.
func Decode(datagram []byte) (Fragment, error) {
	nl := bytes.IndexByte(datagram, headerSeparator)
	if nl < 0 {
		return Fragment{}, fmt.Errorf("%w: no header terminator", ErrMalformedDatagram)
	}

	header := string(datagram[:nl])
	payload := datagram[nl+1:]

	slash := strings.IndexByte(header, '/')
	if slash < 0 {
		return Fragment{}, fmt.Errorf("%w: missing device/endpoint separator", ErrMalformedDatagram)
	}
	device := header[:slash]
	rest := header[slash+1:]

	fields := strings.Split(rest, ":")
	if len(fields) != 5 {
		return Fragment{}, fmt.Errorf("%w: expected 6 header fields, got %d", ErrMalformedDatagram, 1+len(fields))
	}

	endpoint := fields[0]
	encoding := Encoding(fields[1])

	id, err := strconv.Atoi(fields[2])
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: transmission id: %v", ErrMalformedDatagram, err)
	}
	seq, err := strconv.Atoi(fields[3])
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: sequence: %v", ErrMalformedDatagram, err)
	}
	count, err := strconv.Atoi(fields[4])
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: count: %v", ErrMalformedDatagram, err)
	}
	if count < 1 {
		return Fragment{}, fmt.Errorf("%w: fragment count must be >= 1, got %d", ErrMalformedDatagram, count)
	}
	if seq < 0 || seq >= count {
		return Fragment{}, fmt.Errorf("%w: sequence %d out of range [0,%d)", ErrMalformedDatagram, seq, count)
	}

	// Payload bytes belong to the caller; callers reassembling across
	// fragments copy out of the datagram buffer before reuse.
	out := make([]byte, len(payload))
	copy(out, payload)

	return Fragment{
		Device:         device,
		Endpoint:       endpoint,
		Encoding:       encoding,
		TransmissionID: id,
		Sequence:       seq,
		Count:          count,
		Payload:        out,
	}, nil
}

// AcceptTransmission implements the id comparison rule: a newly
// received transmission id replaces the stored one when
// it is strictly greater, or when it differs from the stored id by
// more than IDResetThreshold — the latter clause tolerates a sender
// restarting and resetting its counter without an explicit reset
// message.
func AcceptTransmission(stored, incoming int) bool {
	diff := incoming - stored
	if diff < 0 {
		diff = -diff
	}
	return incoming > stored || diff > IDResetThreshold
}
