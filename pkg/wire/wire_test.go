package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		payload  []byte
		encoding Encoding
		id       int
	}{
		{"empty binary", nil, EncodingBinary, 0},
		{"single byte", []byte{0x42}, EncodingBinary, 1},
		{"exact boundary", bytes.Repeat([]byte{'a'}, MaxFragmentPayload), EncodingYAML, 7},
		{"one over boundary", bytes.Repeat([]byte{'b'}, MaxFragmentPayload+1), EncodingBinary, 8},
		{"multi fragment", bytes.Repeat([]byte{'c'}, 3500), EncodingBinary, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			datagrams, err := Encode("pc", "x", tt.payload, tt.encoding, tt.id)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			var reassembled []byte
			for i, dg := range datagrams {
				frag, err := Decode(dg)
				if err != nil {
					t.Fatalf("Decode fragment %d: %v", i, err)
				}
				if frag.Device != "pc" {
					t.Errorf("fragment %d: device = %q, want pc", i, frag.Device)
				}
				if frag.Endpoint != "x" {
					t.Errorf("fragment %d: endpoint = %q, want x", i, frag.Endpoint)
				}
				if frag.Encoding != tt.encoding {
					t.Errorf("fragment %d: encoding = %q, want %q", i, frag.Encoding, tt.encoding)
				}
				if frag.TransmissionID != tt.id {
					t.Errorf("fragment %d: id = %d, want %d", i, frag.TransmissionID, tt.id)
				}
				if frag.Sequence != i {
					t.Errorf("fragment %d: sequence = %d, want %d", i, frag.Sequence, i)
				}
				if frag.Count != len(datagrams) {
					t.Errorf("fragment %d: count = %d, want %d", i, frag.Count, len(datagrams))
				}
				reassembled = append(reassembled, frag.Payload...)
			}

			if !bytes.Equal(reassembled, tt.payload) {
				t.Errorf("reassembled payload = %v, want %v", reassembled, tt.payload)
			}
		})
	}
}

func TestEncode_FragmentCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size      int
		wantCount int
	}{
		{0, 1},
		{1, 1},
		{999, 1},
		{1000, 1},
		{1001, 2},
		{2000, 2},
		{2001, 3},
	}

	for _, tt := range tests {
		datagrams, err := Encode("pc", "x", make([]byte, tt.size), EncodingBinary, 0)
		if err != nil {
			t.Fatalf("size %d: Encode: %v", tt.size, err)
		}
		if len(datagrams) != tt.wantCount {
			t.Errorf("size %d: got %d fragments, want %d", tt.size, len(datagrams), tt.wantCount)
		}
	}
}

func TestEncode_RejectsUnsupportedEncoding(t *testing.T) {
	t.Parallel()

	_, err := Encode("pc", "x", []byte("hi"), Encoding("json"), 0)
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("Encode error = %v, want ErrUnsupportedEncoding", err)
	}
}

func TestDecode_PreservesUnknownEncoding(t *testing.T) {
	t.Parallel()

	datagram := []byte("pc/x:json:0:0:1\nhi")
	frag, err := Decode(datagram)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frag.Encoding != Encoding("json") {
		t.Errorf("Encoding = %q, want json", frag.Encoding)
	}
}

func TestDecode_MalformedDatagrams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		datagram []byte
	}{
		{"no terminator", []byte("pc/x:binary:0:0:1")},
		{"no device separator", []byte("pcx:binary:0:0:1\n")},
		{"too few fields", []byte("pc/x:binary:0:0\n")},
		{"too many fields", []byte("pc/x:binary:0:0:1:extra\n")},
		{"non numeric id", []byte("pc/x:binary:zero:0:1\n")},
		{"non numeric sequence", []byte("pc/x:binary:0:zero:1\n")},
		{"non numeric count", []byte("pc/x:binary:0:0:zero\n")},
		{"zero count", []byte("pc/x:binary:0:0:0\n")},
		{"sequence out of range", []byte("pc/x:binary:0:3:2\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.datagram)
			if !errors.Is(err, ErrMalformedDatagram) {
				t.Fatalf("Decode(%q) error = %v, want ErrMalformedDatagram", tt.datagram, err)
			}
		})
	}
}

func TestAcceptTransmission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stored int
		new    int
		want   bool
	}{
		{"strictly greater", 5, 6, true},
		{"equal", 5, 5, false},
		{"slightly less", 5, 0, false},
		{"just within threshold", 12, 2, false},
		{"beyond threshold below", 102, 0, true},
		{"beyond threshold above", 0, 102, true},
	}

	for _, tt := range tests {
		if got := AcceptTransmission(tt.stored, tt.new); got != tt.want {
			t.Errorf("%s: AcceptTransmission(%d, %d) = %v, want %v", tt.name, tt.stored, tt.new, got, tt.want)
		}
	}
}
