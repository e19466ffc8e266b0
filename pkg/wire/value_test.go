package wire

import (
	"math"
	"testing"
)

func TestEncodeDecodeValue_YAMLRoundTrip(t *testing.T) {
	t.Parallel()

	input := map[string]any{
		"Cycle Time": []any{12.5, "ms"},
	}

	raw, err := EncodeValue(EncodingYAML, input)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	decoded, err := DecodeValue(EncodingYAML, raw)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}

	value, ok := decoded.(Value)
	if !ok {
		t.Fatalf("decoded type = %T, want Value", decoded)
	}

	cycle := value.Get("Cycle Time")
	if cycle.IsZero() {
		t.Fatalf("missing Cycle Time field")
	}

	ms, ok := cycle.Index(0).Float64()
	if !ok || math.Abs(ms-12.5) > 1e-9 {
		t.Errorf("Cycle Time[0] = %v, ok=%v, want 12.5", ms, ok)
	}

	unit, ok := cycle.Index(1).String()
	if !ok || unit != "ms" {
		t.Errorf("Cycle Time[1] = %q, ok=%v, want ms", unit, ok)
	}
}

func TestEncodeDecodeValue_Binary(t *testing.T) {
	t.Parallel()

	raw := []byte{0x00, 0x01, 0x02}
	encoded, err := EncodeValue(EncodingBinary, raw)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	decoded, err := DecodeValue(EncodingBinary, encoded)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}

	got, ok := decoded.([]byte)
	if !ok {
		t.Fatalf("decoded type = %T, want []byte", decoded)
	}
	if string(got) != string(raw) {
		t.Errorf("decoded = %v, want %v", got, raw)
	}
}

func TestEncodeValue_BinaryRequiresBytes(t *testing.T) {
	t.Parallel()

	if _, err := EncodeValue(EncodingBinary, "not bytes"); err == nil {
		t.Fatal("expected error encoding a non-[]byte value as binary")
	}
}

func TestDecodeValue_UnknownEncodingPreservesBytes(t *testing.T) {
	t.Parallel()

	raw := []byte("whatever bytes")
	decoded, err := DecodeValue(Encoding("json"), raw)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	got, ok := decoded.([]byte)
	if !ok || string(got) != string(raw) {
		t.Errorf("decoded = %v (ok=%v), want %v", decoded, ok, raw)
	}
}
