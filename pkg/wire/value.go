package wire

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Value is a dynamically-typed structured payload, as produced by
// decoding a "yaml"-encoded endpoint. The underlying shape is always
// one of: a scalar (string, float64, int, bool), a sequence, or a
// mapping of string to Value — mirroring the dynamic payloads the
// original Python implementation passed around directly, exposed here
// as a small tagged variant with accessor helpers instead of bare
// interface{} so callers can navigate a payload without type
// assertions at every step.
type Value struct {
	raw any
}

// NewValue wraps a decoded Go value (as produced by yaml.Unmarshal
// into an any) as a Value.
func NewValue(raw any) Value {
	return Value{raw: normalize(raw)}
}

// normalize recursively converts map[string]any keys coming back from
// yaml.v3 (which decodes mappings as map[string]any when the target
// is `any`) into nested Values eagerly isn't necessary — Value wraps
// lazily via Get/Index instead, so normalize just passes values
// through unchanged. Kept as a seam for future coercion (e.g.
// map[any]any from older yaml decoders).
func normalize(v any) any {
	return v
}

// Raw returns the underlying decoded value.
func (v Value) Raw() any { return v.raw }

// IsZero reports whether this Value holds no decoded data.
func (v Value) IsZero() bool { return v.raw == nil }

// Map returns the value's fields as a mapping, if it holds one.
func (v Value) Map() (map[string]Value, bool) {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]Value, len(m))
	for k, val := range m {
		out[k] = NewValue(val)
	}
	return out, true
}

// Slice returns the value's elements as a sequence, if it holds one.
func (v Value) Slice() ([]Value, bool) {
	s, ok := v.raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(s))
	for i, val := range s {
		out[i] = NewValue(val)
	}
	return out, true
}

// Get returns the field named key, if this Value holds a mapping and
// the field is present. The zero Value is returned otherwise.
func (v Value) Get(key string) Value {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return Value{}
	}
	val, ok := m[key]
	if !ok {
		return Value{}
	}
	return NewValue(val)
}

// Index returns the i-th element, if this Value holds a sequence and
// i is in range. The zero Value is returned otherwise.
func (v Value) Index(i int) Value {
	s, ok := v.raw.([]any)
	if !ok || i < 0 || i >= len(s) {
		return Value{}
	}
	return NewValue(s[i])
}

// String returns the value as a string, if it holds a scalar string.
func (v Value) String() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Float64 returns the value as a float64, if it holds a numeric
// scalar.
func (v Value) Float64() (float64, bool) {
	switch n := v.raw.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Bool returns the value as a bool, if it holds one.
func (v Value) Bool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// EncodeValue applies the wire encoding named by encoding to value,
// producing the bytes that Encode fragments. Binary encoding requires
// value to already be []byte; yaml encoding marshals value with
// gopkg.in/yaml.v3.
func EncodeValue(encoding Encoding, value any) ([]byte, error) {
	switch encoding {
	case EncodingBinary:
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: binary payload must be []byte, got %T", ErrUnsupportedEncoding, value)
		}
		return b, nil
	case EncodingYAML:
		out, err := yaml.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshaling yaml payload: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
}

// DecodeValue reverses EncodeValue on a fully reassembled payload.
// Binary payloads are returned unchanged as a []byte copy. yaml
// payloads are unmarshaled and returned as a Value. Any other
// encoding is preserved verbatim as opaque bytes — unknown encodings
// are rejected at encode time but tolerated at decode time.
func DecodeValue(encoding Encoding, raw []byte) (any, error) {
	switch encoding {
	case EncodingBinary:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	case EncodingYAML:
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding yaml payload: %w", err)
		}
		return NewValue(v), nil
	default:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	}
}
