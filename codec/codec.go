package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pulseprotocolorg-cyber/pulse-go/message"
)

// Format selects a wire encoding. The set is closed; unknown values are
// rejected by Encode and Decode rather than guessed at.
type Format string

const (
	// FormatJSON is the structure-preserving human-readable encoding.
	FormatJSON Format = "json"

	// FormatBinary is the general-purpose MessagePack encoding.
	FormatBinary Format = "binary"

	// FormatCompact is the reserved schema-aware encoding. Encoding
	// requests fall back to FormatBinary; its tag byte is reserved so the
	// two layouts can coexist once compact is specified.
	FormatCompact Format = "compact"
)

// Wire discriminants. JSON needs no extra byte: a message always encodes as
// a JSON object, so '{' is its discriminant.
const (
	tagJSON    byte = '{'
	tagBinary  byte = 0xB1
	tagCompact byte = 0xC1
)

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatBinary, FormatCompact:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q, supported formats: json, binary, compact", s)
}

// EncodingError reports a failed serialization.
type EncodingError struct {
	Format Format
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Format, e.Reason)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports an unreadable payload: an unrecognized format tag,
// truncated data, or a corrupt body. It is distinguishable from generic
// parse failures with errors.As.
type DecodingError struct {
	Format Format
	Reason string
	Err    error
}

func (e *DecodingError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("decode: %s", e.Reason)
	}
	return fmt.Sprintf("decode %s: %s", e.Format, e.Reason)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// Encode serializes m in the requested format, including the wire
// discriminant. The compact format is reserved and degrades to binary.
func Encode(m *message.Message, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return encodeJSON(m, false)
	case FormatBinary, FormatCompact:
		return encodeBinary(m)
	}
	return nil, &EncodingError{Format: format, Reason: "unknown format"}
}

// EncodeIndent is Encode for the JSON format with two-space indentation,
// matching what the CLI prints for humans.
func EncodeIndent(m *message.Message) ([]byte, error) {
	return encodeJSON(m, true)
}

// Decode deserializes data, detecting the format from its discriminant.
func Decode(data []byte) (*message.Message, error) {
	if len(data) == 0 {
		return nil, &DecodingError{Reason: "empty payload"}
	}
	switch data[0] {
	case tagJSON:
		return decodeJSON(data)
	case tagBinary:
		return decodeBinary(data[1:])
	case tagCompact:
		return nil, &DecodingError{Format: FormatCompact, Reason: "compact format tag is reserved and not yet decodable"}
	}
	return nil, &DecodingError{Reason: fmt.Sprintf("unrecognized format tag 0x%02X", data[0])}
}

// DecodeFormat deserializes data as an explicitly named format.
func DecodeFormat(data []byte, format Format) (*message.Message, error) {
	if len(data) == 0 {
		return nil, &DecodingError{Format: format, Reason: "empty payload"}
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatBinary, FormatCompact:
		if data[0] != tagBinary {
			return nil, &DecodingError{Format: format, Reason: fmt.Sprintf("expected binary tag 0x%02X, got 0x%02X", tagBinary, data[0])}
		}
		return decodeBinary(data[1:])
	}
	return nil, &DecodingError{Format: format, Reason: "unknown format"}
}

func encodeJSON(m *message.Message, indent bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(m, "", "  ")
	} else {
		data, err = json.Marshal(m)
	}
	if err != nil {
		return nil, &EncodingError{Format: FormatJSON, Reason: err.Error(), Err: err}
	}
	return data, nil
}

func decodeJSON(data []byte) (*message.Message, error) {
	var m message.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &DecodingError{Format: FormatJSON, Reason: err.Error(), Err: err}
	}
	return &m, nil
}

func encodeBinary(m *message.Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(tagBinary)

	// Sorted map keys keep the encoding byte-stable for identical messages.
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(m.ToMap()); err != nil {
		return nil, &EncodingError{Format: FormatBinary, Reason: err.Error(), Err: err}
	}
	return buf.Bytes(), nil
}

func decodeBinary(body []byte) (*message.Message, error) {
	if len(body) == 0 {
		return nil, &DecodingError{Format: FormatBinary, Reason: "truncated payload"}
	}
	var raw map[string]any
	if err := msgpack.Unmarshal(body, &raw); err != nil {
		return nil, &DecodingError{Format: FormatBinary, Reason: err.Error(), Err: err}
	}
	m, err := message.FromMap(normalizeMap(raw))
	if err != nil {
		return nil, &DecodingError{Format: FormatBinary, Reason: err.Error(), Err: err}
	}
	return m, nil
}

// normalizeMap converts MessagePack's map[any]any containers into the
// map[string]any shape the message model expects.
func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeMap(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case []any:
		for i, inner := range val {
			val[i] = normalizeValue(inner)
		}
		return val
	}
	return v
}
