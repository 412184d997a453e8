package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	// KindRaw holds a JSON object or array the model has no schema for
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText lets Kind travel as a readable string in JSON payloads
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the names produced by MarshalText
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "null", "":
		*k = KindNull
	case "text":
		*k = KindText
	case "number":
		*k = KindNumber
	case "boolean":
		*k = KindBool
	case "raw":
		*k = KindRaw
	default:
		return fmt.Errorf("unknown value kind %q", text)
	}
	return nil
}

// Value is a schema-less field value: text, number, boolean, null, or a raw JSON composite
type Value struct {
	kind Kind
	text string
	num  float64
	// lit is the number as written, so integers beyond float64 precision survive
	lit  string
	b    bool
	raw  json.RawMessage
}

// Text returns a text Value
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric Value
func Number(f float64) Value {
	v := Value{kind: KindNumber, num: f}
	if !math.IsInf(f, 0) && !math.IsNaN(f) {
		v.lit = formatNumber(f)
	}
	return v
}

// Bool returns a boolean Value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null returns the null Value
func Null() Value { return Value{kind: KindNull} }

// Raw returns a Value wrapping a JSON object or array. The bytes are compacted so that
// two encodings of the same document compare equal.
func Raw(data []byte) (Value, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return Value{}, fmt.Errorf("compacting raw value: %w", err)
	}
	return Value{kind: KindRaw, raw: json.RawMessage(buf.Bytes())}, nil
}

// Kind reports which variant v holds
func (v Value) Kind() Kind { return v.kind }

// AsText returns the text held by v
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsNumber returns the number held by v
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean held by v
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// IsEmpty reports whether v is null or empty text. Empty values are hidden from display.
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindText && v.text == "")
}

// String renders v as editable text
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		if v.lit != "" {
			return v.lit
		}
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindRaw:
		return string(v.raw)
	default:
		return ""
	}
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		if v.lit != "" {
			return []byte(v.lit), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindRaw:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := decodeValue(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func decodeValue(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Value{}, fmt.Errorf("empty JSON value")
	}

	switch trimmed[0] {
	case 'n':
		return Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Value{}, fmt.Errorf("decoding boolean: %w", err)
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, fmt.Errorf("decoding text: %w", err)
		}
		return Text(s), nil
	case '{', '[':
		return Raw(trimmed)
	default:
		return numberLiteral(trimmed)
	}
}

// numberLiteral decodes a JSON number, keeping its literal
func numberLiteral(data []byte) (Value, error) {
	if len(data) == 0 || data[0] == '"' {
		return Value{}, fmt.Errorf("decoding number: not a number literal")
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return Value{}, fmt.Errorf("decoding number: %w", err)
	}
	// Out of range literals keep their text; the float is only an approximation
	f, err := n.Float64()
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Value{}, fmt.Errorf("decoding number: %w", err)
	}
	return Value{kind: KindNumber, num: f, lit: n.String()}, nil
}

// parseNumberText reads user text as a number. A valid JSON literal is kept as written.
func parseNumberText(text string) (Value, bool) {
	text = strings.TrimSpace(text)
	if v, err := numberLiteral([]byte(text)); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Value{}, false
	}
	return Number(f), true
}

// exact reports whether v is a number its float64 reproduces without loss
func (v Value) exact() bool {
	if v.kind != KindNumber || math.IsInf(v.num, 0) || math.IsNaN(v.num) {
		return false
	}
	if v.lit == "" {
		return true
	}
	written, ok := new(big.Rat).SetString(v.lit)
	if !ok {
		return false
	}
	stored, ok := new(big.Rat).SetString(formatNumber(v.num))
	return ok && written.Cmp(stored) == 0
}

// formatNumber renders f with the fewest digits that parse back to the same float
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
