// Package record holds the heterogeneous records pulled from a source API.
//
// A Record is a flat mapping from field name to a small variant Value. Field
// sets differ between records of the same collection, so nothing here models
// a fixed structure; the column set of a collection is derived afterwards by
// Store.Schema.
package record

import (
	"bytes"
	"strconv"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-backup/pkg/json"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	// KindNull is a JSON null or an absent value
	KindNull Kind = iota
	// KindString is a JSON string
	KindString
	// KindNumber is a JSON number, kept as its literal text
	KindNumber
	// KindBool is a JSON boolean
	KindBool
	// KindRaw is a nested object or array, kept as compact JSON
	KindRaw
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Value is an immutable scalar cell value
type Value struct {
	kind Kind
	text string
}

// Null returns the null value
func Null() Value { return Value{} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, text: s} }

// Number returns a number value from its literal text
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// Int returns a number value
func Int(n int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, text: strconv.FormatBool(b)} }

// Raw returns a nested JSON value; json must already be compact
func Raw(json string) Value { return Value{kind: KindRaw, text: json} }

// Kind returns the variant of v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text renders v as a table cell. Null renders as the empty string.
func (v Value) Text() string { return v.text }

// MarshalJSON encodes v back to its JSON form
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return jsonpool.Marshal(v.text)
	default:
		return []byte(v.text), nil
	}
}

// ParseValue classifies one raw JSON token without converting numbers to floats.
func ParseValue(raw []byte) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}, errors.New(errors.ErrorTypeData, "empty JSON value")
	}

	switch c := raw[0]; {
	case c == 'n':
		if string(raw) != "null" {
			return Value{}, errors.Newf(errors.ErrorTypeData, "invalid JSON literal %q", raw)
		}
		return Null(), nil
	case c == 't' || c == 'f':
		switch string(raw) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return Value{}, errors.Newf(errors.ErrorTypeData, "invalid JSON boolean %q", raw)
	case c == '"':
		var s string
		if err := jsonpool.Unmarshal(raw, &s); err != nil {
			return Value{}, errors.Wrap(err, errors.ErrorTypeData, "invalid JSON string")
		}
		return String(s), nil
	case c == '-' || (c >= '0' && c <= '9'):
		if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
			return Value{}, errors.Wrap(err, errors.ErrorTypeData, "invalid JSON number")
		}
		return Number(string(raw)), nil
	case c == '{' || c == '[':
		buf := jsonpool.GetBuffer()
		defer jsonpool.PutBuffer(buf)
		if err := jsonpool.Compact(buf, raw); err != nil {
			return Value{}, errors.Wrap(err, errors.ErrorTypeData, "invalid nested JSON")
		}
		return Raw(buf.String()), nil
	default:
		return Value{}, errors.Newf(errors.ErrorTypeData, "unexpected JSON token %q", raw[:1])
	}
}
