// Package metadata provides typed metadata documents and filter predicates for
// similarity search, backed by a Roaring Bitmap inverted index for selective
// pre-filtering.
package metadata

import (
	"maps"
	"math"
	"strconv"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindNull represents a null value.
	KindNull
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
	// KindBool represents a boolean value.
	KindBool
)

// Value is a small typed value used for metadata documents and filters.
//
// The representation is designed to make filtering fast and predictable:
// no reflection and no fmt-based stringification.
type Value struct {
	Kind Kind    `json:"k"`
	I64  int64   `json:"i,omitempty"`
	F64  float64 `json:"f,omitempty"`
	S    string  `json:"s,omitempty"`
	B    bool    `json:"b,omitempty"`
}

// Null returns a null Value.
func Null() Value { return Value{Kind: KindNull} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{Kind: KindInt, I64: i} }

// Float returns a float Value.
func Float(f float64) Value { return Value{Kind: KindFloat, F64: f} }

// String returns a string Value.
func String(s string) Value { return Value{Kind: KindString, S: s} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }

// ValueOf converts a Go value into a Value. Unsupported types map to
// KindInvalid; callers validate via Valid.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Int(int64(x))
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case string:
		return String(x)
	case bool:
		return Bool(x)
	default:
		return Value{Kind: KindInvalid}
	}
}

// Valid reports whether the value has a usable kind.
func (v Value) Valid() bool {
	return v.Kind != KindInvalid
}

// Key returns a stable string representation for use in inverted index maps.
// It must remain stable across versions for persisted metadata usage.
func (v Value) Key() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return "i:" + strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return "f:" + strconv.FormatUint(math.Float64bits(v.F64), 16)
	case KindString:
		return "s:" + v.S
	case KindBool:
		if v.B {
			return "b:1"
		}
		return "b:0"
	default:
		return "invalid"
	}
}

// Equal compares two values for filter equality. Int and float compare
// numerically across kinds.
func (v Value) Equal(o Value) bool {
	if v.Kind == KindNull || o.Kind == KindNull {
		return v.Kind == o.Kind
	}

	if v.isNumber() && o.isNumber() {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.I64 == o.I64
		}
		return v.asFloat64() == o.asFloat64()
	}

	if v.Kind != o.Kind {
		return false
	}

	switch v.Kind {
	case KindString:
		return v.S == o.S
	case KindBool:
		return v.B == o.B
	default:
		return false
	}
}

// Less reports whether v orders before o. Only numeric and string kinds are
// ordered; everything else returns false.
func (v Value) Less(o Value) bool {
	if v.isNumber() && o.isNumber() {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.I64 < o.I64
		}
		return v.asFloat64() < o.asFloat64()
	}

	if v.Kind == KindString && o.Kind == KindString {
		return v.S < o.S
	}

	return false
}

func (v Value) isNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

func (v Value) asFloat64() float64 {
	if v.Kind == KindInt {
		return float64(v.I64)
	}
	return v.F64
}

// Document is a typed key-value metadata mapping attached to a record.
//
// Recognized keys are interpreted by filters; unknown keys are preserved
// opaquely but never interpreted.
type Document map[string]Value

// Doc builds a Document from alternating key/value pairs, converting values
// via ValueOf. Intended for tests and call sites with literal metadata.
func Doc(pairs ...any) Document {
	d := make(Document, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		d[key] = ValueOf(pairs[i+1])
	}

	return d
}

// Clone returns a copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}

	out := make(Document, len(d))
	maps.Copy(out, d)

	return out
}
