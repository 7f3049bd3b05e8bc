// Package value implements FactValue, the tagged union of types a fact's
// fields may hold.
package value

import (
	"encoding/binary"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Kind identifies the concrete variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBoolean
	KindArray
	KindObject
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is a FactValue: an immutable, tagged union. The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	arr  []Value
	obj  map[string]Value
	date time.Time
}

// Null is the canonical null value.
var Null = Value{kind: KindNull}

func String(s string) Value { return Value{kind: KindString, str: s} }
func Int(i int64) Value     { return Value{kind: KindInteger, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value     { return Value{kind: KindBoolean, b: b} }
func Date(t time.Time) Value {
	return Value{kind: KindDate, date: t.UTC()}
}

// Array constructs an array value. The slice is copied so that the caller's
// backing array may be mutated freely afterwards.
func Array(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// Object constructs an object value from a string-keyed map. The map is
// copied so later mutation of the caller's map does not affect the Value.
func Object(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) TypeName() string { return v.kind.String() }

func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the underlying string and true if v is a String.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInt returns the underlying integer and true if v is an Integer.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the underlying float and true if v is a Float.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// AsNumber returns v as a float64 if v is an Integer or Float, promoting
// Integer to Float.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.b, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

func (v Value) AsDate() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.date, true
}

// Field reads a key out of an Object value. Returns Null, false if v is not
// an Object or the key is absent.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Null, false
	}
	f, ok := v.obj[key]
	return f, ok
}

// Index reads the i'th element of an Array value.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Null, false
	}
	return v.arr[i], true
}

// Equal implements the spec's equality invariants: Integer and Float are
// never equal to each other regardless of numeric value, Null equals only
// Null, and all other comparisons require matching kinds.
func (v Value) Equal(other Value) bool {
	if v.kind == KindNull || other.kind == KindNull {
		return v.kind == KindNull && other.kind == KindNull
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindInteger:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindBoolean:
		return v.b == other.b
	case KindDate:
		return v.date.Equal(other.date)
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, a := range v.obj {
			b, ok := other.obj[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values. ok is false when the pair has no defined
// ordering (mismatched, non-numeric kinds). Integer and Float are mutually
// comparable, with Integer promoted to Float.
func (v Value) Compare(other Value) (cmp int, ok bool) {
	if vn, vok := v.AsNumber(); vok {
		if on, ook := other.AsNumber(); ook {
			switch {
			case vn < on:
				return -1, true
			case vn > on:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if v.kind != other.kind {
		return 0, false
	}
	switch v.kind {
	case KindString:
		return strings.Compare(v.str, other.str), true
	case KindDate:
		switch {
		case v.date.Before(other.date):
			return -1, true
		case v.date.After(other.date):
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// Contains implements the Contains operator: substring for strings,
// membership for arrays (by Equal), key presence for objects.
func (v Value) Contains(needle Value) bool {
	switch v.kind {
	case KindString:
		s, ok := needle.AsString()
		return ok && strings.Contains(v.str, s)
	case KindArray:
		for _, el := range v.arr {
			if el.Equal(needle) {
				return true
			}
		}
		return false
	case KindObject:
		s, ok := needle.AsString()
		if !ok {
			return false
		}
		_, present := v.obj[s]
		return present
	default:
		return false
	}
}

// Hash returns a deterministic, non-cryptographic hash of v. Float hashing
// uses the raw IEEE-754 bit pattern (so distinct NaN bit patterns hash
// differently but any single bit pattern hashes consistently). Object
// hashing sorts keys first so it is independent of map iteration order.
// Date hashing uses second resolution per the fact timestamp contract.
func (v Value) Hash() uint64 {
	d := xxhash.New()
	v.writeHash(d)
	return d.Sum64()
}

func (v Value) writeHash(d *xxhash.Digest) {
	var tag [1]byte
	tag[0] = byte(v.kind)
	d.Write(tag[:])
	switch v.kind {
	case KindNull:
	case KindString:
		d.Write([]byte(v.str))
	case KindInteger:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.i))
		d.Write(b[:])
	case KindFloat:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.f))
		d.Write(b[:])
	case KindBoolean:
		if v.b {
			d.Write([]byte{1})
		} else {
			d.Write([]byte{0})
		}
	case KindDate:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.date.Unix()))
		d.Write(b[:])
	case KindArray:
		for _, el := range v.arr {
			h := el.Hash()
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], h)
			d.Write(b[:])
		}
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			d.Write([]byte(k))
			h := v.obj[k].Hash()
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], h)
			d.Write(b[:])
		}
	}
}

// Debug renders v as a Go value for diagnostics/logging; it is not a
// serialization format.
func (v Value) Debug() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindBoolean:
		return v.b
	case KindDate:
		return v.date.Format(time.RFC3339)
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, el := range v.arr {
			out[i] = el.Debug()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, el := range v.obj {
			out[k] = el.Debug()
		}
		return out
	default:
		return nil
	}
}
