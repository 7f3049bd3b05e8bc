package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MarshalJSON encodes v as standard JSON. Dates become RFC-3339 strings;
// integers and floats are distinguished on the wire by the presence of a
// fractional part: a whole-valued Float is written with a trailing ".0".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindInteger:
		return json.Marshal(v.i)
	case KindFloat:
		b, err := json.Marshal(v.f)
		if err == nil && !bytes.ContainsAny(b, ".eE") {
			b = append(b, ".0"...)
		}
		return b, err
	case KindBoolean:
		return json.Marshal(v.b)
	case KindDate:
		return json.Marshal(v.date.Format(time.RFC3339))
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		return json.Marshal(v.obj)
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON decodes a FactValue from JSON. Numbers without a fractional
// part or exponent become Integer; all others become Float. Strings that
// parse as RFC-3339 are left as String — callers that know a field is a
// Date must convert explicitly via ParseDate, since JSON alone cannot
// distinguish a date string from a plain string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromInterface(raw)
	return nil
}

func fromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case []interface{}:
		items := make([]Value, len(t))
		for i, el := range t {
			items[i] = fromInterface(el)
		}
		return Array(items)
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for k, el := range t {
			fields[k] = fromInterface(el)
		}
		return Object(fields)
	default:
		return Null
	}
}

// ParseDate parses an RFC-3339 string into a Date value.
func ParseDate(s string) (Value, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Null, fmt.Errorf("value: parse date %q: %w", s, err)
	}
	return Date(t), nil
}
