// internal/jsonval/value.go
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind enumerates the closed set of JSON value shapes.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Value is an immutable-by-convention JSON value. Objects keep member
// insertion order; numbers keep their literal text.
type Value struct {
	kind Kind
	b    bool
	n    json.Number
	s    string
	arr  []Value
	obj  *members
}

type members struct {
	keys []string
	vals map[string]Value
}

// Member is one key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

func NullValue() Value { return Value{} }
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }
func StringValue(s string) Value { return Value{kind: String, s: s} }

func NumberValue(n json.Number) Value { return Value{kind: Number, n: n} }

func IntValue(i int64) Value { return Value{kind: Number, n: json.Number(strconv.FormatInt(i, 10))} }

func FloatValue(f float64) Value {
	return Value{kind: Number, n: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, arr: items}
}

// ObjectValue builds an object from members; later duplicates overwrite
// earlier ones but keep the first position.
func ObjectValue(ms ...Member) Value {
	v := Value{kind: Object, obj: &members{vals: make(map[string]Value, len(ms))}}
	for _, m := range ms {
		v.Set(m.Key, m.Value)
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }
func (v Value) IsObject() bool { return v.kind == Object }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == Bool }
func (v Value) AsString() (string, bool) { return v.s, v.kind == String }

// AsNumber returns the literal number text.
func (v Value) AsNumber() (json.Number, bool) { return v.n, v.kind == Number }

// AsInt reports the value as an int64 when it is an integral number.
func (v Value) AsInt() (int64, bool) {
	if v.kind != Number {
		return 0, false
	}
	if i, err := v.n.Int64(); err == nil {
		return i, true
	}
	f, err := v.n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func (v Value) AsFloat() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := v.n.Float64()
	return f, err == nil
}

// Items returns the array elements, or nil for non-arrays.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj.keys)
	case String:
		return len(v.s)
	}
	return 0
}

// Keys returns object keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	out := make([]string, len(v.obj.keys))
	copy(out, v.obj.keys)
	return out
}

// Members returns object members in insertion order.
func (v Value) Members() []Member {
	if v.kind != Object {
		return nil
	}
	out := make([]Member, 0, len(v.obj.keys))
	for _, k := range v.obj.keys {
		out = append(out, Member{Key: k, Value: v.obj.vals[k]})
	}
	return out
}

// Get looks up a member of an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	m, ok := v.obj.vals[key]
	return m, ok
}

// Has reports whether an object carries key.
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Set adds or replaces a member in place. Objects share their storage
// between copies of the same Value.
func (v Value) Set(key string, val Value) {
	if v.kind != Object {
		return
	}
	if _, exists := v.obj.vals[key]; !exists {
		v.obj.keys = append(v.obj.keys, key)
	}
	v.obj.vals[key] = val
}

// Index returns the i-th array element.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != Array || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Path walks a dotted path such as "data.items.0.name". Numeric segments
// index into arrays.
func (v Value) Path(path string) (Value, bool) {
	if path == "" || path == "." || path == "$" {
		return v, true
	}
	path = strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch cur.kind {
		case Object:
			next, ok := cur.Get(seg)
			if !ok {
				return Value{}, false
			}
			cur = next
		case Array:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return Value{}, false
			}
			next, ok := cur.Index(i)
			if !ok {
				return Value{}, false
			}
			cur = next
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Equal compares two values structurally. Object member order is ignored
// and numbers compare by numeric value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == o.b
	case String:
		return v.s == o.s
	case Number:
		if v.n == o.n {
			return true
		}
		a, errA := v.n.Float64()
		b, errB := o.n.Float64()
		return errA == nil && errB == nil && a == b
	case Array:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(v.obj.keys) != len(o.obj.keys) {
			return false
		}
		for k, val := range v.obj.vals {
			other, ok := o.obj.vals[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// Any converts the value to plain Go data: nil, bool, json.Number, string,
// []any and map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.n
	case String:
		return v.s
	case Array:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Any()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj.keys))
		for _, k := range v.obj.keys {
			out[k] = v.obj.vals[k].Any()
		}
		return out
	}
	return nil
}

// MarshalJSON writes the value with object members in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		if v.n == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(string(v.n))
		}
	case String:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj.vals[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("jsonval: unknown kind %d", v.kind)
	}
	return nil
}

// UnmarshalJSON lets Value be used directly in request DTOs.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String renders compact JSON.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// Indent renders the value as indented JSON.
func (v Value) Indent() string {
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(v.String()), "", "  "); err != nil {
		return v.String()
	}
	return out.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
