// internal/jsonval/parse.go
package jsonval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"time"

	"go.yaml.in/yaml/v4"
)

var (
	ErrTrailingData = errors.New("unexpected data after top-level JSON value")
)

// Parse decodes JSON text, preserving object member order and number text.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, ErrTrailingData
	}
	return v, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ArrayValue(items...), nil
		case '{':
			obj := ObjectValue()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("invalid object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// FromAny converts decoded Go data into a Value. Maps without inherent
// order are emitted with sorted keys.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return t
	case bool:
		return BoolValue(t)
	case string:
		return StringValue(t)
	case json.Number:
		return NumberValue(t)
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case uint64:
		return NumberValue(json.Number(strconv.FormatUint(t, 10)))
	case float32:
		return floatOrNull(float64(t))
	case float64:
		return floatOrNull(t)
	case time.Time:
		return StringValue(t.Format(time.RFC3339))
	case []byte:
		return StringValue(string(t))
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return ArrayValue(items...)
	case map[string]any:
		obj := ObjectValue()
		for _, k := range sortedKeys(t) {
			obj.Set(k, FromAny(t[k]))
		}
		return obj
	case map[any]any:
		norm := make(map[string]any, len(t))
		for k, val := range t {
			norm[fmt.Sprint(k)] = val
		}
		return FromAny(norm)
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = StringValue(s)
		}
		return ArrayValue(items...)
	case map[string]string:
		obj := ObjectValue()
		for _, k := range sortedKeys(t) {
			obj.Set(k, StringValue(t[k]))
		}
		return obj
	}

	// Fall back to a JSON round trip for structs and other typed values.
	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return NullValue()
	}
	b, err := json.Marshal(x)
	if err != nil {
		return StringValue(fmt.Sprint(x))
	}
	v, err := Parse(b)
	if err != nil {
		return StringValue(fmt.Sprint(x))
	}
	return v
}

func floatOrNull(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NullValue()
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return IntValue(int64(f))
	}
	return FloatValue(f)
}

// ParseYAML decodes YAML text. Mapping order from the source is preserved.
func ParseYAML(data []byte) (Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Value{}, err
	}
	if root.Kind == 0 {
		return NullValue(), nil
	}
	return FromYAMLNode(&root)
}

// FromYAMLNode converts a decoded YAML node tree into a Value.
func FromYAMLNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NullValue(), nil
		}
		return FromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return NullValue(), nil
		}
		return FromYAMLNode(n.Alias)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := FromYAMLNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return ArrayValue(items...), nil
	case yaml.MappingNode:
		obj := ObjectValue()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			val, err := FromYAMLNode(v)
			if err != nil {
				return Value{}, err
			}
			obj.Set(k.Value, val)
		}
		return obj, nil
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	}
	return Value{}, fmt.Errorf("unsupported YAML node kind %d at line %d", n.Kind, n.Line)
}

func scalarFromYAML(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return NullValue(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			var u uint64
			if uerr := n.Decode(&u); uerr != nil {
				return Value{}, err
			}
			return NumberValue(json.Number(strconv.FormatUint(u, 10))), nil
		}
		return IntValue(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return StringValue(n.Value), nil
		}
		return FloatValue(f), nil
	}
	return StringValue(n.Value), nil
}
