package conversion

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

// Coercions a rule may request.
const (
	CoerceNone    = ""
	CoerceString  = "string"
	CoerceInteger = "integer"
	CoerceFloat   = "float"
	CoerceBoolean = "boolean"
	CoerceJSON    = "json"
)

// Rule copies one value from the input onto an output column.
type Rule struct {
	SourcePath   string         `json:"source_path"`
	TargetColumn string         `json:"target_column"`
	Coercion     string         `json:"coercion,omitempty"`
	Default      *jsonval.Value `json:"default,omitempty"`
}

// Rules is the data-only template form: a JSON array of Rule.
type Rules []Rule

// ParseRules decodes and checks a rules document.
func ParseRules(logic string) (Rules, error) {
	var rules Rules
	dec := json.NewDecoder(strings.NewReader(logic))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("invalid mapping rules: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid mapping rules: trailing data")
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("invalid mapping rules: no rules")
	}
	for i, r := range rules {
		if strings.TrimSpace(r.TargetColumn) == "" {
			return nil, fmt.Errorf("invalid mapping rules: rule %d has no target_column", i)
		}
		switch r.Coercion {
		case CoerceNone, CoerceString, CoerceInteger, CoerceFloat, CoerceBoolean, CoerceJSON:
		default:
			return nil, fmt.Errorf("invalid mapping rules: rule %d has unknown coercion '%s'", i, r.Coercion)
		}
	}
	return rules, nil
}

// IsRules reports whether logic is a rules document rather than a procedure.
func IsRules(logic string) bool {
	if !strings.HasPrefix(strings.TrimSpace(logic), "[") {
		return false
	}
	_, err := ParseRules(logic)
	return err == nil
}

// Apply builds the output object. A missing source uses the rule default,
// or leaves the column out when there is none.
func (rs Rules) Apply(input jsonval.Value) (jsonval.Value, error) {
	out := jsonval.ObjectValue()
	for _, r := range rs {
		val, ok := input.Path(r.SourcePath)
		if !ok {
			if r.Default == nil {
				continue
			}
			val = *r.Default
		}
		coerced, err := coerce(val, r.Coercion)
		if err != nil {
			return jsonval.Value{}, fmt.Errorf("%w: %s -> %s: %s", ErrRuntime, r.SourcePath, r.TargetColumn, err.Error())
		}
		out.Set(r.TargetColumn, coerced)
	}
	return out, nil
}

func (rs Rules) String() string {
	b, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

func coerce(v jsonval.Value, to string) (jsonval.Value, error) {
	if v.IsNull() || to == CoerceNone {
		return v, nil
	}
	switch to {
	case CoerceString:
		if s, ok := v.AsString(); ok {
			return jsonval.StringValue(s), nil
		}
		return jsonval.StringValue(v.String()), nil
	case CoerceJSON:
		return jsonval.StringValue(v.String()), nil
	case CoerceInteger:
		return toInteger(v)
	case CoerceFloat:
		return toFloat(v)
	case CoerceBoolean:
		return toBoolean(v)
	}
	return jsonval.Value{}, fmt.Errorf("unknown coercion '%s'", to)
}

func toInteger(v jsonval.Value) (jsonval.Value, error) {
	switch v.Kind() {
	case jsonval.Number:
		if i, ok := v.AsInt(); ok {
			return jsonval.IntValue(i), nil
		}
		f, _ := v.AsFloat()
		if i, ok := truncInt(f); ok {
			return jsonval.IntValue(i), nil
		}
		return jsonval.Value{}, fmt.Errorf("invalid literal for int: %s out of range", v.String())
	case jsonval.String:
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return jsonval.IntValue(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if i, ok := truncInt(f); ok {
				return jsonval.IntValue(i), nil
			}
		}
		return jsonval.Value{}, fmt.Errorf("invalid literal for int: %q", s)
	case jsonval.Bool:
		if b, _ := v.AsBool(); b {
			return jsonval.IntValue(1), nil
		}
		return jsonval.IntValue(0), nil
	}
	return jsonval.Value{}, fmt.Errorf("cannot convert %s to int", v.Kind())
}

// truncInt drops the fraction of f; values outside int64 have no integer form.
func truncInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if math.Abs(f) >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

func toFloat(v jsonval.Value) (jsonval.Value, error) {
	switch v.Kind() {
	case jsonval.Number:
		f, _ := v.AsFloat()
		return jsonval.FloatValue(f), nil
	case jsonval.String:
		s, _ := v.AsString()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return jsonval.Value{}, fmt.Errorf("invalid literal for float: %q", s)
		}
		return jsonval.FloatValue(f), nil
	case jsonval.Bool:
		if b, _ := v.AsBool(); b {
			return jsonval.FloatValue(1), nil
		}
		return jsonval.FloatValue(0), nil
	}
	return jsonval.Value{}, fmt.Errorf("cannot convert %s to float", v.Kind())
}

func toBoolean(v jsonval.Value) (jsonval.Value, error) {
	switch v.Kind() {
	case jsonval.Bool:
		return v, nil
	case jsonval.Number:
		f, _ := v.AsFloat()
		return jsonval.BoolValue(f != 0), nil
	case jsonval.String:
		s, _ := v.AsString()
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "t", "yes", "y", "1":
			return jsonval.BoolValue(true), nil
		case "false", "f", "no", "n", "0", "":
			return jsonval.BoolValue(false), nil
		}
		return jsonval.Value{}, fmt.Errorf("invalid literal for bool: %q", s)
	}
	return jsonval.Value{}, fmt.Errorf("cannot convert %s to bool", v.Kind())
}
