// internal/schemacheck/validator.go
package schemacheck

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Status is the outcome class of a validation.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusSkipped Status = "skipped"
)

// Result carries the outcome and a human readable message.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// OK is true for valid and skipped results.
func (r Result) OK() bool {
	return r.Status != StatusInvalid
}

// Validate checks value against schema and returns (true, "Valid") or
// (false, diagnostic). A missing or unusable schema is reported as a
// skipped, passing validation.
func Validate(value, schema jsonval.Value) (bool, string) {
	r := Check(value, schema)
	return r.OK(), r.Message
}

// Check is Validate with the skipped case made explicit.
func Check(value, schema jsonval.Value) Result {
	if schema.IsNull() || (schema.IsObject() && schema.Len() == 0) {
		return Result{Status: StatusSkipped, Message: "Skipped: no schema provided"}
	}
	if schema.Kind() != jsonval.Object {
		if b, ok := schema.AsBool(); ok && !b {
			return Result{Status: StatusInvalid, Message: "false schema rejects every value"}
		}
		if schema.Kind() != jsonval.Bool {
			return Result{Status: StatusSkipped, Message: fmt.Sprintf("Skipped: schema must be an object, got %s", schema.Kind())}
		}
		return Result{Status: StatusValid, Message: "Valid"}
	}

	resolved, err := compile(schema)
	if err != nil {
		customLog.Warnf("SchemaValidator: unusable schema, skipping validation: %v", err)
		return Result{Status: StatusSkipped, Message: "Skipped: " + err.Error()}
	}
	if err := resolved.Validate(instance(value)); err != nil {
		if strings.HasPrefix(err.Error(), "cannot validate version") {
			return Result{Status: StatusSkipped, Message: "Skipped: " + err.Error()}
		}
		return Result{Status: StatusInvalid, Message: err.Error()}
	}
	return Result{Status: StatusValid, Message: "Valid"}
}

func compile(schema jsonval.Value) (*jsonschema.Resolved, error) {
	raw, err := json.Marshal(normalizeOpenAPI(schema))
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("malformed schema: %w", err)
	}
	return s.Resolve(&jsonschema.ResolveOptions{})
}

// normalizeOpenAPI rewrites the OpenAPI 3.0 "nullable" keyword into a
// JSON-Schema type union so nullable fields accept null.
func normalizeOpenAPI(v jsonval.Value) jsonval.Value {
	switch v.Kind() {
	case jsonval.Array:
		items := make([]jsonval.Value, 0, v.Len())
		for _, item := range v.Items() {
			items = append(items, normalizeOpenAPI(item))
		}
		return jsonval.ArrayValue(items...)
	case jsonval.Object:
		nullable := false
		if n, ok := v.Get("nullable"); ok {
			nullable, _ = n.AsBool()
		}
		out := jsonval.ObjectValue()
		for _, m := range v.Members() {
			if m.Key == "nullable" {
				continue
			}
			val := normalizeOpenAPI(m.Value)
			if m.Key == "type" && nullable {
				if t, ok := val.AsString(); ok && t != "null" {
					val = jsonval.ArrayValue(jsonval.StringValue(t), jsonval.StringValue("null"))
				}
			}
			out.Set(m.Key, val)
		}
		return out
	}
	return v
}

// instance converts a Value into the Go shapes the validator understands.
// Numbers become int64 or float64 so they are not mistaken for strings.
func instance(v jsonval.Value) any {
	switch v.Kind() {
	case jsonval.Bool:
		b, _ := v.AsBool()
		return b
	case jsonval.Number:
		if i, ok := v.AsInt(); ok {
			return i
		}
		f, _ := v.AsFloat()
		return f
	case jsonval.String:
		s, _ := v.AsString()
		return s
	case jsonval.Array:
		out := make([]any, 0, v.Len())
		for _, item := range v.Items() {
			out = append(out, instance(item))
		}
		return out
	case jsonval.Object:
		out := make(map[string]any, v.Len())
		for _, m := range v.Members() {
			out[m.Key] = instance(m.Value)
		}
		return out
	}
	return nil
}
