package conversion

import (
	"strings"

	"github.com/alvera-ai/interoperability-template-generator/internal/core"
	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

const maxSampleDepth = 8

// ProposeMapping matches the columns of a CREATE TABLE statement against the
// properties of a response schema and returns one rule per match, in column
// order. Names match case-insensitively, ignoring '_' and '-'. Array schemas
// are matched through their items.
func ProposeMapping(schema jsonval.Value, ddl string) Rules {
	record := recordSchema(schema)
	props, _ := record.Get("properties")

	byFolded := make(map[string]string, props.Len())
	for _, key := range props.Keys() {
		f := foldName(key)
		if _, taken := byFolded[f]; !taken {
			byFolded[f] = key
		}
	}

	rules := Rules{}
	for _, col := range core.ParseColumnDefs(ddl) {
		key, ok := byFolded[foldName(col.Name)]
		if !ok {
			continue
		}
		propSchema, _ := props.Get(key)
		rules = append(rules, Rule{
			SourcePath:   key,
			TargetColumn: col.Name,
			Coercion:     coercionFor(col.Type, propSchema),
		})
	}
	return rules
}

func foldName(s string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(s))
}

func coercionFor(colType string, prop jsonval.Value) string {
	switch core.TypeAffinity(colType) {
	case core.AffinityInteger:
		return CoerceInteger
	case core.AffinityReal:
		return CoerceFloat
	case core.AffinityBoolean:
		return CoerceBoolean
	case core.AffinityJSON:
		return CoerceJSON
	case core.AffinityText:
		switch schemaType(prop) {
		case "object", "array":
			return CoerceJSON
		case "string":
			return CoerceNone
		}
		return CoerceString
	}
	return CoerceNone
}

// recordSchema unwraps an array schema to its item schema.
func recordSchema(schema jsonval.Value) jsonval.Value {
	if schemaType(schema) == "array" {
		if items, ok := schema.Get("items"); ok {
			return items
		}
	}
	return schema
}

func schemaType(schema jsonval.Value) string {
	t, ok := schema.Get("type")
	if !ok {
		if schema.Has("properties") {
			return "object"
		}
		return ""
	}
	if s, ok := t.AsString(); ok {
		return s
	}
	for _, item := range t.Items() {
		if s, ok := item.AsString(); ok && s != "null" {
			return s
		}
	}
	return ""
}

// SampleRecord synthesises a representative input for a schema. Array
// schemas yield a sample of one item, since templates convert one record.
func SampleRecord(schema jsonval.Value) jsonval.Value {
	return sampleValue(recordSchema(schema), 0)
}

func sampleValue(schema jsonval.Value, depth int) jsonval.Value {
	if depth > maxSampleDepth {
		return jsonval.NullValue()
	}
	for _, key := range []string{"example", "default"} {
		if v, ok := schema.Get(key); ok {
			return v
		}
	}
	if enum, ok := schema.Get("enum"); ok {
		if first, ok := enum.Index(0); ok {
			return first
		}
	}

	switch schemaType(schema) {
	case "object":
		out := jsonval.ObjectValue()
		props, _ := schema.Get("properties")
		for _, m := range props.Members() {
			out.Set(m.Key, sampleValue(m.Value, depth+1))
		}
		return out
	case "array":
		items, _ := schema.Get("items")
		return jsonval.ArrayValue(sampleValue(items, depth+1))
	case "integer":
		return jsonval.IntValue(1)
	case "number":
		return jsonval.FloatValue(1.5)
	case "boolean":
		return jsonval.BoolValue(true)
	case "string":
		return sampleString(schema)
	}
	return jsonval.NullValue()
}

func sampleString(schema jsonval.Value) jsonval.Value {
	format, _ := schema.Get("format")
	f, _ := format.AsString()
	switch f {
	case "date-time":
		return jsonval.StringValue("2024-01-01T00:00:00Z")
	case "date":
		return jsonval.StringValue("2024-01-01")
	case "email":
		return jsonval.StringValue("user@example.com")
	case "uuid":
		return jsonval.StringValue("00000000-0000-4000-8000-000000000000")
	case "uri", "url":
		return jsonval.StringValue("https://example.com")
	}
	return jsonval.StringValue("sample")
}
