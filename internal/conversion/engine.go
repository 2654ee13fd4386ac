// Package conversion turns API response shapes into table rows: it asks a
// model for template logic, runs that logic, and proposes mappings when no
// model is configured.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// GenerateRequest describes the template to generate.
type GenerateRequest struct {
	SpecName  string
	Schema    jsonval.Value
	DDL       string
	TableName string
}

// Engine generates, tests and applies conversion templates.
type Engine struct {
	generator Generator
	sandbox   *Sandbox
}

// NewEngine wires an engine. generator may be nil, which leaves generation
// unavailable.
func NewEngine(generator Generator, sandbox *Sandbox) *Engine {
	if sandbox == nil {
		sandbox = NewSandbox(DefaultMaxSteps)
	}
	return &Engine{generator: generator, sandbox: sandbox}
}

// IsAvailable reports whether a model is configured.
func (e *Engine) IsAvailable() bool {
	return e.generator != nil && e.generator.Available()
}

var promptTemplate = template.Must(template.New("prompt").Parse(`
You are an expert data transformation engineer. I need you to generate conversion logic that turns JSON data from an OpenAPI response into a row for a database table.

**OpenAPI Spec Name:** {{.SpecName}}

**API Response Schema (JSON Schema format):**
` + "```json" + `
{{.Schema}}
` + "```" + `

**Target Database Table Schema (CREATE TABLE statement):**
` + "```sql" + `
{{.DDL}}
` + "```" + `

**Target Table Name:** {{.TableName}}

**Requirements:**
1. Prefer a JSON array of mapping rules. Each rule is an object with "source_path" (dotted path into the input, numeric segments index arrays), "target_column", and an optional "coercion" of "string", "integer", "float", "boolean" or "json".
2. When a mapping needs logic beyond renaming and coercion, write a Starlark procedure instead. It reads the variable ` + "`input_data`" + ` (the API response JSON) and fills the dict ` + "`output_data`" + ` (one database row).
3. Only include fields that exist in both the API response and the database table.
4. Handle missing or null values appropriately.
5. A procedure cannot import anything. Use only these variables: ` + "`input_data`, `output_data`, `json`" + `.

**Example rules:**
` + "```json" + `
[
  {"source_path": "api_field_name", "target_column": "db_field_name"},
  {"source_path": "id", "target_column": "id", "coercion": "integer"}
]
` + "```" + `

**Example procedure:**
` + "```python" + `
if "api_field_name" in input_data:
    output_data["db_field_name"] = input_data["api_field_name"]

if "id" in input_data:
    output_data["id"] = int(input_data["id"])
` + "```" + `

Please provide ONLY the rules or the procedure, no explanations:
`))

// BuildPrompt renders the instruction sent to the model.
func BuildPrompt(req GenerateRequest) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, struct {
		SpecName, Schema, DDL, TableName string
	}{req.SpecName, req.Schema.Indent(), req.DDL, req.TableName})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// GenerateTemplate asks the model for template logic and extracts it from
// the reply. It never retries.
func (e *Engine) GenerateTemplate(ctx context.Context, req GenerateRequest) (string, error) {
	if !e.IsAvailable() {
		return "", ErrUnavailable
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCollaborator, err)
	}

	customLog.Printf("Conversion: Requesting template for table '%s' (spec '%s').", req.TableName, req.SpecName)
	reply, err := e.generator.Complete(ctx, prompt)
	if err != nil {
		customLog.Warnf("Conversion: Model call failed: %v", err)
		if errors.Is(err, ErrCollaborator) || errors.Is(err, ErrBadResponse) || errors.Is(err, ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrCollaborator, err)
	}

	logic := ExtractProcedure(reply)
	if logic == "" {
		return "", ErrBadResponse
	}
	return logic, nil
}

// Apply runs template logic against input. Rules documents are evaluated
// directly; anything else runs in the sandbox. Failures are ErrRuntime.
func (e *Engine) Apply(ctx context.Context, logic string, input jsonval.Value) (jsonval.Value, error) {
	if IsRules(logic) {
		rules, err := ParseRules(logic)
		if err != nil {
			return jsonval.Value{}, fmt.Errorf("%w: %s", ErrRuntime, err.Error())
		}
		return rules.Apply(input)
	}
	return e.sandbox.Run(ctx, logic, input)
}

// TestRun applies logic to a sample and fails when the result is empty.
func (e *Engine) TestRun(ctx context.Context, logic string, sample jsonval.Value) (jsonval.Value, error) {
	out, err := e.Apply(ctx, logic, sample)
	if err != nil {
		return jsonval.Value{}, err
	}
	if isEmpty(out) {
		return jsonval.Value{}, fmt.Errorf("%w: %w", ErrRuntime, ErrEmptyOutput)
	}
	return out, nil
}

// ProposeMapping is the deterministic fallback when no model is available.
func (e *Engine) ProposeMapping(schema jsonval.Value, ddl string) Rules {
	return ProposeMapping(schema, ddl)
}

func isEmpty(v jsonval.Value) bool {
	switch v.Kind() {
	case jsonval.Null:
		return true
	case jsonval.Object, jsonval.Array:
		return v.Len() == 0
	case jsonval.String:
		s, _ := v.AsString()
		return s == ""
	}
	return false
}
