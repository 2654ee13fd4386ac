package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/alvera-ai/interoperability-template-generator/internal/conversion"
	"github.com/alvera-ai/interoperability-template-generator/internal/core"
	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

// TemplateRequest identifies the shapes a template converts between. The
// response schema is either given inline or resolved from the active spec
// via Path and StatusCode. The table DDL is either given or taken from the
// recorded metadata of TableName.
type TemplateRequest struct {
	TemplateName string
	SpecName     string
	Path         string
	StatusCode   string
	Schema       jsonval.Value
	DDL          string
	TableName    string
	// Save stores the template when its test run succeeds.
	Save bool
}

// TemplateDraft is generated or proposed logic plus its test run.
type TemplateDraft struct {
	TemplateName string        `json:"template_name,omitempty"`
	Logic        string        `json:"conversion_logic"`
	CreatedBy    string        `json:"created_by"`
	Sample       jsonval.Value `json:"sample_input"`
	TestOutput   jsonval.Value `json:"test_output"`
	TestError    string        `json:"test_error,omitempty"`
	Saved        bool          `json:"saved"`
}

func (s *Session) resolveTemplateInputs(ctx context.Context, req *TemplateRequest) error {
	if req.Schema.IsNull() {
		if req.Path == "" {
			return fmt.Errorf("%w: a schema or an endpoint path is required", ErrInvalidRequest)
		}
		_, schema, found, err := s.EndpointSchema(req.Path, req.StatusCode)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: no response schema declared for GET %s", ErrInvalidRequest, req.Path)
		}
		req.Schema = schema
	}
	if req.SpecName == "" {
		if _, name, err := s.active(); err == nil {
			req.SpecName = name
		}
	}

	if strings.TrimSpace(req.DDL) == "" {
		if req.TableName == "" {
			return fmt.Errorf("%w: a CREATE TABLE statement or a table name is required", ErrInvalidRequest)
		}
		tables, err := s.store.ListTables(ctx)
		if err != nil {
			return err
		}
		for _, t := range tables {
			if t.TableName == req.TableName {
				req.DDL = t.CreateCommand
				break
			}
		}
		if req.DDL == "" {
			return fmt.Errorf("%w: no recorded CREATE TABLE for '%s'", ErrInvalidRequest, req.TableName)
		}
	}
	if req.TableName == "" {
		name, ok := core.ExtractTableName(req.DDL)
		if !ok {
			return fmt.Errorf("%w: no table name found in CREATE TABLE statement", ErrInvalidRequest)
		}
		req.TableName = name
	}
	return nil
}

// GenerateTemplate asks the model for conversion logic, test-runs it on a
// sample synthesised from the schema and, when requested and the test
// passes, stores it.
func (s *Session) GenerateTemplate(ctx context.Context, req TemplateRequest) (*TemplateDraft, error) {
	if !s.engine.IsAvailable() {
		return nil, conversion.ErrUnavailable
	}
	if err := s.resolveTemplateInputs(ctx, &req); err != nil {
		return nil, err
	}
	logic, err := s.engine.GenerateTemplate(ctx, conversion.GenerateRequest{
		SpecName:  req.SpecName,
		Schema:    req.Schema,
		DDL:       req.DDL,
		TableName: req.TableName,
	})
	if err != nil {
		return nil, err
	}
	return s.finishDraft(ctx, req, logic, AuthorModel)
}

// ProposeMapping builds deterministic mapping rules by matching column
// names against schema properties. It works without a model.
func (s *Session) ProposeMapping(ctx context.Context, req TemplateRequest) (*TemplateDraft, error) {
	if err := s.resolveTemplateInputs(ctx, &req); err != nil {
		return nil, err
	}
	rules := s.engine.ProposeMapping(req.Schema, req.DDL)
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no schema property matches a column of '%s'", ErrInvalidRequest, req.TableName)
	}
	return s.finishDraft(ctx, req, rules.String(), AuthorProposer)
}

func (s *Session) finishDraft(ctx context.Context, req TemplateRequest, logic, author string) (*TemplateDraft, error) {
	draft := &TemplateDraft{
		TemplateName: req.TemplateName,
		Logic:        logic,
		CreatedBy:    author,
		Sample:       conversion.SampleRecord(req.Schema),
		TestOutput:   jsonval.NullValue(),
	}
	out, err := s.engine.TestRun(ctx, logic, draft.Sample)
	if err != nil {
		draft.TestError = err.Error()
		return draft, nil
	}
	draft.TestOutput = out

	if req.Save && req.TemplateName != "" {
		err := s.store.StoreTemplate(ctx, domain.ConversionTemplate{
			TemplateName:      req.TemplateName,
			OpenAPISpecName:   req.SpecName,
			APIResponseSchema: req.Schema.String(),
			DBTableSchema:     req.DDL,
			ConversionLogic:   logic,
			CreatedBy:         author,
		})
		if err != nil {
			return nil, err
		}
		draft.Saved = true
	}
	return draft, nil
}

// StoreTemplate upserts a template by name.
func (s *Session) StoreTemplate(ctx context.Context, t domain.ConversionTemplate) error {
	return s.store.StoreTemplate(ctx, t)
}

func (s *Session) ListTemplates(ctx context.Context) ([]domain.ConversionTemplate, error) {
	return s.store.ListTemplates(ctx)
}

func (s *Session) Template(ctx context.Context, name string) (*domain.ConversionTemplate, error) {
	return s.store.Template(ctx, name)
}

// ApplyTemplate runs a stored template on input. With a target table the
// output is inserted; a failed transform writes nothing.
func (s *Session) ApplyTemplate(ctx context.Context, name string, input jsonval.Value, targetTable string) (jsonval.Value, error) {
	return s.store.ApplyTemplate(ctx, name, input, s.engine, targetTable)
}
