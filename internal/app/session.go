// Package app holds the session that drives every user-facing operation:
// spec loading, endpoint calls, validation, storage and conversion.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alvera-ai/interoperability-template-generator/internal/conversion"
	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
	"github.com/alvera-ai/interoperability-template-generator/internal/openapi"
	"github.com/alvera-ai/interoperability-template-generator/internal/requester"
	"github.com/alvera-ai/interoperability-template-generator/internal/schemacheck"
	"github.com/alvera-ai/interoperability-template-generator/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

var (
	ErrNoSpec         = errors.New("no OpenAPI spec loaded")
	ErrMissingParam   = errors.New("missing required parameter")
	ErrInvalidRequest = errors.New("invalid request")
)

// Template authors recorded in conversion_templates.created_by.
const (
	AuthorManual   = "manual"
	AuthorModel    = "claude"
	AuthorProposer = "proposer"
)

// Session is the explicit application state: the active spec plus the
// collaborators every operation uses. Build one per process (or per test).
type Session struct {
	store    *storage.Store
	executor *requester.Executor
	engine   *conversion.Engine
	strict   bool
	now      func() time.Time

	mu       sync.RWMutex
	catalog  *openapi.Catalog
	specName string
}

// Option configures a Session.
type Option func(*Session)

// WithStrictSpecValidation runs the full OpenAPI validator on load.
func WithStrictSpecValidation(strict bool) Option {
	return func(s *Session) { s.strict = strict }
}

// WithClock overrides the time source used for spec names.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession wires a session around its collaborators.
func NewSession(store *storage.Store, executor *requester.Executor, engine *conversion.Engine, opts ...Option) *Session {
	s := &Session{
		store:    store,
		executor: executor,
		engine:   engine,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the relational store, for callers that need direct access.
func (s *Session) Store() *storage.Store { return s.store }

// GenerationAvailable reports whether a model is configured.
func (s *Session) GenerationAvailable() bool { return s.engine.IsAvailable() }

// SpecSummary describes the active spec.
type SpecSummary struct {
	Name          string `json:"name"`
	SpecID        int64  `json:"spec_id,omitempty"`
	Title         string `json:"title"`
	Version       string `json:"version"`
	OASVersion    string `json:"openapi_version"`
	BaseURL       string `json:"base_url"`
	EndpointCount int    `json:"endpoint_count"`
}

func summarize(name string, id int64, c *openapi.Catalog) SpecSummary {
	return SpecSummary{
		Name:          name,
		SpecID:        id,
		Title:         c.Title,
		Version:       c.Version,
		OASVersion:    c.OASVersion,
		BaseURL:       c.BaseURL,
		EndpointCount: len(c.Endpoints()),
	}
}

// DefaultSpecName builds the spec_YYYYmmdd_HHMMSS name used when none is given.
func DefaultSpecName(t time.Time) string {
	return "spec_" + t.Format("20060102_150405")
}

// LoadSpec parses and validates a document, persists its text and makes it
// the active spec. On any failure the previously active spec stays in place.
func (s *Session) LoadSpec(ctx context.Context, content []byte, format, name string) (SpecSummary, error) {
	f, err := openapi.ParseFormat(format, content)
	if err != nil {
		return SpecSummary{}, err
	}
	catalog, err := openapi.Load(content, f, openapi.WithStrictValidation(s.strict))
	if err != nil {
		customLog.Warnf("Session: spec load failed: %v", err)
		return SpecSummary{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSpecName(s.now())
	}
	id, err := s.store.StoreSpec(ctx, name, string(content))
	if err != nil {
		return SpecSummary{}, err
	}

	s.activate(name, catalog)
	customLog.WithFields(map[string]interface{}{
		"spec":      name,
		"endpoints": len(catalog.Endpoints()),
		"base_url":  catalog.BaseURL,
	}).Info("Session: spec loaded")
	return summarize(name, id, catalog), nil
}

// ActivateStoredSpec reloads a persisted spec by name.
func (s *Session) ActivateStoredSpec(ctx context.Context, name string) (SpecSummary, error) {
	spec, err := s.store.Spec(ctx, name)
	if err != nil {
		return SpecSummary{}, err
	}
	content := []byte(spec.SpecContent)
	catalog, err := openapi.Load(content, openapi.DetectFormat(content), openapi.WithStrictValidation(s.strict))
	if err != nil {
		return SpecSummary{}, err
	}
	s.activate(spec.SpecName, catalog)
	return summarize(spec.SpecName, spec.ID, catalog), nil
}

func (s *Session) activate(name string, c *openapi.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog, s.specName = c, name
}

func (s *Session) active() (*openapi.Catalog, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return nil, "", ErrNoSpec
	}
	return s.catalog, s.specName, nil
}

// ActiveSpec summarizes the active spec.
func (s *Session) ActiveSpec() (SpecSummary, error) {
	c, name, err := s.active()
	if err != nil {
		return SpecSummary{}, err
	}
	return summarize(name, 0, c), nil
}

// ListSpecs lists persisted specs, newest first.
func (s *Session) ListSpecs(ctx context.Context) ([]domain.SpecRecord, error) {
	return s.store.ListSpecs(ctx)
}

// SpecContent returns the stored text of a spec.
func (s *Session) SpecContent(ctx context.Context, name string) (string, error) {
	return s.store.SpecContent(ctx, name)
}

// ListEndpoints returns the GET endpoints of the active spec.
func (s *Session) ListEndpoints() ([]openapi.Endpoint, error) {
	c, _, err := s.active()
	if err != nil {
		return nil, err
	}
	return c.Endpoints(), nil
}

// EndpointSchema resolves the response schema for path. An empty statusCode
// means "200", falling back to the first 2xx or default response.
func (s *Session) EndpointSchema(path, statusCode string) (code string, schema jsonval.Value, found bool, err error) {
	c, _, err := s.active()
	if err != nil {
		return "", jsonval.Value{}, false, err
	}
	explicit := statusCode != ""
	if !explicit {
		statusCode = "200"
	}
	schema, found, err = c.ResolveSchema(path, statusCode)
	if err != nil || found || explicit {
		return statusCode, schema, found, err
	}
	return c.PrimarySchema(path)
}

// CallRequest is one GET call against the active spec.
type CallRequest struct {
	Path    string
	Prompt  string
	Params  map[string]string
	Headers map[string]string
	// StatusCode selects the response schema to validate against. Empty
	// uses the schema declared for the actual status.
	StatusCode string
	// Record stores the result in api_results.
	Record bool
}

// CallReport is the outcome of CallEndpoint.
type CallReport struct {
	Outcome     requester.CallOutcome `json:"outcome"`
	Endpoint    string                `json:"endpoint"`
	PathParams  map[string]string     `json:"path_params"`
	Query       map[string]string     `json:"query"`
	Validation  schemacheck.Result    `json:"validation"`
	SchemaCode  string                `json:"schema_status_code,omitempty"`
	Schema      jsonval.Value         `json:"schema"`
	ResultID    int64                 `json:"result_id,omitempty"`
	ParamsGiven map[string]string     `json:"params"`
}

// splitParams routes named parameters by their declared location. Values
// missing from params are looked up in the prompt. Undeclared names go to
// the query string.
func splitParams(ep openapi.Endpoint, prompt string, params map[string]string) (path, query, headers map[string]string, given map[string]string, err error) {
	given = make(map[string]string, len(params))
	for k, v := range params {
		given[k] = v
	}
	if prompt != "" {
		for k, v := range openapi.ExtractParameterHints(prompt, ep) {
			if _, ok := given[k]; !ok {
				given[k] = v
			}
		}
	}

	path, query, headers = map[string]string{}, map[string]string{}, map[string]string{}
	declared := make(map[string]openapi.Parameter, len(ep.Parameters))
	for _, p := range ep.Parameters {
		declared[p.Name] = p
	}
	for k, v := range given {
		p, ok := declared[k]
		switch {
		case ok && p.In == "path":
			path[k] = v
		case ok && p.In == "header":
			headers[k] = v
		case ok && p.In == "cookie":
			headers["Cookie"] = strings.TrimPrefix(headers["Cookie"]+"; "+k+"="+v, "; ")
		default:
			query[k] = v
		}
	}

	var missing []string
	for _, p := range ep.Parameters {
		if p.In == "path" && p.Required {
			if _, ok := path[p.Name]; !ok {
				missing = append(missing, p.Name)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, nil, nil, nil, fmt.Errorf("%w: %s", ErrMissingParam, strings.Join(missing, ", "))
	}
	return path, query, headers, given, nil
}

// ExecuteGet performs the call without validating or recording it.
func (s *Session) ExecuteGet(ctx context.Context, req CallRequest) (requester.CallOutcome, error) {
	report, err := s.execute(ctx, req)
	if err != nil {
		return requester.CallOutcome{}, err
	}
	return report.Outcome, nil
}

func (s *Session) execute(ctx context.Context, req CallRequest) (*CallReport, error) {
	c, _, err := s.active()
	if err != nil {
		return nil, err
	}
	ep, err := c.Endpoint(req.Path)
	if err != nil {
		return nil, err
	}
	pathParams, query, paramHeaders, given, err := splitParams(ep, req.Prompt, req.Params)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(req.Headers)+len(paramHeaders))
	for k, v := range paramHeaders {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	outcome := s.executor.Execute(ctx, requester.Request{
		BaseURL:    c.BaseURL,
		Path:       ep.Path,
		PathParams: pathParams,
		Query:      query,
		Headers:    headers,
	})
	return &CallReport{Outcome: outcome, Endpoint: ep.Path, PathParams: pathParams, Query: query, ParamsGiven: given}, nil
}

// CallEndpoint executes a call, validates the body against the declared
// schema and optionally records the result.
func (s *Session) CallEndpoint(ctx context.Context, req CallRequest) (*CallReport, error) {
	report, err := s.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	code := req.StatusCode
	if code == "" {
		code = strconv.Itoa(report.Outcome.StatusCode)
	}
	schemaCode, schema, found, err := s.EndpointSchema(req.Path, code)
	// An undeclared status is checked against the primary schema; a declared
	// one without a schema is skipped.
	if err == nil && !found && req.StatusCode == "" && !s.declaresStatus(req.Path, code) {
		schemaCode, schema, found, err = s.EndpointSchema(req.Path, "")
	}
	report.Schema = jsonval.NullValue()
	switch {
	case err != nil:
		// The call already happened; an unusable schema only skips validation.
		customLog.Warnf("Session: schema for GET %s not resolved: %v", req.Path, err)
		report.Validation = schemacheck.Result{Status: schemacheck.StatusSkipped, Message: "Skipped: " + err.Error()}
	case found:
		report.Schema, report.SchemaCode = schema, schemaCode
		report.Validation = schemacheck.Check(report.Outcome.Body, report.Schema)
	default:
		report.Validation = schemacheck.Check(report.Outcome.Body, report.Schema)
	}

	if req.Record {
		id, err := s.StoreResult(ctx, domain.CallResult{
			UserPrompt:      req.Prompt,
			APIEndpoint:     report.Endpoint,
			SchemaUsed:      schemaText(report.Schema),
			ResponseData:    report.Outcome.Body,
			StatusCode:      report.Outcome.StatusCode,
			ResponseHeaders: report.Outcome.Headers,
		})
		if err != nil {
			return nil, err
		}
		report.ResultID = id
	}
	return report, nil
}

func (s *Session) declaresStatus(path, code string) bool {
	c, _, err := s.active()
	if err != nil {
		return false
	}
	ep, err := c.Endpoint(path)
	if err != nil {
		return false
	}
	_, ok := ep.Response(code)
	return ok
}

func schemaText(schema jsonval.Value) string {
	if schema.IsNull() {
		return ""
	}
	return schema.String()
}

// ValidateResponse checks value against schema.
func (s *Session) ValidateResponse(value, schema jsonval.Value) schemacheck.Result {
	return schemacheck.Check(value, schema)
}

// CreateTable runs operator DDL and records it. When resultID is set the
// table is linked to that call result.
func (s *Session) CreateTable(ctx context.Context, ddl, reason string, resultID *int64) (string, error) {
	name, err := s.store.CreateTable(ctx, ddl, reason)
	if err != nil {
		return "", err
	}
	if resultID != nil {
		if err := s.store.LinkResult(ctx, name, *resultID); err != nil {
			return name, err
		}
	}
	return name, nil
}

// InsertJSON inserts an object, or each object of an array, into table.
// It returns the columns written per row.
func (s *Session) InsertJSON(ctx context.Context, table string, value jsonval.Value) ([][]string, error) {
	if value.Kind() != jsonval.Array {
		cols, err := s.store.Insert(ctx, table, value)
		if err != nil {
			return nil, err
		}
		return [][]string{cols}, nil
	}
	written := make([][]string, 0, value.Len())
	for i, item := range value.Items() {
		cols, err := s.store.Insert(ctx, table, item)
		if err != nil {
			return written, fmt.Errorf("row %d: %w", i, err)
		}
		written = append(written, cols)
	}
	return written, nil
}

func (s *Session) TableStructure(ctx context.Context, table string) (*domain.TableStructure, error) {
	return s.store.TableStructure(ctx, table)
}

// ListRows browses a table with equality filters on its columns.
func (s *Session) ListRows(ctx context.Context, table string, filters map[string]string, limit int) ([]jsonval.Value, error) {
	return s.store.ListRows(ctx, table, filters, limit)
}

func (s *Session) ListTables(ctx context.Context) ([]domain.TableMetadata, error) {
	return s.store.ListTables(ctx)
}

func (s *Session) StoreResult(ctx context.Context, r domain.CallResult) (int64, error) {
	return s.store.StoreResult(ctx, r)
}

func (s *Session) RecentResults(ctx context.Context, limit int) ([]domain.ResultSummary, error) {
	return s.store.RecentResults(ctx, limit)
}

func (s *Session) ResultDetails(ctx context.Context, id int64) (*domain.CallResult, error) {
	return s.store.ResultDetails(ctx, id)
}
