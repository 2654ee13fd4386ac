// internal/storage/store.go
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alvera-ai/interoperability-template-generator/internal/core"
	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Store is the relational store: metadata persistence plus operator DDL and
// DML, on top of a Backend chosen at construction time.
type Store struct {
	backend Backend
	now     func() time.Time
}

// NewStore wraps a backend. Call Init before use.
func NewStore(b Backend) *Store {
	return &Store{
		backend: b,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BackendName reports the active backend, for logs and health output.
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// Init ensures the metadata collections exist.
func (s *Store) Init(ctx context.Context) error {
	if err := s.backend.Init(ctx); err != nil {
		customLog.Warnf("Storage: init on %s backend failed: %v", s.backend.Name(), err)
		return backendErr(err)
	}
	customLog.Printf("Storage: %s backend initialised.", s.backend.Name())
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// CreateTable runs the DDL and records its metadata. Re-creating a table
// name overwrites the metadata only.
func (s *Store) CreateTable(ctx context.Context, ddl, reason string) (string, error) {
	tableName, ok := core.ExtractTableName(ddl)
	if !ok {
		return "", ErrNoTableName
	}

	if err := s.backend.ExecDDL(ctx, ddl); err != nil {
		customLog.Warnf("Storage: Failed to execute CREATE TABLE for '%s': %v", tableName, err)
		return "", backendErr(err)
	}

	meta := domain.TableMetadata{
		Timestamp:       s.now(),
		TableName:       tableName,
		CreateCommand:   ddl,
		CreatedByPrompt: reason,
	}
	if err := s.backend.UpsertTableMetadata(ctx, meta); err != nil {
		customLog.Warnf("Storage: Table '%s' created but metadata upsert failed: %v", tableName, err)
		return "", backendErr(err)
	}

	customLog.Printf("Storage: Table '%s' created via %s backend.", tableName, s.backend.Name())
	return tableName, nil
}

// LinkResult records which call result a created table came from.
func (s *Store) LinkResult(ctx context.Context, tableName string, resultID int64) error {
	return backendErr(s.backend.LinkTableResult(ctx, tableName, resultID))
}

// TableStructure introspects the live columns of a table.
func (s *Store) TableStructure(ctx context.Context, tableName string) (*domain.TableStructure, error) {
	cols, err := s.columns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return &domain.TableStructure{TableName: tableName, Columns: cols}, nil
}

func (s *Store) columns(ctx context.Context, tableName string) ([]domain.ColumnInfo, error) {
	if !core.IsValidIdentifier(tableName) {
		return nil, fmt.Errorf("%w: invalid table name '%s'", ErrInvalidInput, tableName)
	}
	cols, err := s.backend.Columns(ctx, tableName)
	if err != nil {
		if isMissingTable(err) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
		}
		return nil, backendErr(err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	return cols, nil
}

// InsertPlan is the column/value selection for one insert.
type InsertPlan struct {
	Columns []string
	Values  []any
}

// PlanInsert selects the columns to write: live columns whose name is a key
// of obj, in the table's column order. A column named "id" is only written
// when obj supplies a non-null value for it. Keys match exactly first, then
// case-insensitively.
func PlanInsert(cols []domain.ColumnInfo, obj jsonval.Value) (InsertPlan, error) {
	if !obj.IsObject() {
		return InsertPlan{}, fmt.Errorf("%w: expected a JSON object, got %s", ErrInvalidInput, obj.Kind())
	}
	folded := make(map[string]string, obj.Len())
	for _, k := range obj.Keys() {
		lk := strings.ToLower(k)
		if _, taken := folded[lk]; !taken {
			folded[lk] = k
		}
	}

	plan := InsertPlan{Columns: []string{}, Values: []any{}}
	for _, col := range cols {
		key := col.Name
		if !obj.Has(key) {
			// A column literally named id is written only when the input
			// carries that exact key.
			if col.Name == "id" {
				continue
			}
			alt, ok := folded[strings.ToLower(key)]
			if !ok {
				continue
			}
			key = alt
		}
		val, _ := obj.Get(key)
		plan.Columns = append(plan.Columns, col.Name)
		plan.Values = append(plan.Values, SQLValue(val))
	}
	if len(plan.Columns) == 0 {
		return InsertPlan{}, ErrNoMatchingColumns
	}
	return plan, nil
}

// SQLValue maps a JSON value onto a driver argument. Arrays and objects are
// stored as JSON text.
func SQLValue(v jsonval.Value) any {
	switch v.Kind() {
	case jsonval.Null:
		return nil
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
	}
	return v.String()
}

// Insert writes obj into tableName and returns the columns written.
func (s *Store) Insert(ctx context.Context, tableName string, obj jsonval.Value) ([]string, error) {
	cols, err := s.columns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	plan, err := PlanInsert(cols, obj)
	if err != nil {
		return nil, err
	}
	if err := s.backend.InsertRow(ctx, tableName, plan.Columns, plan.Values); err != nil {
		customLog.Warnf("Storage: Failed INSERT into '%s': %v", tableName, err)
		return nil, backendErr(err)
	}
	customLog.Printf("Storage: Inserted row into '%s' (%s).", tableName, strings.Join(plan.Columns, ", "))
	return plan.Columns, nil
}

// ListTables returns table metadata, newest first.
func (s *Store) ListTables(ctx context.Context) ([]domain.TableMetadata, error) {
	tables, err := s.backend.TableMetadata(ctx)
	if err != nil {
		return nil, backendErr(err)
	}
	return tables, nil
}

// StoreResult persists a call result and returns its id.
func (s *Store) StoreResult(ctx context.Context, r domain.CallResult) (int64, error) {
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	if r.ResponseHeaders == nil {
		r.ResponseHeaders = map[string]string{}
	}
	id, err := s.backend.SaveResult(ctx, r)
	if err != nil {
		return 0, backendErr(err)
	}
	return id, nil
}

// RecentResults lists the newest results.
func (s *Store) RecentResults(ctx context.Context, limit int) ([]domain.ResultSummary, error) {
	if limit <= 0 {
		limit = core.DefaultLimit
	}
	rows, err := s.backend.RecentResults(ctx, limit)
	if err != nil {
		return nil, backendErr(err)
	}
	return rows, nil
}

// ResultDetails fetches one full result.
func (s *Store) ResultDetails(ctx context.Context, id int64) (*domain.CallResult, error) {
	r, err := s.backend.Result(ctx, id)
	if err != nil {
		return nil, backendErr(err)
	}
	return r, nil
}

// StoreSpec persists spec source text under name.
func (s *Store) StoreSpec(ctx context.Context, name, content string) (int64, error) {
	id, err := s.backend.SaveSpec(ctx, domain.SpecRecord{Timestamp: s.now(), SpecName: name, SpecContent: content})
	if err != nil {
		return 0, backendErr(err)
	}
	return id, nil
}

// ListSpecs lists stored specs newest first, without their content.
func (s *Store) ListSpecs(ctx context.Context) ([]domain.SpecRecord, error) {
	specs, err := s.backend.Specs(ctx)
	if err != nil {
		return nil, backendErr(err)
	}
	return specs, nil
}

// Spec returns the newest stored spec with the given name.
func (s *Store) Spec(ctx context.Context, name string) (*domain.SpecRecord, error) {
	spec, err := s.backend.Spec(ctx, name)
	if err != nil {
		return nil, backendErr(err)
	}
	return spec, nil
}

// SpecContent returns the source text of the newest spec stored under name.
func (s *Store) SpecContent(ctx context.Context, name string) (string, error) {
	spec, err := s.Spec(ctx, name)
	if err != nil {
		return "", err
	}
	return spec.SpecContent, nil
}

// StoreTemplate upserts a template by name.
func (s *Store) StoreTemplate(ctx context.Context, t domain.ConversionTemplate) error {
	if strings.TrimSpace(t.TemplateName) == "" {
		return fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}
	t.Timestamp = s.now()
	if t.CreatedBy == "" {
		t.CreatedBy = "manual"
	}
	if err := s.backend.UpsertTemplate(ctx, t); err != nil {
		customLog.Warnf("Storage: Failed to store template '%s': %v", t.TemplateName, err)
		return backendErr(err)
	}
	customLog.Printf("Storage: Template '%s' stored (author %s).", t.TemplateName, t.CreatedBy)
	return nil
}

// ListTemplates lists templates newest first.
func (s *Store) ListTemplates(ctx context.Context) ([]domain.ConversionTemplate, error) {
	ts, err := s.backend.Templates(ctx)
	if err != nil {
		return nil, backendErr(err)
	}
	return ts, nil
}

// Template fetches a template by name.
func (s *Store) Template(ctx context.Context, name string) (*domain.ConversionTemplate, error) {
	t, err := s.backend.Template(ctx, name)
	if err != nil {
		return nil, backendErr(err)
	}
	return t, nil
}

// Applier executes template logic against an input value.
type Applier interface {
	Apply(ctx context.Context, logic string, input jsonval.Value) (jsonval.Value, error)
}

// ApplyTemplate loads a stored template and runs its logic through the
// applier. When targetTable is non-empty the output is inserted; a failed
// transform writes nothing.
func (s *Store) ApplyTemplate(ctx context.Context, name string, input jsonval.Value, applier Applier, targetTable string) (jsonval.Value, error) {
	t, err := s.Template(ctx, name)
	if err != nil {
		return jsonval.Value{}, err
	}
	out, err := applier.Apply(ctx, t.ConversionLogic, input)
	if err != nil {
		customLog.Warnf("Storage: Template '%s' failed to apply: %v", name, err)
		return jsonval.Value{}, err
	}
	if targetTable != "" {
		if _, err := s.Insert(ctx, targetTable, out); err != nil {
			return out, err
		}
	}
	return out, nil
}
