// internal/storage/backend.go
package storage

import (
	"context"

	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
)

// Backend is a relational database the Store writes through. Implementations
// return raw driver errors (or ErrTableNotFound / ErrNotFound); the Store
// classifies them.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Init ensures the four metadata collections exist. Idempotent.
	Init(ctx context.Context) error
	// ExecDDL runs an operator supplied statement verbatim.
	ExecDDL(ctx context.Context, ddl string) error
	// Columns introspects a table's columns in native order.
	Columns(ctx context.Context, table string) ([]domain.ColumnInfo, error)
	// InsertRow inserts one row; columns and values are positionally paired.
	InsertRow(ctx context.Context, table string, columns []string, values []any) error
	// SelectRows reads up to limit rows matching every filter.
	SelectRows(ctx context.Context, table string, filters []Filter, limit int) ([]string, [][]any, error)

	SaveResult(ctx context.Context, r domain.CallResult) (int64, error)
	RecentResults(ctx context.Context, limit int) ([]domain.ResultSummary, error)
	Result(ctx context.Context, id int64) (*domain.CallResult, error)

	SaveSpec(ctx context.Context, s domain.SpecRecord) (int64, error)
	Specs(ctx context.Context) ([]domain.SpecRecord, error)
	Spec(ctx context.Context, name string) (*domain.SpecRecord, error)

	UpsertTableMetadata(ctx context.Context, m domain.TableMetadata) error
	LinkTableResult(ctx context.Context, table string, resultID int64) error
	TableMetadata(ctx context.Context) ([]domain.TableMetadata, error)

	UpsertTemplate(ctx context.Context, t domain.ConversionTemplate) error
	Templates(ctx context.Context) ([]domain.ConversionTemplate, error)
	Template(ctx context.Context, name string) (*domain.ConversionTemplate, error)

	Close() error
}
