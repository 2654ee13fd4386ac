// internal/storage/gorm_backend.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
)

// GormBackend stores everything through one pooled gorm handle. It serves
// the client/server databases (postgres, mysql) and any other dialector.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend opens a pooled connection with the given dialector.
func NewGormBackend(dialector gorm.Dialector) (*GormBackend, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		customLog.Warnf("Storage: Failed to open %s database: %v", dialector.Name(), err)
		return nil, fmt.Errorf("failed to connect to database storage: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return &GormBackend{db: db}, nil
}

func (g *GormBackend) Name() string { return g.db.Dialector.Name() }

func (g *GormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormBackend) Init(ctx context.Context) error {
	customLog.Printf("Storage: Migrating metadata tables on %s.", g.Name())
	return g.db.WithContext(ctx).AutoMigrate(
		&apiResultRow{}, &specRow{}, &tableMetadataRow{}, &templateRow{})
}

// ExecDDL runs the statement on the raw pool so gorm never rewrites
// placeholders inside operator SQL.
func (g *GormBackend) ExecDDL(ctx context.Context, ddl string) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	_, err = sqlDB.ExecContext(ctx, ddl)
	return err
}

// Columns introspects a table through the migrator. Column order comes from
// the result set of an empty SELECT, which follows the table definition.
func (g *GormBackend) Columns(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	db := g.db.WithContext(ctx)
	migrator := db.Migrator()
	if !migrator.HasTable(table) {
		return nil, ErrTableNotFound
	}

	types, err := migrator.ColumnTypes(table)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]gorm.ColumnType, len(types))
	for _, ct := range types {
		byName[ct.Name()] = ct
	}

	rows, err := db.Raw(fmt.Sprintf("SELECT * FROM %s WHERE 1=0", g.quote(table))).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	order, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	cols := make([]domain.ColumnInfo, 0, len(order))
	for i, name := range order {
		col := domain.ColumnInfo{Position: i, Name: name, Nullable: true}
		if ct, ok := byName[name]; ok {
			col.Type = strings.ToUpper(ct.DatabaseTypeName())
			if nullable, ok := ct.Nullable(); ok {
				col.Nullable = nullable
			}
			if pk, ok := ct.PrimaryKey(); ok {
				col.PrimaryKey = pk
			}
			if def, ok := ct.DefaultValue(); ok && def != "" {
				col.Default = &def
			}
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func (g *GormBackend) quote(name string) string {
	var b strings.Builder
	g.db.Dialector.QuoteTo(&b, name)
	return b.String()
}

func (g *GormBackend) InsertRow(ctx context.Context, table string, columns []string, values []any) error {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = g.quote(c)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		g.quote(table), strings.Join(quoted, ", "), placeholders(len(columns)))
	return g.db.WithContext(ctx).Exec(stmt, values...).Error
}

func (g *GormBackend) SelectRows(ctx context.Context, table string, filters []Filter, limit int) ([]string, [][]any, error) {
	where, args := whereClause(filters, g.quote)
	stmt := fmt.Sprintf("SELECT * FROM %s%s LIMIT %d", g.quote(table), where, limit)
	rows, err := g.db.WithContext(ctx).Raw(stmt, args...).Rows()
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

var newestFirst = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "timestamp"}, Desc: true},
	{Column: clause.Column{Name: "id"}, Desc: true},
}}

func (g *GormBackend) SaveResult(ctx context.Context, r domain.CallResult) (int64, error) {
	row, err := newAPIResultRow(r)
	if err != nil {
		return 0, err
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (g *GormBackend) RecentResults(ctx context.Context, limit int) ([]domain.ResultSummary, error) {
	var rows []apiResultRow
	err := g.db.WithContext(ctx).
		Select("id", "timestamp", "user_prompt", "api_endpoint", "status_code").
		Clauses(newestFirst).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ResultSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.summary())
	}
	return out, nil
}

func (g *GormBackend) Result(ctx context.Context, id int64) (*domain.CallResult, error) {
	var row apiResultRow
	err := g.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("result %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (g *GormBackend) SaveSpec(ctx context.Context, s domain.SpecRecord) (int64, error) {
	row := specRow{Timestamp: s.Timestamp, SpecName: s.SpecName, SpecContent: s.SpecContent}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (g *GormBackend) Specs(ctx context.Context) ([]domain.SpecRecord, error) {
	var rows []specRow
	err := g.db.WithContext(ctx).Select("id", "timestamp", "spec_name").
		Clauses(newestFirst).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.SpecRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SpecRecord{ID: row.ID, Timestamp: row.Timestamp, SpecName: row.SpecName})
	}
	return out, nil
}

func (g *GormBackend) Spec(ctx context.Context, name string) (*domain.SpecRecord, error) {
	var row specRow
	err := g.db.WithContext(ctx).Where("spec_name = ?", name).Clauses(newestFirst).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("spec '%s': %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &domain.SpecRecord{ID: row.ID, Timestamp: row.Timestamp, SpecName: row.SpecName, SpecContent: row.SpecContent}, nil
}

func (g *GormBackend) UpsertTableMetadata(ctx context.Context, m domain.TableMetadata) error {
	row := tableMetadataRow{
		Timestamp:       m.Timestamp,
		Name:            m.TableName,
		CreateCommand:   m.CreateCommand,
		CreatedByPrompt: m.CreatedByPrompt,
		APIResultID:     m.APIResultID,
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "table_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp", "create_command", "created_by_prompt", "api_result_id"}),
	}).Create(&row).Error
}

func (g *GormBackend) LinkTableResult(ctx context.Context, table string, resultID int64) error {
	res := g.db.WithContext(ctx).Model(&tableMetadataRow{}).
		Where("table_name = ?", table).Update("api_result_id", resultID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("table metadata '%s': %w", table, ErrNotFound)
	}
	return nil
}

func (g *GormBackend) TableMetadata(ctx context.Context) ([]domain.TableMetadata, error) {
	var rows []tableMetadataRow
	if err := g.db.WithContext(ctx).Clauses(newestFirst).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TableMetadata, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (g *GormBackend) UpsertTemplate(ctx context.Context, t domain.ConversionTemplate) error {
	row := templateRow{
		Timestamp:         t.Timestamp,
		TemplateName:      t.TemplateName,
		OpenAPISpecName:   t.OpenAPISpecName,
		APIResponseSchema: t.APIResponseSchema,
		DBTableSchema:     t.DBTableSchema,
		ConversionLogic:   t.ConversionLogic,
		CreatedBy:         t.CreatedBy,
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "template_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"timestamp", "openapi_spec_name", "api_response_schema",
			"db_table_schema", "conversion_logic", "created_by",
		}),
	}).Create(&row).Error
}

func (g *GormBackend) Templates(ctx context.Context) ([]domain.ConversionTemplate, error) {
	var rows []templateRow
	if err := g.db.WithContext(ctx).Clauses(newestFirst).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ConversionTemplate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (g *GormBackend) Template(ctx context.Context, name string) (*domain.ConversionTemplate, error) {
	var row templateRow
	err := g.db.WithContext(ctx).Where("template_name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("template '%s': %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	t := row.toDomain()
	return &t, nil
}
