// internal/storage/sqlite_backend.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Driver registration

	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

// SQLiteBackend stores everything in one SQLite file. Every operation opens
// its own connection and closes it before returning.
type SQLiteBackend struct {
	path string
}

// NewSQLiteBackend prepares a backend for the database file at path,
// creating the parent directory if needed.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			customLog.Warnf("Storage: Error creating data directory '%s': %v", dir, err)
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return &SQLiteBackend{path: path}, nil
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) Close() error { return nil }

// connect opens and pings a connection to the database file.
// The caller is responsible for closing the connection.
func (b *SQLiteBackend) connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", b.path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		customLog.Warnf("Storage: Failed to open DB file '%s': %v", b.path, err)
		return nil, fmt.Errorf("failed to access database storage: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		customLog.Warnf("Storage: Failed to ping DB '%s': %v", b.path, err)
		return nil, fmt.Errorf("failed to connect to database storage: %w", err)
	}
	return db, nil
}

// withDB runs fn on a scoped connection.
func (b *SQLiteBackend) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := b.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			customLog.Warnf("Storage: Error closing DB '%s': %v", b.path, cerr)
		}
	}()
	return fn(db)
}

var sqliteSchema = []struct {
	name string
	ddl  string
}{
	{"api_results", `
	CREATE TABLE IF NOT EXISTS api_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		user_prompt TEXT,
		api_endpoint TEXT,
		schema_used TEXT,
		response_data TEXT,
		status_code INTEGER,
		response_headers TEXT,
		created_table_name TEXT,
		create_table_command TEXT
	);`},
	{"openapi_specs", `
	CREATE TABLE IF NOT EXISTS openapi_specs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		spec_name TEXT,
		spec_content TEXT
	);`},
	{"created_tables_metadata", `
	CREATE TABLE IF NOT EXISTS created_tables_metadata (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		table_name TEXT UNIQUE,
		create_command TEXT,
		created_by_prompt TEXT,
		api_result_id INTEGER,
		FOREIGN KEY (api_result_id) REFERENCES api_results(id)
	);`},
	{"conversion_templates", `
	CREATE TABLE IF NOT EXISTS conversion_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		template_name TEXT UNIQUE,
		openapi_spec_name TEXT,
		api_response_schema TEXT,
		db_table_schema TEXT,
		conversion_logic TEXT,
		created_by TEXT
	);`},
}

// Init ensures the metadata tables exist.
func (b *SQLiteBackend) Init(ctx context.Context) error {
	customLog.Printf("Storage: Initializing SQLite database: %s", b.path)
	return b.withDB(ctx, func(db *sql.DB) error {
		for _, t := range sqliteSchema {
			if _, err := db.ExecContext(ctx, t.ddl); err != nil {
				customLog.Warnf("Storage: Failed to create %s table: %v", t.name, err)
				return fmt.Errorf("failed to ensure %s table: %w", t.name, err)
			}
		}
		return nil
	})
}

func (b *SQLiteBackend) ExecDDL(ctx context.Context, ddl string) error {
	return b.withDB(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, ddl)
		return err
	})
}

// Columns reads PRAGMA table_info for a table.
func (b *SQLiteBackend) Columns(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	var cols []domain.ColumnInfo
	err := b.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", quoteIdent(table)))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				cid       int
				name      string
				sqlType   string
				notnull   int
				dfltValue sql.NullString
				pk        int
			)
			if err := rows.Scan(&cid, &name, &sqlType, &notnull, &dfltValue, &pk); err != nil {
				return fmt.Errorf("failed to parse schema: %w", err)
			}
			col := domain.ColumnInfo{
				Position:   cid,
				Name:       name,
				Type:       strings.ToUpper(sqlType),
				Nullable:   notnull == 0,
				PrimaryKey: pk > 0,
			}
			if dfltValue.Valid {
				d := dfltValue.String
				col.Default = &d
			}
			cols = append(cols, col)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, ErrTableNotFound
	}
	return cols, nil
}

func (b *SQLiteBackend) InsertRow(ctx context.Context, table string, columns []string, values []any) error {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders(len(columns)))
	return b.withDB(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, stmt, values...)
		return err
	})
}

func (b *SQLiteBackend) SelectRows(ctx context.Context, table string, filters []Filter, limit int) ([]string, [][]any, error) {
	where, args := whereClause(filters, quoteIdent)
	stmt := fmt.Sprintf("SELECT * FROM %s%s LIMIT %d", quoteIdent(table), where, limit)
	var (
		columns []string
		values  [][]any
	)
	err := b.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		columns, values, err = scanRows(rows)
		return err
	})
	return columns, values, err
}

func (b *SQLiteBackend) SaveResult(ctx context.Context, r domain.CallResult) (int64, error) {
	body, err := r.ResponseData.MarshalJSON()
	if err != nil {
		return 0, err
	}
	headers, err := json.Marshal(r.ResponseHeaders)
	if err != nil {
		return 0, err
	}
	var id int64
	err = b.withDB(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO api_results
			(timestamp, user_prompt, api_endpoint, schema_used, response_data, status_code,
			 response_headers, created_table_name, create_table_command)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Timestamp, r.UserPrompt, r.APIEndpoint, r.SchemaUsed, string(body), r.StatusCode,
			string(headers), nullString(r.CreatedTableName), nullString(r.CreateTableCommand))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (b *SQLiteBackend) RecentResults(ctx context.Context, limit int) ([]domain.ResultSummary, error) {
	out := []domain.ResultSummary{}
	err := b.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, timestamp, user_prompt, api_endpoint, status_code
			FROM api_results ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s domain.ResultSummary
			var prompt, endpoint sql.NullString
			if err := rows.Scan(&s.ID, &s.Timestamp, &prompt, &endpoint, &s.StatusCode); err != nil {
				return err
			}
			s.UserPrompt, s.APIEndpoint = prompt.String, endpoint.String
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

func (b *SQLiteBackend) Result(ctx context.Context, id int64) (*domain.CallResult, error) {
	var r domain.CallResult
	err := b.withDB(ctx, func(db *sql.DB) error {
		var prompt, endpoint, schemaUsed, body, headers, tableName, tableCmd sql.NullString
		err := db.QueryRowContext(ctx, `
			SELECT id, timestamp, user_prompt, api_endpoint, schema_used, response_data,
			       status_code, response_headers, created_table_name, create_table_command
			FROM api_results WHERE id = ?`, id).
			Scan(&r.ID, &r.Timestamp, &prompt, &endpoint, &schemaUsed, &body,
				&r.StatusCode, &headers, &tableName, &tableCmd)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("result %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		r.UserPrompt, r.APIEndpoint, r.SchemaUsed = prompt.String, endpoint.String, schemaUsed.String
		r.CreatedTableName, r.CreateTableCommand = tableName.String, tableCmd.String
		return decodeResultPayload(&r, body.String, headers.String)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (b *SQLiteBackend) SaveSpec(ctx context.Context, s domain.SpecRecord) (int64, error) {
	var id int64
	err := b.withDB(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`INSERT INTO openapi_specs (timestamp, spec_name, spec_content) VALUES (?, ?, ?)`,
			s.Timestamp, s.SpecName, s.SpecContent)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (b *SQLiteBackend) Specs(ctx context.Context) ([]domain.SpecRecord, error) {
	out := []domain.SpecRecord{}
	err := b.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT id, timestamp, spec_name FROM openapi_specs ORDER BY timestamp DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s domain.SpecRecord
			if err := rows.Scan(&s.ID, &s.Timestamp, &s.SpecName); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

func (b *SQLiteBackend) Spec(ctx context.Context, name string) (*domain.SpecRecord, error) {
	var s domain.SpecRecord
	err := b.withDB(ctx, func(db *sql.DB) error {
		err := db.QueryRowContext(ctx, `
			SELECT id, timestamp, spec_name, spec_content FROM openapi_specs
			WHERE spec_name = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, name).
			Scan(&s.ID, &s.Timestamp, &s.SpecName, &s.SpecContent)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("spec '%s': %w", name, ErrNotFound)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (b *SQLiteBackend) UpsertTableMetadata(ctx context.Context, m domain.TableMetadata) error {
	return b.withDB(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO created_tables_metadata (timestamp, table_name, create_command, created_by_prompt, api_result_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(table_name) DO UPDATE SET
				timestamp = excluded.timestamp,
				create_command = excluded.create_command,
				created_by_prompt = excluded.created_by_prompt,
				api_result_id = excluded.api_result_id`,
			m.Timestamp, m.TableName, m.CreateCommand, m.CreatedByPrompt, m.APIResultID)
		return err
	})
}

func (b *SQLiteBackend) LinkTableResult(ctx context.Context, table string, resultID int64) error {
	return b.withDB(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE created_tables_metadata SET api_result_id = ? WHERE table_name = ?`, resultID, table)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("table metadata '%s': %w", table, ErrNotFound)
		}
		return nil
	})
}

func (b *SQLiteBackend) TableMetadata(ctx context.Context) ([]domain.TableMetadata, error) {
	out := []domain.TableMetadata{}
	err := b.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, timestamp, table_name, create_command, created_by_prompt, api_result_id
			FROM created_tables_metadata ORDER BY timestamp DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m domain.TableMetadata
			var cmd, prompt sql.NullString
			var resultID sql.NullInt64
			if err := rows.Scan(&m.ID, &m.Timestamp, &m.TableName, &cmd, &prompt, &resultID); err != nil {
				return err
			}
			m.CreateCommand, m.CreatedByPrompt = cmd.String, prompt.String
			if resultID.Valid {
				id := resultID.Int64
				m.APIResultID = &id
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	return out, err
}

func (b *SQLiteBackend) UpsertTemplate(ctx context.Context, t domain.ConversionTemplate) error {
	return b.withDB(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO conversion_templates
			(timestamp, template_name, openapi_spec_name, api_response_schema, db_table_schema, conversion_logic, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(template_name) DO UPDATE SET
				timestamp = excluded.timestamp,
				openapi_spec_name = excluded.openapi_spec_name,
				api_response_schema = excluded.api_response_schema,
				db_table_schema = excluded.db_table_schema,
				conversion_logic = excluded.conversion_logic,
				created_by = excluded.created_by`,
			t.Timestamp, t.TemplateName, t.OpenAPISpecName, t.APIResponseSchema, t.DBTableSchema,
			t.ConversionLogic, t.CreatedBy)
		return err
	})
}

const templateColumns = `id, timestamp, template_name, openapi_spec_name, api_response_schema,
	db_table_schema, conversion_logic, created_by`

func scanTemplate(scan func(dest ...any) error) (domain.ConversionTemplate, error) {
	var t domain.ConversionTemplate
	var spec, schema, ddl, logic, author sql.NullString
	err := scan(&t.ID, &t.Timestamp, &t.TemplateName, &spec, &schema, &ddl, &logic, &author)
	t.OpenAPISpecName, t.APIResponseSchema, t.DBTableSchema = spec.String, schema.String, ddl.String
	t.ConversionLogic, t.CreatedBy = logic.String, author.String
	return t, err
}

func (b *SQLiteBackend) Templates(ctx context.Context) ([]domain.ConversionTemplate, error) {
	out := []domain.ConversionTemplate{}
	err := b.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT `+templateColumns+` FROM conversion_templates ORDER BY timestamp DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTemplate(rows.Scan)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

func (b *SQLiteBackend) Template(ctx context.Context, name string) (*domain.ConversionTemplate, error) {
	var t domain.ConversionTemplate
	err := b.withDB(ctx, func(db *sql.DB) error {
		var err error
		t, err = scanTemplate(db.QueryRowContext(ctx,
			`SELECT `+templateColumns+` FROM conversion_templates WHERE template_name = ?`, name).Scan)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("template '%s': %w", name, ErrNotFound)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// decodeResultPayload restores the JSON columns of a stored result.
func decodeResultPayload(r *domain.CallResult, body, headers string) error {
	r.ResponseData = jsonval.NullValue()
	if body != "" {
		v, err := jsonval.ParseString(body)
		if err != nil {
			return fmt.Errorf("corrupt response_data for result %d: %w", r.ID, err)
		}
		r.ResponseData = v
	}
	r.ResponseHeaders = map[string]string{}
	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &r.ResponseHeaders); err != nil {
			return fmt.Errorf("corrupt response_headers for result %d: %w", r.ID, err)
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
