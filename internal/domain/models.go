// internal/domain/models.go
package domain

import (
	"time"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

// CallResult is one executed request as persisted in api_results.
type CallResult struct {
	ID                 int64             `json:"id"`
	Timestamp          time.Time         `json:"timestamp"`
	UserPrompt         string            `json:"user_prompt"`
	APIEndpoint        string            `json:"api_endpoint"`
	SchemaUsed         string            `json:"schema_used"`
	ResponseData       jsonval.Value     `json:"response_data"`
	StatusCode         int               `json:"status_code"`
	ResponseHeaders    map[string]string `json:"response_headers"`
	CreatedTableName   string            `json:"created_table_name,omitempty"`
	CreateTableCommand string            `json:"create_table_command,omitempty"`
}

// ResultSummary is the list projection of a CallResult.
type ResultSummary struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	UserPrompt  string    `json:"user_prompt"`
	APIEndpoint string    `json:"api_endpoint"`
	StatusCode  int       `json:"status_code"`
}

// SpecRecord is a persisted OpenAPI document.
type SpecRecord struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	SpecName    string    `json:"spec_name"`
	SpecContent string    `json:"spec_content,omitempty"`
}

// TableMetadata records a table created through the tool.
type TableMetadata struct {
	ID              int64     `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	TableName       string    `json:"table_name"`
	CreateCommand   string    `json:"create_command"`
	CreatedByPrompt string    `json:"created_by_prompt"`
	APIResultID     *int64    `json:"api_result_id,omitempty"`
}

// ConversionTemplate is a named transformation from an API response shape
// onto a table's columns.
type ConversionTemplate struct {
	ID                int64     `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	TemplateName      string    `json:"template_name"`
	OpenAPISpecName   string    `json:"openapi_spec_name"`
	APIResponseSchema string    `json:"api_response_schema"`
	DBTableSchema     string    `json:"db_table_schema"`
	ConversionLogic   string    `json:"conversion_logic"`
	CreatedBy         string    `json:"created_by"`
}

// ColumnInfo describes one live table column.
type ColumnInfo struct {
	Position   int     `json:"position"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key"`
}

// TableStructure is the introspected shape of a table.
type TableStructure struct {
	TableName string       `json:"table_name"`
	Columns   []ColumnInfo `json:"columns"`
}

// ColumnNames lists column names in native order.
func (t TableStructure) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}
