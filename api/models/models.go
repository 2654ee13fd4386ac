// api/models/models.go
package models

import "github.com/alvera-ai/interoperability-template-generator/internal/jsonval"

// --- Spec Request Structs ---

// LoadSpecRequest carries an OpenAPI document as text. Multipart uploads
// use the "file" form field instead.
type LoadSpecRequest struct {
	Name    string `json:"name" binding:"omitempty,max=255"`
	Format  string `json:"format" binding:"omitempty,oneof=json yaml yml"`
	Content string `json:"content" binding:"required"`
}

// --- Call Request Structs ---

// CallRequest executes one GET endpoint of the active spec.
type CallRequest struct {
	Path       string            `json:"path" binding:"required,startswith=/"`
	Prompt     string            `json:"prompt"`
	Params     map[string]string `json:"params"`
	Headers    map[string]string `json:"headers"`
	StatusCode string            `json:"status_code" binding:"omitempty,max=7"`
	Record     bool              `json:"record"`
}

// ValidateRequest checks an arbitrary value against a schema.
type ValidateRequest struct {
	Value  jsonval.Value `json:"value"`
	Schema jsonval.Value `json:"schema"`
}

// --- Table Request Structs ---

// CreateTableRequest runs a CREATE TABLE statement.
type CreateTableRequest struct {
	CreateStatement string `json:"create_statement" binding:"required"`
	Reason          string `json:"reason"`
	ResultID        *int64 `json:"api_result_id" binding:"omitempty,gt=0"`
}

// InsertRecordsRequest inserts an object or an array of objects.
type InsertRecordsRequest struct {
	Data jsonval.Value `json:"data"`
}

// --- Template Request Structs ---

// TemplateRequest drives generation and proposal. Either Schema or Path
// must be given, and either DBTableSchema or TableName.
type TemplateRequest struct {
	TemplateName  string        `json:"template_name" binding:"omitempty,max=255"`
	SpecName      string        `json:"openapi_spec_name"`
	Path          string        `json:"path" binding:"omitempty,startswith=/"`
	StatusCode    string        `json:"status_code"`
	Schema        jsonval.Value `json:"api_response_schema"`
	DBTableSchema string        `json:"db_table_schema"`
	TableName     string        `json:"table_name"`
	Save          bool          `json:"save"`
}

// StoreTemplateRequest saves hand-written conversion logic.
type StoreTemplateRequest struct {
	TemplateName      string `json:"template_name" binding:"required,max=255"`
	OpenAPISpecName   string `json:"openapi_spec_name"`
	APIResponseSchema string `json:"api_response_schema"`
	DBTableSchema     string `json:"db_table_schema"`
	ConversionLogic   string `json:"conversion_logic" binding:"required"`
}

// ApplyTemplateRequest runs a stored template, optionally inserting the
// output into TargetTable.
type ApplyTemplateRequest struct {
	Input       jsonval.Value `json:"input"`
	TargetTable string        `json:"target_table"`
}
