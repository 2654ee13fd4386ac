// internal/storage/gorm_models.go
package storage

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
)

type apiResultRow struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement"`
	Timestamp          time.Time      `gorm:"column:timestamp;index"`
	UserPrompt         string         `gorm:"type:text"`
	APIEndpoint        string         `gorm:"column:api_endpoint;type:text"`
	SchemaUsed         string         `gorm:"type:text"`
	ResponseData       datatypes.JSON `gorm:"column:response_data"`
	StatusCode         int
	ResponseHeaders    datatypes.JSON `gorm:"column:response_headers"`
	CreatedTableName   *string        `gorm:"type:text"`
	CreateTableCommand *string        `gorm:"type:text"`
}

func (apiResultRow) TableName() string { return "api_results" }

type specRow struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp   time.Time `gorm:"column:timestamp"`
	SpecName    string    `gorm:"size:255;index"`
	SpecContent string    `gorm:"type:text"`
}

func (specRow) TableName() string { return "openapi_specs" }

type tableMetadataRow struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp       time.Time `gorm:"column:timestamp"`
	Name            string    `gorm:"column:table_name;size:255;uniqueIndex"`
	CreateCommand   string    `gorm:"type:text"`
	CreatedByPrompt string    `gorm:"type:text"`
	APIResultID     *int64    `gorm:"column:api_result_id"`
}

func (tableMetadataRow) TableName() string { return "created_tables_metadata" }

type templateRow struct {
	ID                int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp         time.Time `gorm:"column:timestamp"`
	TemplateName      string    `gorm:"size:255;uniqueIndex"`
	OpenAPISpecName   string    `gorm:"column:openapi_spec_name;type:text"`
	APIResponseSchema string    `gorm:"column:api_response_schema;type:text"`
	DBTableSchema     string    `gorm:"column:db_table_schema;type:text"`
	ConversionLogic   string    `gorm:"type:text"`
	CreatedBy         string    `gorm:"size:255"`
}

func (templateRow) TableName() string { return "conversion_templates" }

func newAPIResultRow(r domain.CallResult) (apiResultRow, error) {
	body, err := r.ResponseData.MarshalJSON()
	if err != nil {
		return apiResultRow{}, err
	}
	headers, err := json.Marshal(r.ResponseHeaders)
	if err != nil {
		return apiResultRow{}, err
	}
	row := apiResultRow{
		Timestamp:       r.Timestamp,
		UserPrompt:      r.UserPrompt,
		APIEndpoint:     r.APIEndpoint,
		SchemaUsed:      r.SchemaUsed,
		ResponseData:    datatypes.JSON(body),
		StatusCode:      r.StatusCode,
		ResponseHeaders: datatypes.JSON(headers),
	}
	if r.CreatedTableName != "" {
		row.CreatedTableName = &r.CreatedTableName
	}
	if r.CreateTableCommand != "" {
		row.CreateTableCommand = &r.CreateTableCommand
	}
	return row, nil
}

func (row apiResultRow) toDomain() (*domain.CallResult, error) {
	r := &domain.CallResult{
		ID:          row.ID,
		Timestamp:   row.Timestamp,
		UserPrompt:  row.UserPrompt,
		APIEndpoint: row.APIEndpoint,
		SchemaUsed:  row.SchemaUsed,
		StatusCode:  row.StatusCode,
	}
	if row.CreatedTableName != nil {
		r.CreatedTableName = *row.CreatedTableName
	}
	if row.CreateTableCommand != nil {
		r.CreateTableCommand = *row.CreateTableCommand
	}
	if err := decodeResultPayload(r, string(row.ResponseData), string(row.ResponseHeaders)); err != nil {
		return nil, err
	}
	return r, nil
}

func (row apiResultRow) summary() domain.ResultSummary {
	return domain.ResultSummary{
		ID:          row.ID,
		Timestamp:   row.Timestamp,
		UserPrompt:  row.UserPrompt,
		APIEndpoint: row.APIEndpoint,
		StatusCode:  row.StatusCode,
	}
}

func (row tableMetadataRow) toDomain() domain.TableMetadata {
	return domain.TableMetadata{
		ID:              row.ID,
		Timestamp:       row.Timestamp,
		TableName:       row.Name,
		CreateCommand:   row.CreateCommand,
		CreatedByPrompt: row.CreatedByPrompt,
		APIResultID:     row.APIResultID,
	}
}

func (row templateRow) toDomain() domain.ConversionTemplate {
	return domain.ConversionTemplate{
		ID:                row.ID,
		Timestamp:         row.Timestamp,
		TemplateName:      row.TemplateName,
		OpenAPISpecName:   row.OpenAPISpecName,
		APIResponseSchema: row.APIResponseSchema,
		DBTableSchema:     row.DBTableSchema,
		ConversionLogic:   row.ConversionLogic,
		CreatedBy:         row.CreatedBy,
	}
}
