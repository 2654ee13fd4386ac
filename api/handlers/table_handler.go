// api/handlers/table_handler.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alvera-ai/interoperability-template-generator/api/models"
	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/core"
)

// TableHandler holds dependencies for table management handlers.
type TableHandler struct {
	Session *app.Session
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(session *app.Session) *TableHandler {
	return &TableHandler{Session: session}
}

func tableParam(c *gin.Context) (string, bool) {
	name := c.Param("table_name")
	if !core.IsValidIdentifier(name) {
		_ = c.Error(fmt.Errorf("%w: invalid table name in URL path", app.ErrInvalidRequest))
		return "", false
	}
	return name, true
}

// CreateTable runs a CREATE TABLE statement and records it, optionally
// linked to a stored call result.
func (h *TableHandler) CreateTable(c *gin.Context) {
	var req models.CreateTableRequest
	if !bindJSON(c, &req) {
		return
	}

	name, err := h.Session.CreateTable(c.Request.Context(), req.CreateStatement, req.Reason, req.ResultID)
	if err != nil {
		customLog.Warnf("Handler: Error creating table: %v", err)
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: Created table '%s'", name)
	c.JSON(http.StatusCreated, gin.H{"message": "Table created successfully", "table_name": name})
}

// ListTables handles requests to list tables created through the tool.
func (h *TableHandler) ListTables(c *gin.Context) {
	tables, err := h.Session.ListTables(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: Retrieved %d table(s)", len(tables))
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

func (h *TableHandler) TableStructure(c *gin.Context) {
	name, ok := tableParam(c)
	if !ok {
		return
	}
	structure, err := h.Session.TableStructure(c.Request.Context(), name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, structure)
}

// InsertRecords inserts {"data": {...}} or {"data": [{...}, ...]}.
func (h *TableHandler) InsertRecords(c *gin.Context) {
	name, ok := tableParam(c)
	if !ok {
		return
	}
	var req models.InsertRecordsRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Data.IsNull() {
		_ = c.Error(fmt.Errorf("%w: 'data' must be an object or an array of objects", app.ErrInvalidRequest))
		return
	}

	written, err := h.Session.InsertJSON(c.Request.Context(), name, req.Data)
	if err != nil {
		customLog.Warnf("Handler: Insert into '%s' stopped after %d row(s): %v", name, len(written), err)
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"table_name": name, "rows_inserted": len(written), "columns": written})
}

// ListRecords returns rows of a table. Query parameters other than limit
// are equality filters on columns.
func (h *TableHandler) ListRecords(c *gin.Context) {
	name, ok := tableParam(c)
	if !ok {
		return
	}

	query := c.Request.URL.Query()
	opts, err := core.ParseListQueryOptions(query)
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", app.ErrInvalidRequest, err))
		return
	}
	filters := make(map[string]string)
	for key, values := range query {
		if key == "limit" || len(values) == 0 {
			continue
		}
		filters[key] = values[0]
	}

	rows, err := h.Session.ListRows(c.Request.Context(), name, filters, opts.Limit)
	if err != nil {
		customLog.Warnf("Handler: Error listing records of '%s': %v", name, err)
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table_name": name, "records": rows})
}
