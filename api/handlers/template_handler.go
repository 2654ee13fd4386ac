// api/handlers/template_handler.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alvera-ai/interoperability-template-generator/api/models"
	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
)

// TemplateHandler serves conversion template generation, storage and
// application.
type TemplateHandler struct {
	Session *app.Session
}

func NewTemplateHandler(session *app.Session) *TemplateHandler {
	return &TemplateHandler{Session: session}
}

func toTemplateRequest(req models.TemplateRequest) app.TemplateRequest {
	return app.TemplateRequest{
		TemplateName: req.TemplateName,
		SpecName:     req.SpecName,
		Path:         req.Path,
		StatusCode:   req.StatusCode,
		Schema:       req.Schema,
		DDL:          req.DBTableSchema,
		TableName:    req.TableName,
		Save:         req.Save,
	}
}

func (h *TemplateHandler) draft(c *gin.Context, run func(context.Context, app.TemplateRequest) (*app.TemplateDraft, error)) {
	var req models.TemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	draft, err := run(c.Request.Context(), toTemplateRequest(req))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if draft.TestError != "" {
		customLog.Warnf("Handler: Template test run failed: %s", draft.TestError)
	}
	c.JSON(http.StatusOK, draft)
}

// GenerateTemplate asks the model for conversion logic.
func (h *TemplateHandler) GenerateTemplate(c *gin.Context) {
	h.draft(c, h.Session.GenerateTemplate)
}

// ProposeMapping builds name-matched mapping rules without a model.
func (h *TemplateHandler) ProposeMapping(c *gin.Context) {
	h.draft(c, h.Session.ProposeMapping)
}

func (h *TemplateHandler) StoreTemplate(c *gin.Context) {
	var req models.StoreTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.Session.StoreTemplate(c.Request.Context(), domain.ConversionTemplate{
		TemplateName:      req.TemplateName,
		OpenAPISpecName:   req.OpenAPISpecName,
		APIResponseSchema: req.APIResponseSchema,
		DBTableSchema:     req.DBTableSchema,
		ConversionLogic:   req.ConversionLogic,
		CreatedBy:         app.AuthorManual,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Template saved", "template_name": req.TemplateName})
}

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.Session.ListTemplates(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tpl, err := h.Session.Template(c.Request.Context(), c.Param("template_name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// ApplyTemplate runs a stored template on the input, inserting the output
// when target_table is set.
func (h *TemplateHandler) ApplyTemplate(c *gin.Context) {
	var req models.ApplyTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	name := c.Param("template_name")
	out, err := h.Session.ApplyTemplate(c.Request.Context(), name, req.Input, req.TargetTable)
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp := gin.H{"template_name": name, "output": out, "inserted": req.TargetTable != ""}
	if req.TargetTable != "" {
		resp["target_table"] = req.TargetTable
	}
	c.JSON(http.StatusOK, resp)
}
