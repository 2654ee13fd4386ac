// api/handlers/spec_handler.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/alvera-ai/interoperability-template-generator/api/models"
	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
	"github.com/alvera-ai/interoperability-template-generator/internal/openapi"
)

var (
	customLog = logger.NewLogger()
)

// maxSpecUpload bounds multipart spec uploads.
const maxSpecUpload = 10 << 20

// bindJSON binds the request body and attaches any failure for the
// ErrorHandler. Validation failures keep their validator type.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		_ = c.Error(err)
	} else {
		_ = c.Error(fmt.Errorf("%w: invalid JSON request body: %v", app.ErrInvalidRequest, err))
	}
	return false
}

// SpecHandler serves spec loading and endpoint inspection.
type SpecHandler struct {
	Session *app.Session
}

func NewSpecHandler(session *app.Session) *SpecHandler {
	return &SpecHandler{Session: session}
}

// LoadSpec accepts either a JSON body or a multipart "file" upload.
func (h *SpecHandler) LoadSpec(c *gin.Context) {
	var (
		content []byte
		format  string
		name    string
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			_ = c.Error(fmt.Errorf("%w: a 'file' form field is required: %v", app.ErrInvalidRequest, err))
			return
		}
		f, err := fh.Open()
		if err != nil {
			_ = c.Error(err)
			return
		}
		defer f.Close()
		content, err = io.ReadAll(io.LimitReader(f, maxSpecUpload))
		if err != nil {
			_ = c.Error(err)
			return
		}
		format = string(openapi.FormatFromFilename(fh.Filename, content))
		name = c.PostForm("name")
	} else {
		var req models.LoadSpecRequest
		if !bindJSON(c, &req) {
			return
		}
		content, format, name = []byte(req.Content), req.Format, req.Name
	}

	summary, err := h.Session.LoadSpec(c.Request.Context(), content, format, name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: Loaded spec '%s' with %d endpoint(s)", summary.Name, summary.EndpointCount)
	c.JSON(http.StatusCreated, summary)
}

func (h *SpecHandler) ListSpecs(c *gin.Context) {
	specs, err := h.Session.ListSpecs(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"specs": specs})
}

func (h *SpecHandler) ActiveSpec(c *gin.Context) {
	summary, err := h.Session.ActiveSpec()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetSpec returns the stored document text of one spec.
func (h *SpecHandler) GetSpec(c *gin.Context) {
	name := c.Param("spec_name")
	content, err := h.Session.SpecContent(c.Request.Context(), name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spec_name": name, "spec_content": content})
}

func (h *SpecHandler) ActivateSpec(c *gin.Context) {
	summary, err := h.Session.ActivateStoredSpec(c.Request.Context(), c.Param("spec_name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *SpecHandler) ListEndpoints(c *gin.Context) {
	endpoints, err := h.Session.ListEndpoints()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints})
}

// EndpointSchema resolves the response schema of ?path= for ?status_code=.
func (h *SpecHandler) EndpointSchema(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		_ = c.Error(fmt.Errorf("%w: the 'path' query parameter is required", app.ErrInvalidRequest))
		return
	}
	code, schema, found, err := h.Session.EndpointSchema(path, c.Query("status_code"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"path": path, "status_code": code, "found": false, "schema": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "status_code": code, "found": true, "schema": schema})
}
