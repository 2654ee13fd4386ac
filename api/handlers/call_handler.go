// api/handlers/call_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alvera-ai/interoperability-template-generator/api/models"
	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/core"
)

// CallHandler executes endpoint calls and serves recorded results.
type CallHandler struct {
	Session *app.Session
}

func NewCallHandler(session *app.Session) *CallHandler {
	return &CallHandler{Session: session}
}

// CallEndpoint runs a GET against the active spec and validates the body.
// Upstream failures are reported in the outcome, not as an HTTP error.
func (h *CallHandler) CallEndpoint(c *gin.Context) {
	var req models.CallRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.Session.CallEndpoint(c.Request.Context(), app.CallRequest{
		Path:       req.Path,
		Prompt:     req.Prompt,
		Params:     req.Params,
		Headers:    req.Headers,
		StatusCode: req.StatusCode,
		Record:     req.Record,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: GET %s -> %d (%s)", report.Outcome.URL, report.Outcome.StatusCode, report.Validation.Status)
	c.JSON(http.StatusOK, report)
}

func (h *CallHandler) Validate(c *gin.Context) {
	var req models.ValidateRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.Session.ValidateResponse(req.Value, req.Schema))
}

// RecentResults lists result summaries, newest first, honouring ?limit=.
func (h *CallHandler) RecentResults(c *gin.Context) {
	opts, err := core.ParseListQueryOptions(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", app.ErrInvalidRequest, err))
		return
	}
	results, err := h.Session.RecentResults(c.Request.Context(), opts.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *CallHandler) ResultDetails(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("result_id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(fmt.Errorf("%w: invalid result id in URL path", app.ErrInvalidRequest))
		return
	}
	result, err := h.Session.ResultDetails(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
