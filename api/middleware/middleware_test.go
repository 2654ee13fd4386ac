package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/conversion"
	"github.com/alvera-ai/interoperability-template-generator/internal/openapi"
	"github.com/alvera-ai/interoperability-template-generator/internal/storage"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad yaml", openapi.ErrParse), http.StatusBadRequest},
		{fmt.Errorf("%w: no paths", openapi.ErrInvalid), http.StatusBadRequest},
		{storage.ErrNoTableName, http.StatusBadRequest},
		{storage.ErrNoMatchingColumns, http.StatusBadRequest},
		{fmt.Errorf("%w: id", app.ErrMissingParam), http.StatusBadRequest},
		{fmt.Errorf("%w: GET /x", openapi.ErrEndpointAbsent), http.StatusNotFound},
		{fmt.Errorf("template 'x' %w", storage.ErrNotFound), http.StatusNotFound},
		{storage.ErrTableNotFound, http.StatusNotFound},
		{app.ErrNoSpec, http.StatusConflict},
		{fmt.Errorf("%w: division by zero", conversion.ErrRuntime), http.StatusUnprocessableEntity},
		{conversion.ErrUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: 529 overloaded", conversion.ErrCollaborator), http.StatusBadGateway},
		{fmt.Errorf("%w: near \"CREAT\": syntax error", storage.ErrBackend), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, msg := StatusFor(tt.err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.err.Error(), msg)
		})
	}

	status, msg := StatusFor(errors.New("kaboom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, msg, "kaboom")
}

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestErrorHandlerWritesJSON(t *testing.T) {
	r := newTestEngine(RequestID(), ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("%w: GET /pets", openapi.ErrEndpointAbsent))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"endpoint not found: GET /pets"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestIDReusesCallerValue(t *testing.T) {
	r := newTestEngine(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-123", w.Body.String())
	assert.Equal(t, "trace-123", w.Header().Get(RequestIDHeader))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))

	assert.True(t, NewRateLimiter(0, time.Minute).Allow("x"))
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newTestEngine(RateLimitMiddleware(NewRateLimiter(1, time.Minute)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			require.Equal(t, "60", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
