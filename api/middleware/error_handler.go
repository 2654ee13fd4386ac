// api/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/conversion"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
	"github.com/alvera-ai/interoperability-template-generator/internal/openapi"
	"github.com/alvera-ai/interoperability-template-generator/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// StatusFor maps an error returned by the session onto an HTTP status and
// the message shown to the client.
func StatusFor(err error) (int, string) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		for _, fe := range validationErrs {
			customLog.Printf("ErrorHandler: field %s failed on %s", fe.Field(), fe.Tag())
		}
		return http.StatusBadRequest, "Validation failed. Please check your input."

	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrTableNotFound),
		errors.Is(err, openapi.ErrEndpointAbsent):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, app.ErrNoSpec),
		errors.Is(err, storage.ErrConstraintViolation):
		return http.StatusConflict, err.Error()

	case errors.Is(err, openapi.ErrParse),
		errors.Is(err, openapi.ErrInvalid),
		errors.Is(err, openapi.ErrUnresolvedRef),
		errors.Is(err, storage.ErrNoTableName),
		errors.Is(err, storage.ErrNoMatchingColumns),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, app.ErrMissingParam),
		errors.Is(err, app.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, conversion.ErrRuntime):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.Is(err, conversion.ErrUnavailable):
		return http.StatusServiceUnavailable, err.Error()

	case errors.Is(err, conversion.ErrCollaborator),
		errors.Is(err, conversion.ErrBadResponse):
		return http.StatusBadGateway, err.Error()

	case errors.Is(err, storage.ErrBackend):
		return http.StatusInternalServerError, err.Error()
	}

	customLog.Warnf("ErrorHandler: unhandled error type %T: %v", err, err)
	return http.StatusInternalServerError, "An unexpected internal server error occurred."
}

// ErrorHandler creates a Gin middleware for centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Only the last error shapes the response.
		err := c.Errors.Last().Err
		status, message := StatusFor(err)
		customLog.WithFields(map[string]interface{}{
			"request_id": c.GetString(RequestIDKey),
			"status":     status,
		}).Warnf("ErrorHandler: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(status, gin.H{"error": message})
		} else {
			customLog.Warnln("ErrorHandler: response already written before handling error")
		}
	}
}
