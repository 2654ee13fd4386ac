// internal/openapi/errors.go
package openapi

import "errors"

// Spec loading and resolution errors. Callers match them with errors.Is;
// the wrapped message carries the underlying diagnostic verbatim.
var (
	ErrParse          = errors.New("spec parse error")
	ErrInvalid        = errors.New("invalid OpenAPI document")
	ErrUnresolvedRef  = errors.New("unresolved $ref")
	ErrEndpointAbsent = errors.New("endpoint not found")
)
