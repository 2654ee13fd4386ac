package conversion

import "errors"

var (
	// ErrRuntime wraps any failure while running template logic.
	ErrRuntime = errors.New("conversion runtime error")
	// ErrEmptyOutput is returned by TestRun when the logic produced nothing.
	ErrEmptyOutput = errors.New("no output data generated")

	ErrUnavailable  = errors.New("template generation not available, check API key configuration")
	ErrBadResponse  = errors.New("failed to extract valid conversion logic from the model response")
	ErrCollaborator = errors.New("error calling model API")
)
