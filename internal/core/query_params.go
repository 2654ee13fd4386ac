// internal/core/query_params.go
package core

import (
	"fmt"
	"net/url"
	"strconv"
)

// Default and limit constants for result listings
const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// ListQueryOptions holds parsed query parameters for list endpoints
type ListQueryOptions struct {
	Limit int
}

// ParseListQueryOptions extracts the 'limit' option from query parameters.
// Returns the parsed options and any validation error.
func ParseListQueryOptions(queryParams url.Values) (*ListQueryOptions, error) {
	opts := &ListQueryOptions{
		Limit: DefaultLimit,
	}

	if limitStr := queryParams.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be an integer")
		}
		if limit < 1 {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be at least 1")
		}
		if limit > MaxLimit {
			return nil, fmt.Errorf("invalid 'limit' parameter: maximum is %d", MaxLimit)
		}
		opts.Limit = limit
	}

	return opts, nil
}
