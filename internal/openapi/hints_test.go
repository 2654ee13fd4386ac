// internal/openapi/hints_test.go
package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractParameterHints(t *testing.T) {
	ep := Endpoint{
		Path: "/users/{userId}",
		Parameters: []Parameter{
			{Name: "userId", In: "path"},
			{Name: "limit", In: "query"},
			{Name: "format", In: "query"},
		},
	}

	testCases := []struct {
		name   string
		prompt string
		want   map[string]string
	}{
		{"both present", "fetch userid ABC123 with limit 10", map[string]string{"userId": "ABC123", "limit": "10"}},
		{"punctuation trimmed", "Get user, userId: 42. limit=5", map[string]string{"userId": "42"}},
		{"name is last word", "show me the limit", map[string]string{}},
		{"substring only", "formatting is hard please", map[string]string{}},
		{"empty prompt", "", map[string]string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractParameterHints(tc.prompt, ep))
		})
	}
}
