// internal/openapi/hints.go
package openapi

import "strings"

const hintPunctuation = `,.;:!?"'()[]`

// ExtractParameterHints guesses parameter values from free text: when a
// parameter name appears as a word, the following word is its value.
// It never fails; unmatched parameters are simply absent from the result.
func ExtractParameterHints(prompt string, ep Endpoint) map[string]string {
	hints := make(map[string]string)
	words := strings.Fields(prompt)
	if len(words) < 2 {
		return hints
	}
	for _, p := range ep.Parameters {
		name := strings.ToLower(p.Name)
		for i := 0; i < len(words)-1; i++ {
			if strings.ToLower(strings.Trim(words[i], hintPunctuation)) != name {
				continue
			}
			if value := strings.Trim(words[i+1], hintPunctuation); value != "" {
				hints[p.Name] = value
			}
			break
		}
	}
	return hints
}
