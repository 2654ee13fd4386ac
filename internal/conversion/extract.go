package conversion

import (
	"regexp"
	"strings"
)

var (
	taggedFence = regexp.MustCompile("(?s)```(?:python|py|starlark|json)[ \t]*\r?\n(.*?)```")
	anyFence    = regexp.MustCompile("(?s)```[^\n`]*\r?\n?(.*?)```")
)

var codeMarkers = []string{InputBinding, OutputBinding, "if ", "for ", "="}

// ExtractProcedure pulls template logic out of a model reply. It tries, in
// order: a fenced block tagged as code, any fenced block, a bare rules
// array, a scan for code-like lines, and finally the whole reply when it
// mentions both bindings. It returns "" when nothing qualifies.
func ExtractProcedure(reply string) string {
	if m := taggedFence.FindStringSubmatch(reply); m != nil {
		if code := strings.TrimSpace(m[1]); code != "" {
			return code
		}
	}
	if m := anyFence.FindStringSubmatch(reply); m != nil {
		if code := strings.TrimSpace(m[1]); code != "" {
			return code
		}
	}

	trimmed := strings.TrimSpace(reply)
	if IsRules(trimmed) {
		return trimmed
	}
	if code := scanCodeLines(reply); code != "" {
		return code
	}
	if strings.Contains(reply, InputBinding) && strings.Contains(reply, OutputBinding) {
		return trimmed
	}
	return ""
}

// scanCodeLines keeps the run of lines starting at the first code-like line,
// plus any comments above it, and stops at the first line of prose.
func scanCodeLines(reply string) string {
	var (
		kept    []string
		inCode  bool
		hasCode bool
	)
	for _, line := range strings.Split(reply, "\n") {
		stripped := strings.TrimSpace(line)
		switch {
		case looksLikeCode(stripped):
			inCode, hasCode = true, true
			kept = append(kept, line)
		case strings.HasPrefix(stripped, "#"):
			kept = append(kept, line)
		case inCode && stripped == "":
			kept = append(kept, line)
		case inCode && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")):
			kept = append(kept, line)
		case inCode:
			return finishScan(kept, hasCode)
		}
	}
	return finishScan(kept, hasCode)
}

func finishScan(lines []string, hasCode bool) string {
	if !hasCode {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func looksLikeCode(stripped string) bool {
	for _, m := range codeMarkers {
		if strings.Contains(stripped, m) {
			return true
		}
	}
	return false
}
