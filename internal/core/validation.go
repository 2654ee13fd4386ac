// internal/core/validation.go
package core

import (
	"regexp"
	"strings"
)

// Regular expression for valid table/column names (alphanumeric + underscore)
var nameValidationRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Matches the table identifier of a CREATE TABLE statement, optionally quoted
// and optionally schema-qualified (main.t); the qualifier is not captured.
var createTableRegex = regexp.MustCompile("(?i)CREATE\\s+(?:TEMP(?:ORARY)?\\s+)?TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?(?:[\"`\\[]?\\w+[\"`\\]]?\\.)?[\"`\\[]?(\\w+)")

// Affinity is the storage class a declared column type maps onto.
type Affinity string

const (
	AffinityText    Affinity = "TEXT"
	AffinityInteger Affinity = "INTEGER"
	AffinityReal    Affinity = "REAL"
	AffinityBoolean Affinity = "BOOLEAN"
	AffinityBlob    Affinity = "BLOB"
	AffinityNumeric Affinity = "NUMERIC"
	AffinityJSON    Affinity = "JSON"
)

// IsValidIdentifier checks if a string is a valid identifier (e.g., table_name, column_name)
// Applies basic format and length checks.
func IsValidIdentifier(name string) bool {
	return nameValidationRegex.MatchString(name) && len(name) > 0 && len(name) <= 64
}

// ExtractTableName returns the table identifier of a CREATE TABLE statement.
func ExtractTableName(ddl string) (string, bool) {
	m := createTableRegex.FindStringSubmatch(ddl)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// TypeAffinity classifies a declared SQL column type, following SQLite's
// affinity rules extended with the common server-database spellings.
func TypeAffinity(colType string) Affinity {
	upperType := strings.ToUpper(strings.TrimSpace(colType))
	switch {
	case upperType == "":
		return AffinityBlob
	case strings.Contains(upperType, "BOOL"):
		return AffinityBoolean
	case strings.Contains(upperType, "JSON"):
		return AffinityJSON
	case strings.Contains(upperType, "INT"), upperType == "SERIAL", upperType == "BIGSERIAL":
		return AffinityInteger
	case strings.Contains(upperType, "CHAR"), strings.Contains(upperType, "CLOB"),
		strings.Contains(upperType, "TEXT"), strings.Contains(upperType, "UUID"):
		return AffinityText
	case strings.Contains(upperType, "BLOB"), strings.Contains(upperType, "BYTEA"):
		return AffinityBlob
	case strings.Contains(upperType, "REAL"), strings.Contains(upperType, "FLOA"),
		strings.Contains(upperType, "DOUB"):
		return AffinityReal
	}
	return AffinityNumeric
}

// ColumnDef is a column declared in a CREATE TABLE statement.
type ColumnDef struct {
	Name string
	Type string
}

var tableConstraintPrefixes = []string{"PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "CONSTRAINT", "KEY", "INDEX"}

// ParseColumnDefs splits the column list of a CREATE TABLE statement into
// name/type pairs. Table-level constraints are skipped.
func ParseColumnDefs(ddl string) []ColumnDef {
	open := strings.Index(ddl, "(")
	closeIdx := strings.LastIndex(ddl, ")")
	if open < 0 || closeIdx <= open {
		return nil
	}

	var defs []ColumnDef
	for _, part := range splitTopLevel(ddl[open+1 : closeIdx]) {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		upperFirst := strings.ToUpper(fields[0])
		skip := false
		for _, p := range tableConstraintPrefixes {
			if upperFirst == p {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		def := ColumnDef{Name: strings.Trim(fields[0], "\"`[]")}
		if len(fields) > 1 {
			def.Type = strings.ToUpper(fields[1])
			if i := strings.Index(def.Type, "("); i > 0 {
				def.Type = def.Type[:i]
			}
		}
		defs = append(defs, def)
	}
	return defs
}

// splitTopLevel splits on commas that are not nested inside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
