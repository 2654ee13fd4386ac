// internal/storage/rows.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alvera-ai/interoperability-template-generator/internal/core"
	"github.com/alvera-ai/interoperability-template-generator/internal/domain"
	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

// Filter is one equality condition of a row listing.
type Filter struct {
	Column string
	Value  any
}

// BuildFilters converts string filter values (typically URL query values)
// to the column's storage class. Keys must name live columns; BLOB columns
// cannot be filtered and are skipped.
func BuildFilters(cols []domain.ColumnInfo, raw map[string]string) ([]Filter, error) {
	byName := make(map[string]domain.ColumnInfo, len(cols))
	for _, c := range cols {
		byName[strings.ToLower(c.Name)] = c
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make([]Filter, 0, len(keys))
	for _, key := range keys {
		value := raw[key]
		if !core.IsValidIdentifier(key) {
			return nil, fmt.Errorf("%w: invalid filter key format '%s'", ErrInvalidInput, key)
		}
		col, ok := byName[strings.ToLower(key)]
		if !ok {
			return nil, fmt.Errorf("%w: filter key '%s' not found in table schema", ErrInvalidInput, key)
		}

		var converted any
		switch core.TypeAffinity(col.Type) {
		case core.AffinityInteger:
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: expected an integer for column '%s'", ErrInvalidInput, key)
			}
			converted = i
		case core.AffinityBoolean:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("%w: expected a boolean for column '%s'", ErrInvalidInput, key)
			}
			converted = b
		case core.AffinityReal, core.AffinityNumeric:
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: expected a number for column '%s'", ErrInvalidInput, key)
			}
			converted = f
		case core.AffinityBlob:
			customLog.Printf("Storage: Ignoring filter on BLOB column '%s'", key)
			continue
		default:
			converted = value
		}
		filters = append(filters, Filter{Column: col.Name, Value: converted})
	}
	return filters, nil
}

// scanRows drains a result set into positional values.
func scanRows(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed processing results: %w", err)
	}
	out := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, fmt.Errorf("failed reading record data: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed processing all records: %w", err)
	}
	return columns, out, nil
}

func whereClause(filters []Filter, quote func(string) string) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		conds[i] = quote(f.Column) + " = ?"
		args[i] = f.Value
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListRows returns up to limit rows of tableName matching the equality
// filters, each as an object in column order.
func (s *Store) ListRows(ctx context.Context, tableName string, filters map[string]string, limit int) ([]jsonval.Value, error) {
	cols, err := s.columns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	conds, err := BuildFilters(cols, filters)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = core.DefaultLimit
	}

	names, rows, err := s.backend.SelectRows(ctx, tableName, conds, limit)
	if err != nil {
		customLog.Warnf("Storage: Failed listing rows of '%s': %v", tableName, err)
		return nil, backendErr(err)
	}
	out := make([]jsonval.Value, 0, len(rows))
	for _, row := range rows {
		obj := jsonval.ObjectValue()
		for i, name := range names {
			obj.Set(name, jsonval.FromAny(row[i]))
		}
		out = append(out, obj)
	}
	return out, nil
}
