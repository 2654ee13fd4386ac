// internal/storage/errors.go
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Store errors. Backend failures wrap ErrBackend together with the driver
// error, so the original message survives in err.Error().
var (
	ErrNoTableName         = errors.New("no table name found in CREATE TABLE statement")
	ErrBackend             = errors.New("backend error")
	ErrNoMatchingColumns   = errors.New("no matching columns between input and table")
	ErrNotFound            = errors.New("not found")
	ErrTableNotFound       = fmt.Errorf("table %w", ErrNotFound)
	ErrInvalidInput        = errors.New("invalid input")
	ErrConstraintViolation = errors.New("constraint violation")
)

// backendErr classifies a driver error. Not-found errors pass through
// untouched; everything else is wrapped in ErrBackend.
func backendErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBackend) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %w: %w", ErrBackend, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%w: %w", ErrBackend, err)
}

// isMissingTable recognises "table does not exist" driver messages across
// the supported dialects.
func isMissingTable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "doesn't exist")
}
