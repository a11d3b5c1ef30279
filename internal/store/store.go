// Package store defines the narrow persistence contract the session core runs on:
// filtered reads, row inserts, and filtered writes over named tables. The core never
// assumes anything about the backing database beyond these three operations.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Filter maps a column to an exact-match value. A nil value matches SQL NULL.
// A key may carry a trailing comparison operator separated by a space
// (e.g. "expires_at <", "created_at >") for range conditions; those are the
// only operators the contract supports.
type Filter map[string]any

// Row is one table row as column-to-value pairs.
type Row map[string]any

// SelectOptions carry optional ordering and pagination for Select.
type SelectOptions struct {
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Store is the persistence contract consumed by the session core.
// Implementations must treat every call as a single filtered operation;
// no transactional coupling between calls is assumed or provided.
type Store interface {
	// Select returns rows from table matching filter. columns lists the columns
	// to return; nil or empty means all columns. opts may be nil.
	Select(ctx context.Context, table string, columns []string, filter Filter, opts *SelectOptions) ([]Row, error)
	// Insert appends rows to table and returns them as stored.
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)
	// Update applies patch to all rows matching filter and returns the rows changed.
	Update(ctx context.Context, table string, patch Row, filter Filter) ([]Row, error)
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// splitFilterKey separates a filter key into its column and operator.
// The operator is "=" when the key is a bare column name.
func splitFilterKey(key string) (column, op string, err error) {
	column, op = key, "="
	if i := strings.IndexByte(key, ' '); i >= 0 {
		column = key[:i]
		op = key[i+1:]
		if op != "<" && op != ">" {
			return "", "", fmt.Errorf("store: unsupported filter operator %q", op)
		}
	}
	if !identPattern.MatchString(column) {
		return "", "", fmt.Errorf("store: invalid column %q", column)
	}
	return column, op, nil
}
