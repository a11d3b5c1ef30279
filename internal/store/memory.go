package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory implements Store with in-process tables guarded by a mutex.
// It mirrors the Postgres filter semantics and is used by tests and as a
// drop-in fake wherever a real database is not wired.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Row

	// FailNext, when non-nil, is returned by the next store call and cleared.
	// Lets tests exercise soft-failure paths.
	FailNext error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

func (m *Memory) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// Select returns copies of rows from table matching filter.
func (m *Memory) Select(ctx context.Context, table string, columns []string, filter Filter, opts *SelectOptions) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var matched []Row
	for _, row := range m.tables[table] {
		ok, err := matches(row, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, copyRow(row, columns))
		}
	}
	if opts != nil && opts.OrderBy != "" {
		col, desc := opts.OrderBy, opts.Desc
		sort.SliceStable(matched, func(i, j int) bool {
			less := compareValues(matched[i][col], matched[j][col]) < 0
			if desc {
				return !less
			}
			return less
		})
	}
	if opts != nil && opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts != nil && opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// Insert appends copies of rows to table and returns them.
func (m *Memory) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		stored := copyRow(row, nil)
		m.tables[table] = append(m.tables[table], stored)
		out = append(out, copyRow(stored, nil))
	}
	return out, nil
}

// Update applies patch to rows matching filter and returns copies of the changed rows.
func (m *Memory) Update(ctx context.Context, table string, patch Row, filter Filter) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var out []Row
	for _, row := range m.tables[table] {
		ok, err := matches(row, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		out = append(out, copyRow(row, nil))
	}
	return out, nil
}

// Count returns the number of rows in table. Test helper.
func (m *Memory) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func matches(row Row, filter Filter) (bool, error) {
	for k, want := range filter {
		column, op, err := splitFilterKey(k)
		if err != nil {
			return false, err
		}
		have := row[column]
		switch op {
		case "=":
			if !valuesEqual(have, want) {
				return false, nil
			}
		case "<":
			if have == nil || want == nil || compareValues(have, want) >= 0 {
				return false, nil
			}
		case ">":
			if have == nil || want == nil || compareValues(have, want) <= 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Equal(bt)
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareValues orders two column values: -1, 0, or 1. nil sorts first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	}
	af, aok := toFloat(a)
	bf, bok2 := toFloat(b)
	if aok && bok2 {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// copyRow returns a shallow copy of row restricted to columns (nil means all).
// Map-valued columns are copied one level deep so callers cannot mutate stored rows.
func copyRow(row Row, columns []string) Row {
	out := make(Row, len(row))
	if len(columns) == 0 {
		for k, v := range row {
			out[k] = copyValue(v)
		}
		return out
	}
	for _, k := range columns {
		if v, ok := row[k]; ok {
			out[k] = copyValue(v)
		}
	}
	return out
}

func copyValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		c := make(map[string]any, len(m))
		for k, mv := range m {
			c[k] = mv
		}
		return c
	}
	return v
}
