package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// jsonColumns are the JSONB columns in the schema; their values cross the
// boundary as map[string]any and are (de)serialized here.
var jsonColumns = map[string]bool{
	"device_info":   true,
	"location_info": true,
	"details":       true,
}

// Postgres implements Store over a database/sql connection using the pgx driver.
// Timestamps are normalized to UTC in both directions so the stored values are
// unambiguous ISO-8601 UTC at the boundary.
type Postgres struct {
	db *sql.DB
}

// NewPostgres returns a Store backed by the given database connection.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Select returns rows from table matching filter, honoring opts ordering and pagination.
func (p *Postgres) Select(ctx context.Context, table string, columns []string, filter Filter, opts *SelectOptions) ([]Row, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("store: invalid table %q", table)
	}
	cols := "*"
	if len(columns) > 0 {
		for _, c := range columns {
			if !identPattern.MatchString(c) {
				return nil, fmt.Errorf("store: invalid column %q", c)
			}
		}
		cols = strings.Join(columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, table)
	args, err := appendWhere(&sb, filter, 1)
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.OrderBy != "" {
		if !identPattern.MatchString(opts.OrderBy) {
			return nil, fmt.Errorf("store: invalid column %q", opts.OrderBy)
		}
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", opts.OrderBy, dir)
	}
	if opts != nil && opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	}
	if opts != nil && opts.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", opts.Offset)
	}

	rows, err := p.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// Insert appends rows to table and returns them as stored.
func (p *Postgres) Insert(ctx context.Context, table string, in []Row) ([]Row, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("store: invalid table %q", table)
	}
	if len(in) == 0 {
		return nil, nil
	}

	// All rows share the column set of the first; sorted for a stable statement.
	columns := make([]string, 0, len(in[0]))
	for c := range in[0] {
		if !identPattern.MatchString(c) {
			return nil, fmt.Errorf("store: invalid column %q", c)
		}
		columns = append(columns, c)
	}
	sort.Strings(columns)

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	args := make([]any, 0, len(in)*len(columns))
	for i, row := range in {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, c := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			v, err := bindValue(c, row[c])
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			fmt.Fprintf(&sb, "$%d", len(args))
		}
		sb.WriteByte(')')
	}
	sb.WriteString(" RETURNING *")

	rows, err := p.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// Update applies patch to all rows matching filter and returns the rows changed.
func (p *Postgres) Update(ctx context.Context, table string, patch Row, filter Filter) ([]Row, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("store: invalid table %q", table)
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("store: empty patch")
	}

	columns := make([]string, 0, len(patch))
	for c := range patch {
		if !identPattern.MatchString(c) {
			return nil, fmt.Errorf("store: invalid column %q", c)
		}
		columns = append(columns, c)
	}
	sort.Strings(columns)

	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET ", table)
	args := make([]any, 0, len(columns)+len(filter))
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, err := bindValue(c, patch[c])
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		fmt.Fprintf(&sb, "%s = $%d", c, len(args))
	}
	whereArgs, err := appendWhere(&sb, filter, len(args)+1)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)
	sb.WriteString(" RETURNING *")

	rows, err := p.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// appendWhere writes a WHERE clause for filter to sb, numbering placeholders
// from argStart, and returns the bind arguments in clause order.
func appendWhere(sb *strings.Builder, filter Filter, argStart int) ([]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteString(" WHERE ")
	var args []any
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		column, op, err := splitFilterKey(k)
		if err != nil {
			return nil, err
		}
		v := filter[k]
		if v == nil && op == "=" {
			fmt.Fprintf(sb, "%s IS NULL", column)
			continue
		}
		bound, err := bindValue(column, v)
		if err != nil {
			return nil, err
		}
		args = append(args, bound)
		fmt.Fprintf(sb, "%s %s $%d", column, op, argStart+len(args)-1)
	}
	return args, nil
}

// bindValue converts a contract value into a driver bind value: JSON columns
// are marshaled, timestamps normalized to UTC.
func bindValue(column string, v any) (any, error) {
	if jsonColumns[column] {
		if v == nil {
			v = map[string]any{}
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("store: marshal %s: %w", column, err)
		}
		return b, nil
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC(), nil
	}
	return v, nil
}

// scanRows reads all result rows into the generic Row form.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, c := range columns {
			row[c] = normalizeValue(c, values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue converts driver values back into contract values.
func normalizeValue(column string, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if jsonColumns[column] {
			m := map[string]any{}
			if err := json.Unmarshal(val, &m); err == nil {
				return m
			}
		}
		return string(val)
	case time.Time:
		return val.UTC()
	default:
		return v
	}
}
