package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_InsertSelect(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, "user_sessions", []Row{
		{"id": "s1", "user_id": "u1", "is_active": true},
		{"id": "s2", "user_id": "u1", "is_active": false},
		{"id": "s3", "user_id": "u2", "is_active": true},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rows, err := m.Select(ctx, "user_sessions", nil, Filter{"user_id": "u1", "is_active": true}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "s1" {
		t.Fatalf("rows = %v, want [s1]", rows)
	}
}

func TestMemory_SelectColumnsAndOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := m.Insert(ctx, "user_sessions", []Row{
		{"id": "b", "created_at": base.Add(2 * time.Hour)},
		{"id": "a", "created_at": base},
		{"id": "c", "created_at": base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rows, err := m.Select(ctx, "user_sessions", []string{"id"}, nil, &SelectOptions{OrderBy: "created_at"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	// Projection drops created_at, order still applies.
	if rows[0]["id"] != "a" || rows[1]["id"] != "c" || rows[2]["id"] != "b" {
		t.Errorf("order = %v %v %v, want a c b", rows[0]["id"], rows[1]["id"], rows[2]["id"])
	}
	if _, ok := rows[0]["created_at"]; ok {
		t.Error("projection should drop created_at")
	}

	rows, err = m.Select(ctx, "user_sessions", []string{"id"}, nil, &SelectOptions{OrderBy: "created_at", Desc: true, Limit: 1})
	if err != nil {
		t.Fatalf("Select desc: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "b" {
		t.Errorf("desc limit 1 = %v, want [b]", rows)
	}
}

func TestMemory_OperatorFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := m.Insert(ctx, "user_sessions", []Row{
		{"id": "old", "expires_at": now.Add(-time.Hour)},
		{"id": "live", "expires_at": now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rows, err := m.Select(ctx, "user_sessions", nil, Filter{"expires_at <": now}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "old" {
		t.Errorf("expires_at < now = %v, want [old]", rows)
	}

	rows, err = m.Select(ctx, "user_sessions", nil, Filter{"expires_at >": now}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "live" {
		t.Errorf("expires_at > now = %v, want [live]", rows)
	}
}

func TestMemory_NilMatchesNull(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, "user_sessions", []Row{
		{"id": "s1", "ended_at": nil},
		{"id": "s2", "ended_at": time.Now()},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rows, err := m.Select(ctx, "user_sessions", nil, Filter{"ended_at": nil}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "s1" {
		t.Errorf("ended_at IS NULL = %v, want [s1]", rows)
	}
}

func TestMemory_UpdateReturnsChangedRows(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, "user_sessions", []Row{
		{"id": "s1", "user_id": "u1", "is_active": true},
		{"id": "s2", "user_id": "u2", "is_active": true},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	changed, err := m.Update(ctx, "user_sessions", Row{"is_active": false}, Filter{"id": "s1"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(changed) != 1 || changed[0]["is_active"] != false {
		t.Fatalf("changed = %v, want s1 inactive", changed)
	}

	rows, _ := m.Select(ctx, "user_sessions", nil, Filter{"id": "s2"}, nil)
	if rows[0]["is_active"] != true {
		t.Error("s2 should be untouched")
	}
}

func TestMemory_FailNext(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	sentinel := errors.New("store down")

	m.FailNext = sentinel
	if _, err := m.Insert(ctx, "t", []Row{{"id": "x"}}); !errors.Is(err, sentinel) {
		t.Fatalf("Insert err = %v, want sentinel", err)
	}
	// Failure is one-shot.
	if _, err := m.Insert(ctx, "t", []Row{{"id": "x"}}); err != nil {
		t.Fatalf("second Insert err = %v, want nil", err)
	}
}

func TestMemory_CopiesAreIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := Row{"id": "s1", "device_info": map[string]any{"os": "ios"}}
	if _, err := m.Insert(ctx, "user_sessions", []Row{in}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	in["id"] = "mutated"

	rows, _ := m.Select(ctx, "user_sessions", nil, nil, nil)
	if rows[0]["id"] != "s1" {
		t.Error("insert should copy rows")
	}
	rows[0]["device_info"].(map[string]any)["os"] = "android"

	rows, _ = m.Select(ctx, "user_sessions", nil, nil, nil)
	if rows[0]["device_info"].(map[string]any)["os"] != "ios" {
		t.Error("select should copy map values")
	}
}

func TestSplitFilterKey(t *testing.T) {
	cases := []struct {
		key     string
		column  string
		op      string
		wantErr bool
	}{
		{"user_id", "user_id", "=", false},
		{"expires_at <", "expires_at", "<", false},
		{"created_at >", "created_at", ">", false},
		{"expires_at <=", "", "", true},
		{"1bad", "", "", true},
		{"name; DROP TABLE x", "", "", true},
	}
	for _, tc := range cases {
		column, op, err := splitFilterKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Errorf("splitFilterKey(%q) should fail", tc.key)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitFilterKey(%q): %v", tc.key, err)
			continue
		}
		if column != tc.column || op != tc.op {
			t.Errorf("splitFilterKey(%q) = %q,%q want %q,%q", tc.key, column, op, tc.column, tc.op)
		}
	}
}
