package migrate

import (
	"strings"
	"testing"

	"travel-planner/backend/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	if err := Run("", "up"); err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "sideways", "UP"} {
		err := Run("postgres://localhost/test", dir)
		if err == nil {
			t.Errorf("Run(%q) should return error", dir)
			continue
		}
		if !strings.Contains(err.Error(), "direction") {
			t.Errorf("Run(%q) error = %v, want direction error", dir, err)
		}
	}
}

func TestMigrationFS_ContainsSchema(t *testing.T) {
	entries, err := db.MigrationFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{
		"0001_create_user_sessions.up.sql",
		"0001_create_user_sessions.down.sql",
		"0002_create_security_events.up.sql",
		"0002_create_security_events.down.sql",
	}
	for _, w := range want {
		found := false
		for _, n := range names {
			if n == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("migration %s not embedded; have %v", w, names)
		}
	}
}
