package migrate

import (
	"strings"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", "up")
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if !strings.HasPrefix(err.Error(), "DATABASE_URL is not set") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "sideways", "UP", "Down"} {
		t.Run(dir, func(t *testing.T) {
			err := Run("postgres://localhost/test", dir)
			if err == nil {
				t.Fatalf("Run with direction %q should return error", dir)
			}
			if !strings.Contains(err.Error(), "direction must be up or down") {
				t.Errorf("error = %q", err.Error())
			}
		})
	}
}

func TestFiles_PairedUpDown(t *testing.T) {
	names, err := Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no embedded migrations")
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %q", n)
		}
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down file", v)
		}
	}
	for _, want := range []string{"000001_users", "000002_single_use_tokens", "000003_audit_logs"} {
		if !ups[want] {
			t.Errorf("missing migration %s", want)
		}
	}
}
