package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/focusgroup/focusbot/internal/infra/sqlite"
)

type fakeSender struct{ enabled bool }

func (f fakeSender) Enabled() bool { return f.enabled }

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func statusOf(t *testing.T, c *Checker, name string) Status {
	t.Helper()
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("check %q not found in statuses", name)
	return Status{}
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), fakeSender{enabled: true})
	if c == nil {
		t.Fatal("NewChecker() returned nil")
	}
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), fakeSender{enabled: true})
	statuses := c.RunOnce(context.Background())

	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), nil)

	// No statuses yet: vacuously healthy.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_TelegramNotConfigured(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), fakeSender{})
	c.runAll(context.Background())

	s := statusOf(t, c, "telegram")
	if s.Healthy {
		t.Error("telegram check should fail without a bot token")
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false")
	}
}

func TestChecker_DataDirRecovers(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	c := NewChecker(newTestDB(t), dataDir, fakeSender{enabled: true})

	c.runAll(context.Background())
	if statusOf(t, c, "data_dir").Healthy {
		t.Fatal("data_dir should fail while missing")
	}

	// The recovery action created the directory.
	c.runAll(context.Background())
	if s := statusOf(t, c, "data_dir"); !s.Healthy {
		t.Errorf("data_dir should be healthy after recovery, got: %s", s.Error)
	}
}

func TestChecker_DataDirIsFile(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	os.WriteFile(dataDir, []byte("not a dir"), 0644)

	c := NewChecker(newTestDB(t), dataDir, fakeSender{enabled: true})
	c.runAll(context.Background())

	if statusOf(t, c, "data_dir").Healthy {
		t.Error("data_dir should fail when path is a file")
	}
}

func TestChecker_CustomCheck(t *testing.T) {
	c := &Checker{
		checks: []Check{
			{
				Name: "always_pass",
				CheckFn: func(ctx context.Context) error {
					return nil
				},
			},
		},
	}

	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	if !statuses[0].Healthy {
		t.Error("always_pass check should be healthy")
	}
}

func TestChecker_FailingCheck(t *testing.T) {
	recovered := false
	c := &Checker{
		checks: []Check{
			{
				Name: "always_fail",
				CheckFn: func(ctx context.Context) error {
					return os.ErrPermission
				},
				RecoverFn: func(ctx context.Context) error {
					recovered = true
					return nil
				},
			},
		},
	}

	c.runAll(context.Background())

	statuses := c.Statuses()
	if statuses[0].Healthy {
		t.Error("always_fail check should not be healthy")
	}
	if statuses[0].Error == "" {
		t.Error("error message should be populated")
	}
	if !recovered {
		t.Error("RecoverFn should run after a failure")
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), fakeSender{enabled: true})
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()

	if len(s1) > 0 {
		s1[0].Healthy = false
		if !s2[0].Healthy {
			t.Error("Statuses() should return a copy, not a reference")
		}
	}
}
