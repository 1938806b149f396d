package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/focusgroup/focusbot/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "state.db")); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := db.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	db.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db2.Close()

	got, err := db2.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Get() after reopen = %q, %v; want v", got, err)
	}
}

// ─── Key-Value CRUD ─────────────────────────────────────────────────────────

func TestKV_SetGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "tasks:1:2:100", `{"a":1}`); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := db.Get(ctx, "tasks:1:2:100")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("Get() = %q", got)
	}
}

func TestKV_Overwrite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_ = db.Set(ctx, "pending:1:2", "first")
	_ = db.Set(ctx, "pending:1:2", "second")

	got, _ := db.Get(ctx, "pending:1:2")
	if got != "second" {
		t.Errorf("Get() = %q, want second", got)
	}
	n, _ := db.Count(ctx, "pending:")
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestKV_GetMissing(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
	}
}

func TestKV_Delete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_ = db.Set(ctx, "k", "v")
	if err := db.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := db.Get(ctx, "k"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
	// Idempotent
	if err := db.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete() error: %v", err)
	}
}

// ─── Prefix Listing ─────────────────────────────────────────────────────────

func TestKV_ListKeys(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, k := range []string{"tasks:1:2:300", "tasks:1:2:100", "tasks:1:3:200", "tasks:10:2:100", "pending:1:2"} {
		if err := db.Set(ctx, k, "x"); err != nil {
			t.Fatalf("Set(%s) error: %v", k, err)
		}
	}

	keys, err := db.ListKeys(ctx, "tasks:1:2:", 0)
	if err != nil {
		t.Fatalf("ListKeys() error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "tasks:1:2:100" || keys[1] != "tasks:1:2:300" {
		t.Errorf("ListKeys() = %v", keys)
	}

	// "tasks:1:" must not match chat 10
	keys, _ = db.ListKeys(ctx, "tasks:1:", 0)
	if len(keys) != 3 {
		t.Errorf("ListKeys(tasks:1:) = %v, want 3 keys", keys)
	}

	keys, _ = db.ListKeys(ctx, "tasks:", 2)
	if len(keys) != 2 {
		t.Errorf("ListKeys with limit = %d keys, want 2", len(keys))
	}
}

func TestKV_ListKeysEscapesWildcards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_ = db.Set(ctx, "a_b", "x")
	_ = db.Set(ctx, "axb", "x")
	_ = db.Set(ctx, "a%c", "x")

	keys, _ := db.ListKeys(ctx, "a_", 0)
	if len(keys) != 1 || keys[0] != "a_b" {
		t.Errorf("ListKeys(a_) = %v, want [a_b]", keys)
	}
	keys, _ = db.ListKeys(ctx, "a%", 0)
	if len(keys) != 1 || keys[0] != "a%c" {
		t.Errorf("ListKeys(a%%) = %v, want [a%%c]", keys)
	}
}

// ─── Conditional Delete ─────────────────────────────────────────────────────

func TestKV_CompareAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_ = db.Set(ctx, "pending:1:2", "token-a")

	ok, err := db.CompareAndDelete(ctx, "pending:1:2", "token-b")
	if err != nil {
		t.Fatalf("CompareAndDelete() error: %v", err)
	}
	if ok {
		t.Error("stale value must not delete")
	}

	ok, _ = db.CompareAndDelete(ctx, "pending:1:2", "token-a")
	if !ok {
		t.Error("matching value should delete")
	}

	// Second claim loses
	ok, _ = db.CompareAndDelete(ctx, "pending:1:2", "token-a")
	if ok {
		t.Error("already deleted key must not report success")
	}
}
