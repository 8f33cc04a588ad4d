package errors_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PLeVasseur/iso26262-retrieval/internal/embed"
)

// TestErrorWrapping_FileLock verifies lock errors are wrapped with context.
func TestErrorWrapping_FileLock(t *testing.T) {
	// Given: a path under a regular file, where MkdirAll must fail
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	lock := embed.NewFileLock(filepath.Join(blocker, "run"))

	// When: acquiring the lock
	err := lock.Lock()

	// Then: the error is wrapped with context about lock directory creation
	if err == nil {
		t.Fatal("expected error locking under a non-directory path")
	}
	if !strings.Contains(err.Error(), "lock directory") {
		t.Errorf("expected lock directory context, got: %s", err.Error())
	}
}

// TestErrorWrapping_FileLock_TryLock verifies TryLock errors are wrapped the same way.
func TestErrorWrapping_FileLock_TryLock(t *testing.T) {
	// Given: the same blocked path
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	lock := embed.NewFileLock(filepath.Join(blocker, "run"))

	// When: attempting a non-blocking lock
	acquired, err := lock.TryLock()

	// Then: acquisition fails with wrapped context, lock stays unacquired
	if err == nil {
		t.Fatal("expected error trying to lock under a non-directory path")
	}
	if acquired {
		t.Error("expected lock to not be acquired")
	}
	if !strings.Contains(err.Error(), "lock directory") {
		t.Errorf("expected lock directory context, got: %s", err.Error())
	}
}
