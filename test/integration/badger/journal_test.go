//go:build integration

package badger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/simfs/pkg/journal"
)

// TestBadgerJournal_Integration runs the on-disk journal through a restart.
//
// Prerequisites:
//   - None (BadgerDB is embedded, no external services needed)
//   - Run with: go test -tags=integration ./test/integration/badger/...
//
// These tests verify that the on-disk journal:
//   - Can be created and initialized
//   - Persists entries and sequence numbers across restarts
//   - Keeps enforcing MaxEntries after a restart
func TestBadgerJournal_Integration(t *testing.T) {
	ctx := context.Background()

	tempDir, err := os.MkdirTemp("", "simfs-badger-journal-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cfg := journal.Config{
		Path:       filepath.Join(tempDir, "journal"),
		MaxEntries: 3,
	}

	// ========================================================================
	// First run: write entries
	// ========================================================================

	j, err := journal.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}

	for _, line := range []string{`MD C:\A`, `MD C:\B`} {
		if _, err := j.Append(ctx, "alice", line, "ok"); err != nil {
			t.Fatalf("Failed to append %q: %v", line, err)
		}
	}

	if err := j.Close(); err != nil {
		t.Fatalf("Failed to close journal: %v", err)
	}

	// ========================================================================
	// Second run: entries survive and numbering continues
	// ========================================================================

	j, err = journal.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to reopen journal: %v", err)
	}
	defer j.Close()

	if got := j.Len(); got != 2 {
		t.Fatalf("Expected 2 entries after restart, got %d", got)
	}

	e, err := j.Append(ctx, "bob", `MF C:\A\f.txt`, "ok")
	if err != nil {
		t.Fatalf("Failed to append after restart: %v", err)
	}
	if e.Seq != 3 {
		t.Errorf("Expected sequence 3 after restart, got %d", e.Seq)
	}

	if _, err := j.Append(ctx, "bob", `DEL C:\A\f.txt`, "ok"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	entries, err := j.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Failed to read journal: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected MaxEntries to cap the journal at 3, got %d", len(entries))
	}
	if entries[len(entries)-1].CommandLine != `MD C:\B` {
		t.Errorf("Expected oldest surviving entry to be MD C:\\B, got %q", entries[len(entries)-1].CommandLine)
	}

	aliceOnly, err := j.Recent(ctx, "ALICE", 0)
	if err != nil {
		t.Fatalf("Failed to filter journal: %v", err)
	}
	if len(aliceOnly) != 1 {
		t.Errorf("Expected 1 entry for alice, got %d", len(aliceOnly))
	}
}
