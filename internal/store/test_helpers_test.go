package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/govsync/internal/ledger"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testHash derives a distinct hash from a small seed.
func testHash(seed byte) ledger.Hash32 {
	var h ledger.Hash32
	for i := range h {
		h[i] = seed
	}
	return h
}

// testHeader creates a block header at slot with a hash derived from it.
func testHeader(slot uint64) ledger.BlockHeader {
	return ledger.BlockHeader{Hash: testHash(byte(slot)), Slot: slot, Height: slot}
}

// commitBlock writes a block through fn and commits it.
func commitBlock(t *testing.T, s *Store, header ledger.BlockHeader, fn func(b *BlockTx)) {
	t.Helper()
	b, err := s.BeginBlock(context.Background(), header)
	if err != nil {
		t.Fatalf("BeginBlock(%d) failed: %v", header.Slot, err)
	}
	if fn != nil {
		fn(b)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit(%d) failed: %v", header.Slot, err)
	}
}

func countRows(t *testing.T, s *Store, table string) int64 {
	t.Helper()
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}
