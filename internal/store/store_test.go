package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/govsync/internal/ledger"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range Tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_tx_outputs_spent'",
	).Scan(&name)
	if err != nil {
		t.Errorf("v1 index missing: %v", err)
	}
}

func TestBeginBlock_DuplicateHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	commitBlock(t, s, testHeader(10), nil)

	_, err := s.BeginBlock(ctx, testHeader(10))
	if !errors.Is(err, ErrBlockExists) {
		t.Fatalf("BeginBlock() error = %v, want ErrBlockExists", err)
	}
	if got := countRows(t, s, "blocks"); got != 1 {
		t.Errorf("blocks = %d, want 1", got)
	}
}

func TestBlockTx_RollbackDiscardsWrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b, err := s.BeginBlock(ctx, testHeader(5))
	if err != nil {
		t.Fatalf("BeginBlock() failed: %v", err)
	}
	if _, err := b.Address(ctx, []byte{0x60, 0x01}); err != nil {
		t.Fatalf("Address() failed: %v", err)
	}
	if err := b.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if err := b.Rollback(); err != nil {
		t.Errorf("second Rollback() = %v, want nil", err)
	}

	if got := countRows(t, s, "blocks"); got != 0 {
		t.Errorf("blocks = %d, want 0", got)
	}
	if got := countRows(t, s, "addresses"); got != 0 {
		t.Errorf("addresses = %d, want 0", got)
	}
}

func TestGetOrCreate_ReturnsExistingID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	commitBlock(t, s, testHeader(1), func(b *BlockTx) {
		asset := ledger.NewAssetID([]byte{0xaa}, []byte("gov"))
		first, err := b.Token(ctx, asset)
		if err != nil {
			t.Fatalf("Token() failed: %v", err)
		}
		second, err := b.Token(ctx, asset)
		if err != nil {
			t.Fatalf("Token() failed: %v", err)
		}
		if first != second {
			t.Errorf("Token() ids differ: %d != %d", first, second)
		}

		d1, err := b.Datum(ctx, []byte{0xd8, 0x79, 0x80})
		if err != nil {
			t.Fatalf("Datum() failed: %v", err)
		}
		d2, err := b.Datum(ctx, []byte{0xd8, 0x79, 0x80})
		if err != nil {
			t.Fatalf("Datum() failed: %v", err)
		}
		if d1 != d2 {
			t.Errorf("Datum() ids differ: %d != %d", d1, d2)
		}
	})

	if got := countRows(t, s, "tokens"); got != 1 {
		t.Errorf("tokens = %d, want 1", got)
	}
}

func TestOutput_StoresValueOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	policy := []byte{0xbb}
	out := ledger.Output{
		Index:   2,
		Address: []byte{0x70, 0x02},
		Value: ledger.ValueOf(
			ledger.Amount{Asset: ledger.Coin, Quantity: 2_000_000},
			ledger.Amount{Asset: ledger.NewAssetID(policy, []byte("a")), Quantity: 5},
			ledger.Amount{Asset: ledger.NewAssetID(policy, []byte("z")), Quantity: 0},
		),
		Datum: []byte{0xd8, 0x79, 0x80},
	}
	h := ledger.HashDatum(out.Datum)
	out.DatumHash = &h

	commitBlock(t, s, testHeader(1), func(b *BlockTx) {
		first, err := b.Output(ctx, testHash(0xf0), 0, out)
		if err != nil {
			t.Fatalf("Output() failed: %v", err)
		}
		second, err := b.Output(ctx, testHash(0xf0), 0, out)
		if err != nil {
			t.Fatalf("Output() failed: %v", err)
		}
		if first != second {
			t.Errorf("Output() ids differ: %d != %d", first, second)
		}

		value, err := b.OutputValue(ctx, first)
		if err != nil {
			t.Fatalf("OutputValue() failed: %v", err)
		}
		if value.Coin != 2_000_000 {
			t.Errorf("coin = %d, want 2000000", value.Coin)
		}
		if q := value.Quantity(ledger.NewAssetID(policy, []byte("a"))); q != 5 {
			t.Errorf("asset a = %d, want 5", q)
		}
	})

	if got := countRows(t, s, "tx_output_values"); got != 2 {
		t.Errorf("tx_output_values = %d, want 2 (coin + nonzero asset)", got)
	}
	if got := countRows(t, s, "datums"); got != 1 {
		t.Errorf("datums = %d, want 1", got)
	}
	if got := countRows(t, s, "transactions"); got != 1 {
		t.Errorf("transactions = %d, want 1", got)
	}
}

func TestMarkSpent_OnlyOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ref := ledger.OutRef{TxID: testHash(0xf1), Index: 0}
	commitBlock(t, s, testHeader(1), func(b *BlockTx) {
		if _, err := b.Output(ctx, ref.TxID, 0, ledger.Output{Index: 0, Address: []byte{0x60}}); err != nil {
			t.Fatalf("Output() failed: %v", err)
		}
	})

	var spentBy int64
	commitBlock(t, s, testHeader(2), func(b *BlockTx) {
		spentBy = b.BlockID()
		n, err := b.MarkSpent(ctx, []ledger.OutRef{ref, {TxID: testHash(0xee), Index: 9}})
		if err != nil {
			t.Fatalf("MarkSpent() failed: %v", err)
		}
		if n != 1 {
			t.Errorf("MarkSpent() = %d, want 1 (unknown refs ignored)", n)
		}
	})
	commitBlock(t, s, testHeader(3), func(b *BlockTx) {
		n, err := b.MarkSpent(ctx, []ledger.OutRef{ref})
		if err != nil {
			t.Fatalf("MarkSpent() failed: %v", err)
		}
		if n != 0 {
			t.Errorf("second MarkSpent() = %d, want 0", n)
		}
	})

	var got int64
	if err := s.db.QueryRow("SELECT spent_in_block_id FROM tx_outputs").Scan(&got); err != nil {
		t.Fatalf("query spend marker: %v", err)
	}
	if got != spentBy {
		t.Errorf("spent_in_block_id = %d, want %d", got, spentBy)
	}
}

func TestRollbackTo_CascadesAndUnspends(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ref := ledger.OutRef{TxID: testHash(0xf1), Index: 0}
	commitBlock(t, s, testHeader(1), func(b *BlockTx) {
		if _, err := b.Output(ctx, ref.TxID, 0, ledger.Output{Index: 0, Address: []byte{0x60}}); err != nil {
			t.Fatalf("Output() failed: %v", err)
		}
	})
	commitBlock(t, s, testHeader(2), func(b *BlockTx) {
		if _, err := b.MarkSpent(ctx, []ledger.OutRef{ref}); err != nil {
			t.Fatalf("MarkSpent() failed: %v", err)
		}
		if _, err := b.Output(ctx, testHash(0xf2), 0, ledger.Output{Index: 0, Address: []byte{0x61}}); err != nil {
			t.Fatalf("Output() failed: %v", err)
		}
	})

	n, err := s.RollbackTo(ctx, 1)
	if err != nil {
		t.Fatalf("RollbackTo() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RollbackTo() deleted %d blocks, want 1", n)
	}

	if got := countRows(t, s, "tx_outputs"); got != 1 {
		t.Errorf("tx_outputs = %d, want 1", got)
	}
	if got := countRows(t, s, "transactions"); got != 1 {
		t.Errorf("transactions = %d, want 1", got)
	}
	var spent *int64
	if err := s.db.QueryRow("SELECT spent_in_block_id FROM tx_outputs").Scan(&spent); err != nil {
		t.Fatalf("query spend marker: %v", err)
	}
	if spent != nil {
		t.Errorf("spent_in_block_id = %d, want NULL after rollback", *spent)
	}

	if _, err := s.RollbackAll(ctx); err != nil {
		t.Fatalf("RollbackAll() failed: %v", err)
	}
	if got := countRows(t, s, "blocks"); got != 0 {
		t.Errorf("blocks = %d, want 0", got)
	}
	if got := countRows(t, s, "tx_outputs"); got != 0 {
		t.Errorf("tx_outputs = %d, want 0", got)
	}
}

func TestTipAndResumePoints(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tip, err := s.Tip(ctx)
	if err != nil {
		t.Fatalf("Tip() failed: %v", err)
	}
	if tip != nil {
		t.Errorf("Tip() on empty store = %+v, want nil", tip)
	}
	points, err := s.ResumePoints(ctx, []int{0, 1, 5})
	if err != nil {
		t.Fatalf("ResumePoints() failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("ResumePoints() on empty store = %v, want none", points)
	}

	for slot := uint64(1); slot <= 6; slot++ {
		commitBlock(t, s, testHeader(slot*10), nil)
	}

	tip, err = s.Tip(ctx)
	if err != nil {
		t.Fatalf("Tip() failed: %v", err)
	}
	if tip == nil || tip.Slot != 60 {
		t.Fatalf("Tip() = %+v, want slot 60", tip)
	}

	points, err = s.ResumePoints(ctx, []int{0, 1, 5, 50, 1000})
	if err != nil {
		t.Fatalf("ResumePoints() failed: %v", err)
	}
	want := []uint64{60, 50, 10}
	if len(points) != len(want) {
		t.Fatalf("ResumePoints() = %v, want slots %v", points, want)
	}
	for i, p := range points {
		if p.Slot != want[i] {
			t.Errorf("point %d slot = %d, want %d", i, p.Slot, want[i])
		}
		if p.Hash != testHash(byte(want[i])) {
			t.Errorf("point %d hash = %s", i, p.Hash)
		}
	}
}

// insertGovState writes a minimal governance state at ref.
func insertGovState(t *testing.T, b *BlockTx, ref ledger.OutRef, nft ledger.AssetID) int64 {
	t.Helper()
	ctx := context.Background()
	outID, err := b.Output(ctx, ref.TxID, 0, ledger.Output{
		Index:   ref.Index,
		Address: []byte{0x70, 0x10},
		Value:   ledger.ValueOf(ledger.Amount{Asset: nft, Quantity: 1}),
	})
	if err != nil {
		t.Fatalf("Output() failed: %v", err)
	}
	tally, err := b.Address(ctx, []byte{0x70, 0x11})
	if err != nil {
		t.Fatalf("Address() failed: %v", err)
	}
	staking, err := b.Address(ctx, []byte{0x70, 0x12})
	if err != nil {
		t.Fatalf("Address() failed: %v", err)
	}
	govToken, err := b.Token(ctx, ledger.NewAssetID([]byte{0x01}, []byte("GOV")))
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	nftID, err := b.Token(ctx, nft)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	paramsID, err := b.GovParams(ctx, GovParams{
		TallyAddressID:       tally,
		StakingAddressID:     staking,
		GovernanceTokenID:    govToken,
		VaultFTPolicy:        []byte{0x02},
		MinQuorum:            10,
		MinProposalDuration:  1000,
		GovStateNFTID:        nftID,
		TallyAuthNFTPolicy:   []byte{0x03},
		StakingVoteNFTPolicy: []byte{0x04},
	})
	if err != nil {
		t.Fatalf("GovParams() failed: %v", err)
	}
	id, err := b.InsertGovState(ctx, outID, paramsID, 0)
	if err != nil {
		t.Fatalf("InsertGovState() failed: %v", err)
	}
	return id
}

func TestUnspentGovStates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	nft := ledger.NewAssetID([]byte{0xaa}, []byte("state"))
	first := ledger.OutRef{TxID: testHash(0xa1), Index: 0}
	second := ledger.OutRef{TxID: testHash(0xa2), Index: 0}

	commitBlock(t, s, testHeader(1), func(b *BlockTx) {
		insertGovState(t, b, first, nft)
	})
	var secondID int64
	commitBlock(t, s, testHeader(2), func(b *BlockTx) {
		if _, err := b.MarkSpent(ctx, []ledger.OutRef{first}); err != nil {
			t.Fatalf("MarkSpent() failed: %v", err)
		}
		secondID = insertGovState(t, b, second, nft)
	})

	threads, err := s.UnspentGovStates(ctx)
	if err != nil {
		t.Fatalf("UnspentGovStates() failed: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("UnspentGovStates() = %d threads, want 1", len(threads))
	}
	got := threads[0]
	if got.StateID != secondID || got.Ref != second || got.Thread != nft {
		t.Errorf("thread = %+v", got)
	}
	if !bytes.Equal(got.TallyAddress, []byte{0x70, 0x11}) || !bytes.Equal(got.StakingAddress, []byte{0x70, 0x12}) {
		t.Errorf("addresses = %x, %x", got.TallyAddress, got.StakingAddress)
	}
	if !bytes.Equal(got.TallyAuthPolicy, []byte{0x03}) {
		t.Errorf("tally auth policy = %x", got.TallyAuthPolicy)
	}

	// Rolling back the second block revives the first version.
	if _, err := s.RollbackTo(ctx, 1); err != nil {
		t.Fatalf("RollbackTo() failed: %v", err)
	}
	threads, err = s.UnspentGovStates(ctx)
	if err != nil {
		t.Fatalf("UnspentGovStates() failed: %v", err)
	}
	if len(threads) != 1 || threads[0].Ref != first {
		t.Errorf("after rollback threads = %+v, want first version", threads)
	}
}

func TestUnspentTreasurerStates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	policy := []byte{0xcc}
	thread := ledger.NewAssetID(policy, []byte("t1"))
	ref := ledger.OutRef{TxID: testHash(0xb1), Index: 1}

	commitBlock(t, s, testHeader(1), func(b *BlockTx) {
		outID, err := b.Output(ctx, ref.TxID, 0, ledger.Output{
			Index:   ref.Index,
			Address: []byte{0x70, 0x20},
			Value: ledger.ValueOf(
				ledger.Amount{Asset: ledger.Coin, Quantity: 1},
				ledger.Amount{Asset: thread, Quantity: 1},
			),
		})
		if err != nil {
			t.Fatalf("Output() failed: %v", err)
		}
		auth, _ := b.Token(ctx, ledger.NewAssetID([]byte{0x05}, []byte("auth")))
		vs, _ := b.Address(ctx, []byte{0x70, 0x21})
		nftID, _ := b.Token(ctx, thread)
		paramsID, err := b.TreasurerParams(ctx, TreasurerParams{AuthNFTID: auth, ValueStoreAddressID: vs, TreasurerNFTID: nftID})
		if err != nil {
			t.Fatalf("TreasurerParams() failed: %v", err)
		}
		if _, err := b.InsertTreasurerState(ctx, outID, paramsID, 3); err != nil {
			t.Fatalf("InsertTreasurerState() failed: %v", err)
		}
	})

	threads, err := s.UnspentTreasurerStates(ctx, policy)
	if err != nil {
		t.Fatalf("UnspentTreasurerStates() failed: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("UnspentTreasurerStates() = %d threads, want 1", len(threads))
	}
	if threads[0].Ref != ref || threads[0].Thread != thread {
		t.Errorf("thread = %+v", threads[0])
	}
	if !bytes.Equal(threads[0].ValueStore, []byte{0x70, 0x21}) {
		t.Errorf("value store = %x", threads[0].ValueStore)
	}
}

func TestStateAt(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ref := ledger.OutRef{TxID: testHash(0xa1), Index: 0}
	var stateID int64
	commitBlock(t, s, testHeader(1), func(b *BlockTx) {
		stateID = insertGovState(t, b, ref, ledger.NewAssetID([]byte{0xaa}, []byte("s")))
	})

	commitBlock(t, s, testHeader(2), func(b *BlockTx) {
		got, ok, err := b.StateAt(ctx, GovState, ref)
		if err != nil {
			t.Fatalf("StateAt() failed: %v", err)
		}
		if !ok || got.ID != stateID {
			t.Errorf("StateAt(gov) = %+v, %v", got, ok)
		}
		_, ok, err = b.StateAt(ctx, TallyState, ref)
		if err != nil {
			t.Fatalf("StateAt() failed: %v", err)
		}
		if ok {
			t.Error("StateAt(tally) found a governance output")
		}
	})
}

func TestTableCounts(t *testing.T) {
	s := createTestStore(t)
	commitBlock(t, s, testHeader(1), nil)

	counts, err := s.TableCounts(context.Background())
	if err != nil {
		t.Fatalf("TableCounts() failed: %v", err)
	}
	if len(counts) != len(Tables) {
		t.Fatalf("TableCounts() = %d tables, want %d", len(counts), len(Tables))
	}
	if counts[0].Table != "blocks" || counts[0].Rows != 1 {
		t.Errorf("counts[0] = %+v, want blocks=1", counts[0])
	}
}

func TestDump_IndependentOfRowIDs(t *testing.T) {
	ctx := context.Background()
	write := func(s *Store, warmup bool) {
		commitBlock(t, s, testHeader(1), func(b *BlockTx) {
			if warmup {
				// Shift every surrogate id.
				if _, err := b.Address(ctx, []byte{0xff}); err != nil {
					t.Fatalf("Address() failed: %v", err)
				}
				if _, err := b.Token(ctx, ledger.NewAssetID([]byte{0xff}, nil)); err != nil {
					t.Fatalf("Token() failed: %v", err)
				}
			}
			insertGovState(t, b, ledger.OutRef{TxID: testHash(0xa1)}, ledger.NewAssetID([]byte{0xaa}, []byte("s")))
		})
	}

	a, b := createTestStore(t), createTestStore(t)
	write(a, false)
	write(b, true)

	var dumpA, dumpB bytes.Buffer
	if err := a.Dump(ctx, &dumpA); err != nil {
		t.Fatalf("Dump() failed: %v", err)
	}
	if err := b.Dump(ctx, &dumpB); err != nil {
		t.Fatalf("Dump() failed: %v", err)
	}
	if dumpA.String() != dumpB.String() {
		t.Errorf("dumps differ:\n%s\n---\n%s", dumpA.String(), dumpB.String())
	}
}
