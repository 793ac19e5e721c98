package projector_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/projector"
	"github.com/roach88/govsync/internal/store"
	"github.com/roach88/govsync/internal/testutil"
	"github.com/roach88/govsync/internal/tracker"
)

// world drives the projectors over generated blocks the way the ingestor
// does: one store transaction per block, spends marked before projection.
type world struct {
	t          *testing.T
	ctx        context.Context
	store      *store.Store
	cache      *tracker.Cache
	dep        *testutil.Deployment
	chain      *testutil.Chain
	projectors []projector.Projector
	logs       *bytes.Buffer
}

func newWorld(t *testing.T) *world {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "govsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logs := &bytes.Buffer{}
	dep := testutil.NewDeployment()
	gov, votePermission, licenses, treasurer := dep.Policies()
	env := projector.Env{
		Policies: projector.Policies{
			GovStateNFT:       gov,
			VotePermissionNFT: votePermission,
			Licenses:          licenses,
			TreasurerNFT:      treasurer,
		},
		NetworkID: dep.Network,
		Logger:    slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	return &world{
		t:          t,
		ctx:        context.Background(),
		store:      st,
		cache:      tracker.New(),
		dep:        dep,
		chain:      testutil.NewChain(1000),
		projectors: projector.All(env),
		logs:       logs,
	}
}

// block projects txs as one block. On error the block is discarded and
// the cache restored.
func (w *world) block(txs ...*testutil.TxBuilder) ([]ledger.RawTx, error) {
	w.t.Helper()
	raws := make([]ledger.RawTx, len(txs))
	for i, b := range txs {
		raws[i] = b.Build()
	}
	blk := w.chain.Next(raws...)

	snapshot := w.cache.Clone()
	b, err := w.store.BeginBlock(w.ctx, blk.BlockHeader)
	require.NoError(w.t, err)
	for i, raw := range raws {
		tx, err := ledger.DecodeTransaction(raw.ID, raw.CBOR, nil)
		require.NoError(w.t, err)
		_, err = b.MarkSpent(w.ctx, tx.Inputs)
		require.NoError(w.t, err)
		for _, p := range w.projectors {
			if _, err := p.Project(w.ctx, projector.Input{Block: b, Cache: w.cache, Tx: tx, Index: i}); err != nil {
				require.NoError(w.t, b.Rollback())
				w.cache.Restore(snapshot)
				return raws, err
			}
		}
	}
	require.NoError(w.t, b.Commit())
	return raws, nil
}

func (w *world) mustBlock(txs ...*testutil.TxBuilder) []ledger.RawTx {
	w.t.Helper()
	raws, err := w.block(txs...)
	require.NoError(w.t, err)
	return raws
}

func (w *world) count(table string) int64 {
	w.t.Helper()
	var n int64
	require.NoError(w.t, w.store.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func (w *world) scalar(query string, args ...any) int64 {
	w.t.Helper()
	var n int64
	require.NoError(w.t, w.store.DB().QueryRow(query, args...).Scan(&n))
	return n
}

func (w *world) column(query string, args ...any) []string {
	w.t.Helper()
	rows, err := w.store.DB().Query(query, args...)
	require.NoError(w.t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		require.NoError(w.t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(w.t, rows.Err())
	return out
}

// initGov deploys the governance thread and returns its output.
func (w *world) initGov() ledger.OutRef {
	w.t.Helper()
	d := w.dep
	raws := w.mustBlock(testutil.NewTx().
		Mint(d.GovStateNFT.Policy, d.GovStateNFT.Name, 1).
		Output(d.Addr(d.GovAddress), d.GovValue(), d.GovDatum(0)))
	return testutil.Ref(raws[0], 0)
}

// openTally spends the governance state to open a two-proposal tally.
// Returns the new governance state and the tally.
func (w *world) openTally(gov ledger.OutRef) (ledger.OutRef, ledger.OutRef) {
	w.t.Helper()
	d := w.dep
	raws := w.mustBlock(testutil.NewTx().
		Input(gov).
		SpendRedeemer(gov, testutil.CreateTallyRedeemer()).
		Mint(d.TallyAuthNFT.Policy, d.TallyAuthNFT.Name, 1).
		Output(d.Addr(d.GovAddress), d.GovValue(), d.GovDatum(1)).
		Output(d.Addr(d.TallyAddress), d.TallyValue(), d.TallyDatum(1, 0, 0)).
		Output(d.Addr(d.Owner), testutil.Coins(5_000_000), nil))
	return testutil.Ref(raws[0], 0), testutil.Ref(raws[0], 1)
}

// stake opens a staking position holding stake governance tokens.
func (w *world) stake(stake int64) ledger.OutRef {
	w.t.Helper()
	d := w.dep
	raws := w.mustBlock(testutil.NewTx().
		Salt(uint64(stake)).
		Output(d.Addr(d.StakingAddress), d.StakingValue(stake), d.StakingDatum()))
	return testutil.Ref(raws[0], 0)
}

// requireCacheConsistent checks the cache against one rebuilt from the store.
func (w *world) requireCacheConsistent() {
	w.t.Helper()
	fresh, err := tracker.Load(w.ctx, w.store, w.dep.TreasurerNFTPolicy)
	require.NoError(w.t, err)
	require.True(w.t, fresh.Equal(w.cache), "cache diverged from store")
}

func hexOf(b []byte) string {
	return hex.EncodeToString(b)
}
