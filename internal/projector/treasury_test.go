package projector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/testutil"
)

// initTreasury deploys a treasurer and funds its value store.
func (w *world) initTreasury(funds int64) (treasurer, valueStore ledger.OutRef) {
	w.t.Helper()
	d := w.dep
	raws := w.mustBlock(testutil.NewTx().
		Mint(d.TreasurerNFT.Policy, d.TreasurerNFT.Name, 1).
		Output(d.Addr(d.TreasurerAddress), d.TreasurerValue(), d.TreasurerDatum(0)))
	treasurer = testutil.Ref(raws[0], 0)
	raws = w.mustBlock(testutil.NewTx().
		Output(d.Addr(d.ValueStoreAddress), testutil.Coins(funds), d.ValueStoreDatum()))
	return treasurer, testutil.Ref(raws[0], 0)
}

func TestTreasury_Init(t *testing.T) {
	w := newWorld(t)
	w.initTreasury(10_000_000)

	assert.Equal(t, int64(1), w.count("treasurer_states"))
	assert.Equal(t, int64(1), w.count("value_store_states"))
	_, treasury := w.cache.Len()
	assert.Equal(t, 1, treasury)
	assert.True(t, w.cache.IsValueStoreAddress(w.dep.Addr(w.dep.ValueStoreAddress)))

	// Deploying the treasurer and funding it are both deltas.
	assert.Equal(t, int64(2), w.count("treasury_deltas"))
	assert.Equal(t, []string{"10000000"}, w.column(`SELECT CAST(amount AS TEXT) FROM treasury_delta_values`))
}

func TestTreasury_SpentWithoutSuccessorEndsThread(t *testing.T) {
	w := newWorld(t)
	d := w.dep
	treasurer, _ := w.initTreasury(10_000_000)

	w.mustBlock(testutil.NewTx().
		Input(treasurer).
		Output(d.Addr(d.TreasurerAddress), d.TreasurerValue(), d.GovDatum(0)))

	assert.Equal(t, int64(1), w.count("treasurer_states"))
	_, ok := w.cache.TreasuryByOutRef(treasurer)
	assert.False(t, ok)
	assert.False(t, w.cache.IsValueStoreAddress(d.Addr(d.ValueStoreAddress)))
	w.requireCacheConsistent()
}

func TestTreasury_Payout(t *testing.T) {
	w := newWorld(t)
	d := w.dep
	gov := w.initGov()
	_, tally := w.openTally(gov)
	treasurer, store := w.initTreasury(10_000_000)

	raws := w.mustBlock(testutil.NewTx().
		Input(treasurer).
		Input(store).
		RefInput(tally).
		SpendRedeemer(treasurer, testutil.PayoutRedeemer(2, 0)).
		Output(d.Addr(d.TreasurerAddress), d.TreasurerValue(), d.TreasurerDatum(1)).
		Output(d.Addr(d.ValueStoreAddress), testutil.Coins(7_000_000), d.ValueStoreDatum()).
		Output(d.Addr(d.Owner), testutil.Coins(3_000_000), nil))

	assert.Equal(t, int64(2), w.count("treasurer_states"))
	assert.Equal(t, int64(1), w.count("treasury_payouts"))
	assert.Equal(t, []string{testutil.Ref(raws[0], 2).String()}, w.column(`
		SELECT o.tx_hash || '#' || o.output_index FROM treasury_payouts p
		JOIN tx_outputs o ON o.id = p.payout_output_id`))
	assert.Equal(t, []string{"-3000000"}, w.column(`
		SELECT CAST(v.amount AS TEXT) FROM treasury_delta_values v
		JOIN treasury_deltas d ON d.id = v.treasury_delta_id
		JOIN treasury_payouts p ON p.treasury_delta_id = d.id`))

	threads := w.cache.TreasuryThreads()
	require.Len(t, threads, 1)
	assert.Equal(t, testutil.Ref(raws[0], 0), threads[0].Ref)
}

func TestTreasury_ConsolidateHasNoPayout(t *testing.T) {
	w := newWorld(t)
	d := w.dep
	treasurer, store := w.initTreasury(4_000_000)
	raws := w.mustBlock(testutil.NewTx().
		Output(d.Addr(d.ValueStoreAddress), testutil.Coins(6_000_000), d.ValueStoreDatum()))
	second := testutil.Ref(raws[0], 0)

	w.mustBlock(testutil.NewTx().
		Input(treasurer).
		Input(store).
		Input(second).
		SpendRedeemer(treasurer, testutil.ConsolidateRedeemer()).
		Output(d.Addr(d.TreasurerAddress), d.TreasurerValue(), d.TreasurerDatum(0)).
		Output(d.Addr(d.ValueStoreAddress), testutil.Coins(10_000_000), d.ValueStoreDatum()))

	assert.Equal(t, int64(0), w.count("treasury_payouts"))
	assert.Equal(t, int64(3), w.count("value_store_states"))
	// Merged funds net to zero.
	assert.Equal(t, int64(0), w.scalar(`
		SELECT COUNT(*) FROM treasury_delta_values v
		JOIN treasury_deltas d ON d.id = v.treasury_delta_id
		JOIN transactions tx ON tx.id = d.transaction_id
		JOIN blocks b ON b.id = tx.block_id
		WHERE b.slot = (SELECT MAX(slot) FROM blocks)`))
}
