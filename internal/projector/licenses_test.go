package projector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/govsync/internal/datum"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/testutil"
)

func (w *world) releaseLicense(tally ledger.OutRef, name []byte, tallyInputIndex int64) {
	w.t.Helper()
	d := w.dep
	license := datum.Token{Policy: d.LicensesPolicy, Name: name}
	w.mustBlock(testutil.NewTx().
		RefInput(tally).
		Mint(license.Policy, license.Name, 1).
		MintRedeemer(license.Policy, testutil.ReleaseLicensesRedeemer(name, tallyInputIndex)).
		Output(d.Addr(d.Owner), testutil.With(testutil.Coins(2_000_000), license, 1), nil))
}

func TestLicenses_Mint(t *testing.T) {
	w := newWorld(t)
	gov := w.initGov()
	_, tally := w.openTally(gov)
	name := datum.LicenseName{ProposalID: 1, ExpiresAt: 1_900_000_000_000}.Bytes()

	w.releaseLicense(tally, name, 0)

	assert.Equal(t, int64(1), w.count("license_mints"))
	assert.Equal(t, int64(1), w.count("license_outputs"))
	assert.Equal(t, int64(1), w.scalar("SELECT tally_proposal_id FROM license_mints"))
	assert.Equal(t, int64(1_900_000_000_000), w.scalar("SELECT expiration FROM license_mints"))
	assert.Equal(t, []string{hexOf(w.dep.Addr(w.dep.Owner))}, w.column(`
		SELECT a.address_raw FROM license_mints m JOIN addresses a ON a.id = m.receiver_address_id`))
	assert.Equal(t, []string{tally.TxID.String()}, w.column(`
		SELECT o.tx_hash FROM license_mints m
		JOIN tally_states s ON s.id = m.used_tally_state_id
		JOIN tx_outputs o ON o.id = s.output_id`))
}

func TestLicenses_MissingReferenceInputSkipsMint(t *testing.T) {
	w := newWorld(t)
	gov := w.initGov()
	_, tally := w.openTally(gov)
	name := datum.LicenseName{ProposalID: 1, ExpiresAt: 1_900_000_000_000}.Bytes()

	w.releaseLicense(tally, name, 3)

	assert.Equal(t, int64(0), w.count("license_mints"))
	assert.Equal(t, int64(1), w.count("license_outputs"))
}

func TestLicenses_ShortNameSkipsMint(t *testing.T) {
	w := newWorld(t)
	gov := w.initGov()
	_, tally := w.openTally(gov)

	w.releaseLicense(tally, []byte{0, 1}, 0)

	assert.Equal(t, int64(0), w.count("license_mints"))
	assert.Equal(t, int64(1), w.count("license_outputs"))
}

func TestLicenses_TransferRecordsOutputOnly(t *testing.T) {
	w := newWorld(t)
	d := w.dep
	license := datum.Token{Policy: d.LicensesPolicy, Name: []byte{0, 0, 1, 9}}

	w.mustBlock(testutil.NewTx().
		Output(d.Addr(d.Owner), testutil.With(testutil.Coins(2_000_000), license, 1), nil))

	assert.Equal(t, int64(1), w.count("license_outputs"))
	assert.Equal(t, int64(0), w.count("license_mints"))
}
