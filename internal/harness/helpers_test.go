package harness

import (
	"encoding/hex"
	"strings"

	"github.com/roach88/govsync/internal/config"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/testutil"
)

func deploymentPolicies(d *testutil.Deployment) config.Policies {
	gov, votePermission, licenses, treasurer := d.Policies()
	return config.Policies{
		GovStateNFT:       hex.EncodeToString(gov),
		VotePermissionNFT: hex.EncodeToString(votePermission),
		Licenses:          hex.EncodeToString(licenses),
		TreasurerNFT:      hex.EncodeToString(treasurer),
	}
}

func txStep(raw ledger.RawTx) TxStep {
	return TxStep{CBOR: hex.EncodeToString(raw.CBOR)}
}

func forward(slot, height uint64, txs ...ledger.RawTx) Step {
	f := &ForwardStep{Slot: slot, Height: height}
	for _, tx := range txs {
		f.Txs = append(f.Txs, txStep(tx))
	}
	return Step{Forward: f}
}

func hashOf(b byte) string {
	return strings.Repeat(hex.EncodeToString([]byte{b}), 32)
}

// govScenario opens a governance thread at slot 20, advances it at slot
// 40 and creates a tally from it.
func govScenario(d *testutil.Deployment) (*Scenario, ledger.RawTx, ledger.RawTx) {
	initTx := testutil.NewTx().
		Mint(d.GovStateNFT.Policy, d.GovStateNFT.Name, 1).
		Output(d.Addr(d.GovAddress), d.GovValue(), d.GovDatum(0)).
		Build()
	gov := testutil.Ref(initTx, 0)
	tallyTx := testutil.NewTx().
		Input(gov).
		SpendRedeemer(gov, testutil.CreateTallyRedeemer()).
		Output(d.Addr(d.GovAddress), d.GovValue(), d.GovDatum(1)).
		Output(d.Addr(d.TallyAddress), d.TallyValue(), d.TallyDatum(1, 0, 0)).
		Build()

	return &Scenario{
		Name:     "governance",
		Network:  config.Preprod,
		Policies: deploymentPolicies(d),
		Events: []Step{
			forward(20, 1, initTx),
			forward(40, 2, tallyTx),
		},
	}, initTx, tallyTx
}
