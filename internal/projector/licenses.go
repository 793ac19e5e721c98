package projector

import (
	"context"

	"github.com/roach88/govsync/internal/datum"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/store"
)

// Licenses projects license tokens and the mints that release them.
type Licenses struct {
	env Env
}

func (p *Licenses) Name() string { return "licenses" }

func (p *Licenses) Project(ctx context.Context, in Input) (int, error) {
	policy := p.env.Policies.Licenses
	if len(policy) == 0 {
		return 0, nil
	}
	b := in.Block

	rows := 0
	for _, out := range in.Tx.OutputsWithPolicy(policy) {
		outID, err := output(ctx, in, out)
		if err != nil {
			return 0, err
		}
		for _, name := range out.Value.Names(policy) {
			tokID, err := b.Token(ctx, ledger.NewAssetID(policy, name))
			if err != nil {
				return 0, err
			}
			if err := b.LicenseOutput(ctx, outID, tokID); err != nil {
				return 0, err
			}
			rows++
		}
	}

	minted := in.Tx.Minted(policy)
	if len(minted) == 0 {
		return rows, nil
	}
	license := minted[0]

	var receiver []byte
	for _, out := range in.Tx.Outputs {
		if out.Value.Quantity(license.Asset) > 0 {
			receiver = out.Address
			break
		}
	}
	if receiver == nil {
		p.env.logger().Debug("license mint without receiving output", "tx", in.Tx.ID.String())
		return rows, nil
	}

	tally, ok, err := p.usedTally(ctx, in)
	if err != nil || !ok {
		return rows, err
	}

	name, err := datum.ParseLicenseName(license.Asset.NameBytes())
	if err != nil {
		p.env.logger().Warn("unparseable license name", "tx", in.Tx.ID.String(), "error", err)
		return rows, nil
	}
	row, err := txRow(ctx, in)
	if err != nil {
		return 0, err
	}
	tokID, err := b.Token(ctx, license.Asset)
	if err != nil {
		return 0, err
	}
	receiverID, err := b.Address(ctx, receiver)
	if err != nil {
		return 0, err
	}
	if _, err := b.InsertLicenseMint(ctx, store.LicenseMint{
		TransactionID:     row,
		TokenID:           tokID,
		Amount:            license.Quantity,
		ReceiverAddressID: receiverID,
		TallyProposalID:   name.ProposalID,
		Expiration:        name.ExpiresAt,
		UsedTallyStateID:  tally.ID,
	}); err != nil {
		return 0, err
	}
	return rows + 1, nil
}

// usedTally resolves the tally state the license release refers to
// through the mint redeemer of the license policy.
func (p *Licenses) usedTally(ctx context.Context, in Input) (store.StateRef, bool, error) {
	r, ok := in.Tx.MintRedeemer(p.env.Policies.Licenses)
	if !ok {
		return store.StateRef{}, false, nil
	}
	res := datum.DecodeReleaseLicenses(r.Data)
	if !res.Ok() {
		p.env.logMismatch(p.Name(), "license redeemer", in.Tx, res.Outcome, res.Err)
		return store.StateRef{}, false, nil
	}
	ref, ok := in.Tx.ReferenceInput(res.Value.TallyInputIndex)
	if !ok {
		p.env.logger().Warn("license redeemer references missing input",
			"tx", in.Tx.ID.String(), "tally_input_index", res.Value.TallyInputIndex)
		return store.StateRef{}, false, nil
	}
	return in.Block.StateAt(ctx, store.TallyState, ref)
}
