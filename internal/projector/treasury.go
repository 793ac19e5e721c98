package projector

import (
	"context"

	"github.com/roach88/govsync/internal/datum"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/store"
)

// Treasury projects treasurer threads and the funds they control.
type Treasury struct {
	env Env
}

func (p *Treasury) Name() string { return "treasury" }

func (p *Treasury) Project(ctx context.Context, in Input) (int, error) {
	policy := p.env.Policies.TreasurerNFT
	b := in.Block

	var createdStores []int64
	var createdTreasurers []store.TreasuryThread
	for _, out := range in.Tx.Outputs {
		if in.Cache.IsValueStoreAddress(out.Address) {
			p.env.logger().Debug("stores funds in value store", "tx", in.Tx.ID.String(), "output", out.Index)
			outID, err := output(ctx, in, out)
			if err != nil {
				return 0, err
			}
			res := datum.DecodeValueStoreState(out.Datum)
			if res.Ok() {
				nftID, err := tokenID(ctx, b, res.Value.TreasurerNFT)
				if err != nil {
					return 0, err
				}
				if _, err := b.InsertValueStoreState(ctx, outID, nftID); err != nil {
					return 0, err
				}
				createdStores = append(createdStores, outID)
			} else {
				p.env.logMismatch(p.Name(), "value store datum", in.Tx, res.Outcome, res.Err, "ref", outRef(in, out))
			}
		}
		if len(policy) > 0 && out.Value.HasPolicy(policy) {
			outID, err := output(ctx, in, out)
			if err != nil {
				return 0, err
			}
			res := datum.DecodeTreasurerState(out.Datum)
			if !res.Ok() {
				p.env.logMismatch(p.Name(), "treasurer datum", in.Tx, res.Outcome, res.Err, "ref", outRef(in, out))
				continue
			}
			t, err := p.persistTreasurer(ctx, in, out, outID, res.Value)
			if err != nil {
				return 0, err
			}
			createdTreasurers = append(createdTreasurers, t)
		}
	}
	if len(createdStores) == 0 && len(createdTreasurers) == 0 {
		for _, ref := range in.Tx.Inputs {
			if in.Cache.RemoveTreasuryByOutRef(ref) {
				p.env.logger().Warn("treasurer thread spent without a successor state",
					"tx", in.Tx.ID.String(), "ref", ref.String())
			}
		}
		return 0, nil
	}

	spentStores, err := spentStates(ctx, in, store.ValueStoreState)
	if err != nil {
		return 0, err
	}
	spentTreasurers, err := spentStates(ctx, in, store.TreasurerState)
	if err != nil {
		return 0, err
	}

	var payoutOutput *int64
	var tallyInputIndex *int64
	for _, s := range spentTreasurers {
		if !in.Cache.RemoveTreasuryByOutRef(s.Ref) {
			p.env.logger().Warn("spent treasurer state was not tracked", "tx", in.Tx.ID.String(), "ref", s.Ref.String())
		}
		payout, ok := p.payout(in.Tx, s.Ref)
		if !ok {
			continue
		}
		if payout.PayoutIndex < 0 || payout.PayoutIndex >= int64(len(in.Tx.Outputs)) {
			p.env.logger().Warn("payout redeemer references missing output",
				"tx", in.Tx.ID.String(), "payout_index", payout.PayoutIndex)
			continue
		}
		id, err := output(ctx, in, in.Tx.Outputs[payout.PayoutIndex])
		if err != nil {
			return 0, err
		}
		payoutOutput = idPtr(id)
		tallyInputIndex = idPtr(payout.TallyInputIndex)
	}
	for _, t := range createdTreasurers {
		if err := in.Cache.AddTreasury(t); err != nil {
			return 0, invariant(p.Name(), in.Tx, "%v", err)
		}
	}

	var refTally *store.StateRef
	if tallyInputIndex != nil {
		if ref, ok := in.Tx.ReferenceInput(*tallyInputIndex); ok {
			s, found, err := b.StateAt(ctx, store.TallyState, ref)
			if err != nil {
				return 0, err
			}
			if found {
				refTally = &s
			}
		}
	}

	row, err := txRow(ctx, in)
	if err != nil {
		return 0, err
	}
	deltaID, err := b.InsertTreasuryDelta(ctx, row)
	if err != nil {
		return 0, err
	}
	rows := len(createdStores) + len(createdTreasurers) + 1
	if len(spentTreasurers) > 0 && refTally != nil && payoutOutput != nil {
		if _, err := b.InsertTreasuryPayout(ctx, deltaID, spentTreasurers[0].ID, refTally.ID, *payoutOutput); err != nil {
			return 0, err
		}
		rows++
	}

	var delta ledger.Value
	for _, outID := range createdStores {
		v, err := b.OutputValue(ctx, outID)
		if err != nil {
			return 0, err
		}
		delta = delta.Add(v)
	}
	for _, s := range spentStores {
		v, err := b.OutputValue(ctx, s.OutputID)
		if err != nil {
			return 0, err
		}
		delta = delta.Sub(v)
	}
	if err := b.SaveTreasuryDelta(ctx, deltaID, delta); err != nil {
		return 0, err
	}
	return rows, nil
}

func (p *Treasury) persistTreasurer(ctx context.Context, in Input, out ledger.Output, outID int64, s datum.TreasurerState) (store.TreasuryThread, error) {
	b := in.Block
	authID, err := tokenID(ctx, b, s.Params.AuthNFT)
	if err != nil {
		return store.TreasuryThread{}, err
	}
	valueStoreID, err := p.env.addressID(ctx, b, s.Params.ValueStore)
	if err != nil {
		return store.TreasuryThread{}, err
	}
	nftID, err := tokenID(ctx, b, s.Params.TreasurerNFT)
	if err != nil {
		return store.TreasuryThread{}, err
	}
	paramsID, err := b.TreasurerParams(ctx, store.TreasurerParams{
		AuthNFTID:           authID,
		ValueStoreAddressID: valueStoreID,
		TreasurerNFTID:      nftID,
	})
	if err != nil {
		return store.TreasuryThread{}, err
	}
	id, err := b.InsertTreasurerState(ctx, outID, paramsID, s.LastAppliedProposalID)
	if err != nil {
		return store.TreasuryThread{}, err
	}
	policy := p.env.Policies.TreasurerNFT
	return store.TreasuryThread{
		StateID:    id,
		Ref:        ledger.OutRef{TxID: in.Tx.ID, Index: out.Index},
		Thread:     ledger.NewAssetID(policy, out.Value.Names(policy)[0]),
		ValueStore: s.Params.ValueStore.Bytes(p.env.NetworkID),
	}, nil
}

// payout decodes the redeemer that unlocked the treasurer at ref. Only a
// payout moves funds to an approved output; consolidation does not.
func (p *Treasury) payout(tx *ledger.Transaction, ref ledger.OutRef) (datum.PayoutFunds, bool) {
	r, ok := tx.SpendRedeemer(ref)
	if !ok {
		return datum.PayoutFunds{}, false
	}
	res := datum.DecodeTreasurerRedeemer(r.Data)
	if !res.Ok() {
		p.env.logMismatch(p.Name(), "treasurer redeemer", tx, res.Outcome, res.Err)
		return datum.PayoutFunds{}, false
	}
	payout, ok := res.Value.(datum.PayoutFunds)
	if !ok {
		p.env.logger().Debug("treasurer spent with consolidate funds", "tx", tx.ID.String())
	}
	return payout, ok
}
