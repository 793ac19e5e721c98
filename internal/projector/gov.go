package projector

import (
	"context"

	"github.com/roach88/govsync/internal/datum"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/store"
)

// Governance transition actions.
const (
	GovInit        = "init"
	GovCreateTally = "create_tally"
	GovUpgrade     = "upgrade"
	GovUnknown     = "unknown"
)

// Gov projects governance state threads.
type Gov struct {
	env Env
}

func (p *Gov) Name() string { return "gov_state" }

type createdGov struct {
	id     int64
	thread store.GovThread
}

func (p *Gov) Project(ctx context.Context, in Input) (int, error) {
	policy := p.env.Policies.GovStateNFT
	if len(policy) == 0 {
		return 0, nil
	}

	var created []createdGov
	for _, out := range in.Tx.Outputs {
		if !out.Value.HasPolicy(policy) {
			continue
		}
		p.env.logger().Info("transaction carries governance state NFT", "tx", in.Tx.ID.String(), "output", out.Index)
		outID, err := output(ctx, in, out)
		if err != nil {
			return 0, err
		}
		res := datum.DecodeGovState(out.Datum)
		if !res.Ok() {
			p.env.logMismatch(p.Name(), "governance datum", in.Tx, res.Outcome, res.Err, "ref", outRef(in, out))
			continue
		}
		c, err := p.persistState(ctx, in, out, outID, res.Value)
		if err != nil {
			return 0, err
		}
		created = append(created, c)
	}
	if len(created) == 0 {
		p.endThreads(in)
		return 0, nil
	}

	spentGov, err := spentStates(ctx, in, store.GovState)
	if err != nil {
		return 0, err
	}
	if len(spentGov) > 1 {
		return 0, invariant(p.Name(), in.Tx, "spends %d governance states", len(spentGov))
	}

	var prev *int64
	action := GovInit
	if len(spentGov) == 1 {
		s := spentGov[0]
		if !in.Cache.RemoveGovByOutRef(s.Ref) {
			p.env.logger().Warn("spent governance state was not tracked", "tx", in.Tx.ID.String(), "ref", s.Ref.String())
		}
		prev = idPtr(s.ID)
		action = p.action(in.Tx, s.Ref)
	}

	row, err := txRow(ctx, in)
	if err != nil {
		return 0, err
	}
	for _, c := range created {
		if err := in.Cache.AddGov(c.thread); err != nil {
			return 0, invariant(p.Name(), in.Tx, "%v", err)
		}
		if _, err := in.Block.InsertGovUpgrade(ctx, row, prev, c.id, action); err != nil {
			return 0, err
		}
	}
	return 2 * len(created), nil
}

// endThreads drops tracked governance threads spent by a transaction
// that continues none of them.
func (p *Gov) endThreads(in Input) {
	for _, ref := range in.Tx.Inputs {
		if in.Cache.RemoveGovByOutRef(ref) {
			p.env.logger().Warn("governance thread spent without a successor state",
				"tx", in.Tx.ID.String(), "ref", ref.String())
		}
	}
}

func (p *Gov) persistState(ctx context.Context, in Input, out ledger.Output, outID int64, d datum.GovStateDatum) (createdGov, error) {
	b := in.Block
	params := d.Params
	nftName := out.Value.Names(p.env.Policies.GovStateNFT)[0]
	thread := ledger.NewAssetID(p.env.Policies.GovStateNFT, nftName)

	tallyID, err := p.env.addressID(ctx, b, params.TallyAddress)
	if err != nil {
		return createdGov{}, err
	}
	stakingID, err := p.env.addressID(ctx, b, params.StakingAddress)
	if err != nil {
		return createdGov{}, err
	}
	govTokenID, err := tokenID(ctx, b, params.GovernanceToken)
	if err != nil {
		return createdGov{}, err
	}
	nftID, err := b.Token(ctx, thread)
	if err != nil {
		return createdGov{}, err
	}
	paramsID, err := b.GovParams(ctx, store.GovParams{
		TallyAddressID:          tallyID,
		StakingAddressID:        stakingID,
		GovernanceTokenID:       govTokenID,
		VaultFTPolicy:           params.VaultFTPolicy,
		MinQuorum:               params.MinQuorum,
		MinProposalDuration:     params.MinProposalDuration,
		GovStateNFTID:           nftID,
		TallyAuthNFTPolicy:      params.TallyAuthNFTPolicy,
		StakingVoteNFTPolicy:    params.StakingVoteNFTPolicy,
		LatestAppliedProposalID: params.LatestAppliedProposalID,
	})
	if err != nil {
		return createdGov{}, err
	}
	id, err := b.InsertGovState(ctx, outID, paramsID, d.LastProposalID)
	if err != nil {
		return createdGov{}, err
	}
	return createdGov{
		id: id,
		thread: store.GovThread{
			StateID:         id,
			Ref:             ledger.OutRef{TxID: in.Tx.ID, Index: out.Index},
			Thread:          thread,
			TallyAddress:    params.TallyAddress.Bytes(p.env.NetworkID),
			StakingAddress:  params.StakingAddress.Bytes(p.env.NetworkID),
			TallyAuthPolicy: params.TallyAuthNFTPolicy,
		},
	}, nil
}

// action names the transition from the redeemer that unlocked the
// previous governance state.
func (p *Gov) action(tx *ledger.Transaction, ref ledger.OutRef) string {
	r, ok := tx.SpendRedeemer(ref)
	if !ok {
		return GovUnknown
	}
	res := datum.DecodeGovRedeemer(r.Data)
	if !res.Ok() {
		p.env.logMismatch(p.Name(), "governance redeemer", tx, res.Outcome, res.Err)
		return GovUnknown
	}
	switch res.Value.(type) {
	case datum.CreateNewTally:
		return GovCreateTally
	case datum.UpgradeGovState:
		return GovUpgrade
	}
	return GovUnknown
}
