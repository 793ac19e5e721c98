package projector

import (
	"bytes"
	"context"

	"github.com/roach88/govsync/internal/datum"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/plutus"
	"github.com/roach88/govsync/internal/store"
)

// Tally projects tally creations and votes.
type Tally struct {
	env Env
}

func (p *Tally) Name() string { return "tally" }

func (p *Tally) Project(ctx context.Context, in Input) (int, error) {
	authPolicies := in.Cache.TallyAuthPolicies()

	var created []int64
	var participants [][]byte
	for _, out := range in.Tx.Outputs {
		if !in.Cache.IsTallyAddress(out.Address) {
			participants = appendUnique(participants, out.Address)
			continue
		}
		p.env.logger().Info("transaction contains tally", "tx", in.Tx.ID.String(), "output", out.Index)
		if !holdsAny(out.Value, authPolicies) {
			p.env.logger().Warn("tally output without tally auth NFT", "tx", in.Tx.ID.String(), "output", out.Index)
			continue
		}
		outID, err := output(ctx, in, out)
		if err != nil {
			return 0, err
		}
		res := datum.DecodeTallyState(out.Datum)
		if !res.Ok() {
			p.env.logMismatch(p.Name(), "tally datum", in.Tx, res.Outcome, res.Err, "ref", outRef(in, out))
			continue
		}
		id, err := p.persistState(ctx, in, outID, res.Value)
		if err != nil {
			return 0, err
		}
		created = append(created, id)
	}
	if len(created) == 0 {
		return 0, nil
	}

	spentTally, err := spentStates(ctx, in, store.TallyState)
	if err != nil {
		return 0, err
	}
	spentGov, err := spentStates(ctx, in, store.GovState)
	if err != nil {
		return 0, err
	}
	spentStaking, err := spentStates(ctx, in, store.StakingState)
	if err != nil {
		return 0, err
	}

	rows := len(created)
	if len(spentTally) == 0 && len(spentGov) > 0 {
		n, err := p.creations(ctx, in, spentGov[0], created, participants)
		if err != nil {
			return 0, err
		}
		rows += n
	}
	if len(spentTally) > 0 && len(spentStaking) > 0 {
		n, err := p.votes(ctx, in, spentTally[0], spentStaking[0], created)
		if err != nil {
			return 0, err
		}
		rows += n
	}
	return rows, nil
}

func (p *Tally) persistState(ctx context.Context, in Input, outID int64, s datum.TallyState) (int64, error) {
	b := in.Block
	params := s.Params
	authID, err := tokenID(ctx, b, params.TallyAuthNFT)
	if err != nil {
		return 0, err
	}
	stakingID, err := p.env.addressID(ctx, b, params.StakingAddress)
	if err != nil {
		return 0, err
	}
	govTokenID, err := tokenID(ctx, b, params.GovernanceToken)
	if err != nil {
		return 0, err
	}
	kind, at := endTime(params.EndTime)
	paramsID, err := b.TallyParams(ctx, store.TallyParams{
		Quorum:               params.Quorum,
		EndTimeKind:          kind,
		EndTime:              at,
		ProposalID:           params.ProposalID,
		TallyAuthNFTID:       authID,
		StakingVoteNFTPolicy: params.StakingVoteNFTPolicy,
		StakingAddressID:     stakingID,
		GovernanceTokenID:    govTokenID,
		VaultFTPolicy:        params.VaultFTPolicy,
	})
	if err != nil {
		return 0, err
	}
	for i, proposal := range params.Proposals {
		raw, err := plutus.Encode(proposal)
		if err != nil {
			return 0, err
		}
		datumID, err := b.Datum(ctx, raw)
		if err != nil {
			return 0, err
		}
		if err := b.TallyProposal(ctx, paramsID, i, datumID); err != nil {
			return 0, err
		}
	}
	id, err := b.InsertTallyState(ctx, outID, paramsID)
	if err != nil {
		return 0, err
	}
	if err := b.SaveTallyWeights(ctx, id, s.Votes); err != nil {
		return 0, err
	}
	return id, nil
}

// creations records tallies opened from a governance state. Every
// address receiving an output of the transaction outside the tally
// addresses is a participant.
func (p *Tally) creations(ctx context.Context, in Input, gov spent, created []int64, participants [][]byte) (int, error) {
	b := in.Block
	row, err := txRow(ctx, in)
	if err != nil {
		return 0, err
	}
	for _, next := range created {
		creationID, err := b.InsertTallyCreation(ctx, row, gov.ID, next)
		if err != nil {
			return 0, err
		}
		for _, addr := range participants {
			addrID, err := b.Address(ctx, addr)
			if err != nil {
				return 0, err
			}
			if err := b.TallyCreationParticipant(ctx, creationID, addrID); err != nil {
				return 0, err
			}
		}
	}
	return len(created), nil
}

// votes records the weight change between the spent tally and each
// created one. A vote moves weight on exactly one proposal.
func (p *Tally) votes(ctx context.Context, in Input, prev spent, staking spent, created []int64) (int, error) {
	b := in.Block
	prevWeights, err := b.TallyWeights(ctx, prev.ID)
	if err != nil {
		return 0, err
	}
	row, err := txRow(ctx, in)
	if err != nil {
		return 0, err
	}

	rows := 0
	for _, next := range created {
		nextWeights, err := b.TallyWeights(ctx, next)
		if err != nil {
			return 0, err
		}
		changed := changedPositions(prevWeights, nextWeights)
		var position, delta int64
		switch len(changed) {
		case 0:
			idx, ok := p.redeemerIndex(in.Tx, prev.Ref)
			if !ok {
				p.env.logger().Warn("tally spent without weight change or vote redeemer", "tx", in.Tx.ID.String())
				continue
			}
			position = idx
		case 1:
			position = int64(changed[0])
			delta = nextWeights[position] - prevWeights[position]
		default:
			return 0, invariant(p.Name(), in.Tx, "vote changes %d proposal weights", len(changed))
		}
		if _, err := b.InsertTallyVote(ctx, store.TallyVote{
			TransactionID:    row,
			StakingStateID:   staking.ID,
			Position:         position,
			WeightDelta:      delta,
			PrevTallyStateID: prev.ID,
			NextTallyStateID: next,
		}); err != nil {
			return 0, err
		}
		rows++
	}
	return rows, nil
}

// redeemerIndex returns the proposal index named by the redeemer that
// unlocked the tally at ref.
func (p *Tally) redeemerIndex(tx *ledger.Transaction, ref ledger.OutRef) (int64, bool) {
	r, ok := tx.SpendRedeemer(ref)
	if !ok {
		return 0, false
	}
	res := datum.DecodeTallyRedeemer(r.Data)
	if !res.Ok() {
		p.env.logMismatch(p.Name(), "tally redeemer", tx, res.Outcome, res.Err)
		return 0, false
	}
	return res.Value.Index(), true
}

// changedPositions lists the positions present in both vectors whose
// weights differ.
func changedPositions(prev, next []int64) []int {
	var out []int
	for i := 0; i < len(prev) && i < len(next); i++ {
		if prev[i] != next[i] {
			out = append(out, i)
		}
	}
	return out
}

func holdsAny(v ledger.Value, policies [][]byte) bool {
	for _, policy := range policies {
		if v.HasPolicy(policy) {
			return true
		}
	}
	return false
}

func appendUnique(list [][]byte, b []byte) [][]byte {
	for _, have := range list {
		if bytes.Equal(have, b) {
			return list
		}
	}
	return append(list, b)
}
