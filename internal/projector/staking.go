package projector

import (
	"context"

	"github.com/roach88/govsync/internal/datum"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/store"
)

// Staking projects staking positions and vote permission mints.
type Staking struct {
	env Env
}

func (p *Staking) Name() string { return "staking" }

type createdStake struct {
	id       int64
	outputID int64
	paramsID int64
}

func (p *Staking) Project(ctx context.Context, in Input) (int, error) {
	var created []createdStake
	for _, out := range in.Tx.Outputs {
		if !in.Cache.IsStakingAddress(out.Address) {
			continue
		}
		p.env.logger().Debug("staking transaction", "tx", in.Tx.ID.String(), "output", out.Index)
		outID, err := output(ctx, in, out)
		if err != nil {
			return 0, err
		}
		res := datum.DecodeStakingState(out.Datum)
		if !res.Ok() {
			p.env.logMismatch(p.Name(), "staking datum", in.Tx, res.Outcome, res.Err, "ref", outRef(in, out))
			continue
		}
		c, err := p.persistState(ctx, in, outID, res.Value)
		if err != nil {
			return 0, err
		}
		created = append(created, c)
	}

	rows := 0
	if len(created) > 0 {
		n, err := p.deposits(ctx, in, created)
		if err != nil {
			return 0, err
		}
		rows += n
	}

	n, err := p.votePermissions(ctx, in)
	if err != nil {
		return 0, err
	}
	return rows + n, nil
}

func (p *Staking) persistState(ctx context.Context, in Input, outID int64, s datum.StakingState) (createdStake, error) {
	b := in.Block
	ownerID, err := p.env.addressID(ctx, b, s.Params.Owner)
	if err != nil {
		return createdStake{}, err
	}
	govTokenID, err := tokenID(ctx, b, s.Params.GovernanceToken)
	if err != nil {
		return createdStake{}, err
	}
	authID, err := tokenID(ctx, b, s.Params.TallyAuthNFT)
	if err != nil {
		return createdStake{}, err
	}
	paramsID, err := b.StakingParams(ctx, store.StakingParams{
		OwnerAddressID:    ownerID,
		GovernanceTokenID: govTokenID,
		VaultFTPolicy:     s.Params.VaultFTPolicy,
		TallyAuthNFTID:    authID,
	})
	if err != nil {
		return createdStake{}, err
	}
	stateID, err := b.InsertStakingState(ctx, outID, paramsID)
	if err != nil {
		return createdStake{}, err
	}

	for i, part := range s.Participations {
		partAuthID, err := tokenID(ctx, b, part.TallyAuthNFT)
		if err != nil {
			return createdStake{}, err
		}
		kind, at := endTime(part.EndTime)
		partID, err := b.StakingParticipation(ctx, store.Participation{
			TallyAuthNFTID: partAuthID,
			ProposalID:     part.ProposalID,
			Weight:         part.Weight,
			ProposalIndex:  part.ProposalIndex,
			EndTimeKind:    kind,
			EndTime:        at,
		})
		if err != nil {
			return createdStake{}, err
		}
		if err := b.LinkParticipation(ctx, stateID, partID, i); err != nil {
			return createdStake{}, err
		}
	}
	return createdStake{id: stateID, outputID: outID, paramsID: paramsID}, nil
}

// deposits links each created position to the position it replaces and
// records the value and participation changes.
func (p *Staking) deposits(ctx context.Context, in Input, created []createdStake) (int, error) {
	b := in.Block
	prevStates, err := spentStates(ctx, in, store.StakingState)
	if err != nil {
		return 0, err
	}
	row, err := txRow(ctx, in)
	if err != nil {
		return 0, err
	}

	used := make([]bool, len(prevStates))
	for _, c := range created {
		prev := pairStake(prevStates, used, c.paramsID)

		var prevID *int64
		var prevValue ledger.Value
		var prevParts []int64
		action := string(datum.StakingCreate)
		if prev != nil {
			prevID = idPtr(prev.ID)
			if prevValue, err = b.OutputValue(ctx, prev.OutputID); err != nil {
				return 0, err
			}
			if prevParts, err = b.StakingParticipations(ctx, prev.ID); err != nil {
				return 0, err
			}
			action = string(p.action(in.Tx, prev.Ref))
		}

		depositID, err := b.InsertStakingDeposit(ctx, row, prevID, c.id, action)
		if err != nil {
			return 0, err
		}
		nextValue, err := b.OutputValue(ctx, c.outputID)
		if err != nil {
			return 0, err
		}
		if err := b.SaveStakingDelta(ctx, depositID, nextValue.Sub(prevValue)); err != nil {
			return 0, err
		}

		nextParts, err := b.StakingParticipations(ctx, c.id)
		if err != nil {
			return 0, err
		}
		for _, id := range prevParts {
			if !containsID(nextParts, id) {
				if err := b.ParticipationRemoved(ctx, depositID, id); err != nil {
					return 0, err
				}
			}
		}
		for _, id := range nextParts {
			if !containsID(prevParts, id) {
				if err := b.ParticipationAdded(ctx, depositID, id); err != nil {
					return 0, err
				}
			}
		}
	}
	return 2 * len(created), nil
}

// pairStake picks the spent position a created one continues: an unused
// one with the same parameters, else the first unused one.
func pairStake(prev []spent, used []bool, paramsID int64) *spent {
	for i := range prev {
		if !used[i] && prev[i].ParamsID == paramsID {
			used[i] = true
			return &prev[i]
		}
	}
	for i := range prev {
		if !used[i] {
			used[i] = true
			return &prev[i]
		}
	}
	return nil
}

func (p *Staking) action(tx *ledger.Transaction, ref ledger.OutRef) datum.StakingAction {
	r, ok := tx.SpendRedeemer(ref)
	if !ok {
		return datum.StakingUnknown
	}
	res := datum.DecodeStakingRedeemer(r.Data)
	if !res.Ok() {
		p.env.logMismatch(p.Name(), "staking redeemer", tx, res.Outcome, res.Err)
		return datum.StakingUnknown
	}
	return res.Value.Action
}

// votePermissions records outputs receiving a freshly minted vote
// permission. The permission token is named by the datum hash of the mint
// redeemer that describes the delegated action.
func (p *Staking) votePermissions(ctx context.Context, in Input) (int, error) {
	policy := p.env.Policies.VotePermissionNFT
	if len(policy) == 0 {
		return 0, nil
	}
	minted := in.Tx.Minted(policy)
	if len(minted) == 0 {
		return 0, nil
	}

	b := in.Block
	names := make(map[string]bool, len(minted))
	for _, m := range minted {
		if _, err := b.Token(ctx, m.Asset); err != nil {
			return 0, err
		}
		names[m.Asset.Name] = true
	}

	rows := 0
	for _, r := range in.Tx.RedeemersByTag(ledger.RedeemerMint) {
		hash := ledger.HashDatum(r.Data)
		if !names[string(hash[:])] {
			continue
		}
		asset := ledger.NewAssetID(policy, hash[:])
		for _, out := range in.Tx.Outputs {
			if out.Value.Quantity(asset) <= 0 {
				continue
			}
			tokID, err := b.Token(ctx, asset)
			if err != nil {
				return 0, err
			}
			datumID, err := b.Datum(ctx, r.Data)
			if err != nil {
				return 0, err
			}
			permID, err := b.VotePermission(ctx, tokID, datumID)
			if err != nil {
				return 0, err
			}
			outID, err := output(ctx, in, out)
			if err != nil {
				return 0, err
			}
			row, err := txRow(ctx, in)
			if err != nil {
				return 0, err
			}
			if _, err := b.InsertVotePermissionMint(ctx, row, permID, outID); err != nil {
				return 0, err
			}
			rows++
		}
	}
	return rows, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
