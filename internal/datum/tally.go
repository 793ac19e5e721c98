package datum

import (
	"github.com/roach88/govsync/internal/plutus"
)

// ProposalParams are the fixed parameters of a tally.
// Proposals are opaque to the indexer and kept as Plutus data.
type ProposalParams struct {
	Quorum               int64
	Proposals            []plutus.Data
	EndTime              ExtendedTime
	ProposalID           int64
	TallyAuthNFT         Token
	StakingVoteNFTPolicy []byte
	StakingAddress       Address
	GovernanceToken      Token
	VaultFTPolicy        []byte
}

// TallyState is the datum of a tally output: one weight per proposal.
type TallyState struct {
	Votes  []int64
	Params ProposalParams
}

// DecodeTallyState decodes a tally datum.
func DecodeTallyState(raw []byte) Result[TallyState] {
	return decodeAs(raw, tallyStateFromData)
}

func tallyStateFromData(d plutus.Data) (TallyState, error) {
	f, err := plutus.AsConstr(d, 0, 2)
	if err != nil {
		return TallyState{}, err
	}
	list, err := plutus.AsList(f[0])
	if err != nil {
		return TallyState{}, field("votes", err)
	}
	var s TallyState
	s.Votes = make([]int64, 0, len(list))
	for _, item := range list {
		v, err := intField(item, "votes")
		if err != nil {
			return TallyState{}, err
		}
		s.Votes = append(s.Votes, v)
	}
	if s.Params, err = proposalParamsFromData(f[1]); err != nil {
		return TallyState{}, field("params", err)
	}
	return s, nil
}

func proposalParamsFromData(d plutus.Data) (ProposalParams, error) {
	f, err := plutus.AsConstr(d, 0, 9)
	if err != nil {
		return ProposalParams{}, err
	}
	var p ProposalParams
	if p.Quorum, err = intField(f[0], "quorum"); err != nil {
		return p, err
	}
	if p.Proposals, err = plutus.AsList(f[1]); err != nil {
		return p, field("proposals", err)
	}
	if p.EndTime, err = extendedTimeFromData(f[2]); err != nil {
		return p, field("end_time", err)
	}
	if p.ProposalID, err = intField(f[3], "proposal_id"); err != nil {
		return p, err
	}
	if p.TallyAuthNFT, err = tokenFromData(f[4]); err != nil {
		return p, field("tally_auth_nft", err)
	}
	if p.StakingVoteNFTPolicy, err = bytesField(f[5], "staking_vote_nft_policy"); err != nil {
		return p, err
	}
	if p.StakingAddress, err = addressFromData(f[6]); err != nil {
		return p, field("staking_address", err)
	}
	if p.GovernanceToken, err = tokenFromData(f[7]); err != nil {
		return p, field("governance_token", err)
	}
	if p.VaultFTPolicy, err = bytesField(f[8], "vault_ft_policy"); err != nil {
		return p, err
	}
	return p, nil
}

// ToData encodes the tally state in its on-chain form.
func (s TallyState) ToData() plutus.Data {
	votes := make(plutus.List, 0, len(s.Votes))
	for _, v := range s.Votes {
		votes = append(votes, plutus.NewInt(v))
	}
	p := s.Params
	proposals := plutus.List(p.Proposals)
	if proposals == nil {
		proposals = plutus.List{}
	}
	params := plutus.NewConstr(0,
		plutus.NewInt(p.Quorum),
		proposals,
		p.EndTime.ToData(),
		plutus.NewInt(p.ProposalID),
		p.TallyAuthNFT.ToData(),
		plutus.Bytes(p.StakingVoteNFTPolicy),
		p.StakingAddress.ToData(),
		p.GovernanceToken.ToData(),
		plutus.Bytes(p.VaultFTPolicy),
	)
	return plutus.NewConstr(0, votes, params)
}

// TallyRedeemer is the closed set of spend reasons for a tally.
type TallyRedeemer interface {
	tallyRedeemer()
	// Index is the proposal the vote applies to.
	Index() int64
}

// AddTallyVote adds a staking position's weight to a proposal.
type AddTallyVote struct {
	ProposalIndex      int64
	Weight             int64
	VoterAddress       Address
	TallyInputIndex    int64
	TallyOutputIndex   int64
	StakingOutputIndex int64
	StakingInputIndex  int64
	HasStakingInput    bool
}

// RetractTallyVote removes a previously cast vote.
type RetractTallyVote struct {
	ProposalIndex             int64
	Weight                    int64
	VoterAddress              Address
	TallyInputIndex           int64
	TallyOutputIndex          int64
	StakingOutputIndex        int64
	StakingParticipationIndex int64
}

func (AddTallyVote) tallyRedeemer()     {}
func (RetractTallyVote) tallyRedeemer() {}

func (r AddTallyVote) Index() int64     { return r.ProposalIndex }
func (r RetractTallyVote) Index() int64 { return r.ProposalIndex }

// DecodeTallyRedeemer decodes a tally spend redeemer.
func DecodeTallyRedeemer(raw []byte) Result[TallyRedeemer] {
	return decodeAs(raw, tallyRedeemerFromData)
}

func tallyRedeemerFromData(d plutus.Data) (TallyRedeemer, error) {
	c, ok := d.(plutus.Constr)
	if !ok || (c.Index != 1 && c.Index != 2) || len(c.Fields) != 7 {
		return nil, &plutus.ShapeError{Want: "tally redeemer", Got: plutus.String(d)}
	}
	f := c.Fields
	var nums [5]int64
	for i, idx := range []int{0, 1, 3, 4, 5} {
		v, err := plutus.AsInt64(f[idx])
		if err != nil {
			return nil, err
		}
		nums[i] = v
	}
	voter, err := addressFromData(f[2])
	if err != nil {
		return nil, field("voter_address", err)
	}

	if c.Index == 2 {
		idx, err := intField(f[6], "staking_participation_index")
		if err != nil {
			return nil, err
		}
		return RetractTallyVote{
			ProposalIndex:             nums[0],
			Weight:                    nums[1],
			VoterAddress:              voter,
			TallyInputIndex:           nums[2],
			TallyOutputIndex:          nums[3],
			StakingOutputIndex:        nums[4],
			StakingParticipationIndex: idx,
		}, nil
	}

	vote := AddTallyVote{
		ProposalIndex:      nums[0],
		Weight:             nums[1],
		VoterAddress:       voter,
		TallyInputIndex:    nums[2],
		TallyOutputIndex:   nums[3],
		StakingOutputIndex: nums[4],
	}
	// OptionalInt: BoxedInt is constr 0 with one field, Nothing has none.
	opt, ok := f[6].(plutus.Constr)
	if !ok {
		return nil, &plutus.ShapeError{Want: "optional int", Got: plutus.String(f[6])}
	}
	if len(opt.Fields) == 1 {
		v, err := intField(opt.Fields[0], "staking_input_index")
		if err != nil {
			return nil, err
		}
		vote.StakingInputIndex = v
		vote.HasStakingInput = true
	}
	return vote, nil
}
