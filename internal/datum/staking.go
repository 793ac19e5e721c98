package datum

import (
	"github.com/roach88/govsync/internal/plutus"
)

// StakingParams are the fixed parameters of a staking position.
type StakingParams struct {
	Owner           Address
	GovernanceToken Token
	VaultFTPolicy   []byte
	TallyAuthNFT    Token
}

// Participation records a vote cast from a staking position.
type Participation struct {
	TallyAuthNFT  Token
	ProposalID    int64
	Weight        int64
	ProposalIndex int64
	EndTime       ExtendedTime
}

// StakingState is the datum of a staking output.
type StakingState struct {
	Participations []Participation
	Params         StakingParams
}

// DecodeStakingState decodes a staking datum.
func DecodeStakingState(raw []byte) Result[StakingState] {
	return decodeAs(raw, stakingStateFromData)
}

func stakingStateFromData(d plutus.Data) (StakingState, error) {
	f, err := plutus.AsConstr(d, 0, 2)
	if err != nil {
		return StakingState{}, err
	}
	list, err := plutus.AsList(f[0])
	if err != nil {
		return StakingState{}, field("participations", err)
	}
	var s StakingState
	s.Participations = make([]Participation, 0, len(list))
	for _, item := range list {
		p, err := participationFromData(item)
		if err != nil {
			return StakingState{}, field("participations", err)
		}
		s.Participations = append(s.Participations, p)
	}
	if s.Params, err = stakingParamsFromData(f[1]); err != nil {
		return StakingState{}, field("params", err)
	}
	return s, nil
}

func stakingParamsFromData(d plutus.Data) (StakingParams, error) {
	f, err := plutus.AsConstr(d, 0, 4)
	if err != nil {
		return StakingParams{}, err
	}
	var p StakingParams
	if p.Owner, err = addressFromData(f[0]); err != nil {
		return p, field("owner", err)
	}
	if p.GovernanceToken, err = tokenFromData(f[1]); err != nil {
		return p, field("governance_token", err)
	}
	if p.VaultFTPolicy, err = bytesField(f[2], "vault_ft_policy"); err != nil {
		return p, err
	}
	if p.TallyAuthNFT, err = tokenFromData(f[3]); err != nil {
		return p, field("tally_auth_nft", err)
	}
	return p, nil
}

func participationFromData(d plutus.Data) (Participation, error) {
	f, err := plutus.AsConstr(d, 0, 5)
	if err != nil {
		return Participation{}, err
	}
	var p Participation
	if p.TallyAuthNFT, err = tokenFromData(f[0]); err != nil {
		return p, field("tally_auth_nft", err)
	}
	if p.ProposalID, err = intField(f[1], "proposal_id"); err != nil {
		return p, err
	}
	if p.Weight, err = intField(f[2], "weight"); err != nil {
		return p, err
	}
	if p.ProposalIndex, err = intField(f[3], "proposal_index"); err != nil {
		return p, err
	}
	if p.EndTime, err = extendedTimeFromData(f[4]); err != nil {
		return p, field("end_time", err)
	}
	return p, nil
}

// ToData encodes the participation in its on-chain form.
func (p Participation) ToData() plutus.Data {
	return plutus.NewConstr(0,
		p.TallyAuthNFT.ToData(),
		plutus.NewInt(p.ProposalID),
		plutus.NewInt(p.Weight),
		plutus.NewInt(p.ProposalIndex),
		p.EndTime.ToData(),
	)
}

// ToData encodes the staking state in its on-chain form.
func (s StakingState) ToData() plutus.Data {
	parts := make(plutus.List, 0, len(s.Participations))
	for _, p := range s.Participations {
		parts = append(parts, p.ToData())
	}
	params := plutus.NewConstr(0,
		s.Params.Owner.ToData(),
		s.Params.GovernanceToken.ToData(),
		plutus.Bytes(s.Params.VaultFTPolicy),
		s.Params.TallyAuthNFT.ToData(),
	)
	return plutus.NewConstr(0, parts, params)
}

// StakingAction names the reason a staking position was spent.
type StakingAction string

const (
	StakingCreate        StakingAction = "create"
	StakingAddVote       StakingAction = "add_vote"
	StakingRetractVote   StakingAction = "retract_vote"
	StakingWithdrawFunds StakingAction = "withdraw_funds"
	StakingAddFunds      StakingAction = "add_funds"
	StakingFilterVotes   StakingAction = "filter_outdated_votes"
	StakingUnknown       StakingAction = "unknown"
)

// StakingRedeemer is the closed set of spend reasons for a staking output.
// Only the constructor matters to the indexer, so fields are not kept.
type StakingRedeemer struct {
	Action StakingAction
}

// DecodeStakingRedeemer decodes a staking spend redeemer.
func DecodeStakingRedeemer(raw []byte) Result[StakingRedeemer] {
	return decodeAs(raw, func(d plutus.Data) (StakingRedeemer, error) {
		c, ok := d.(plutus.Constr)
		if !ok {
			return StakingRedeemer{}, &plutus.ShapeError{Want: "staking redeemer", Got: plutus.String(d)}
		}
		arity := map[uint64]int{1: 3, 2: 4, 3: 2, 4: 2, 5: 2}
		actions := map[uint64]StakingAction{
			1: StakingAddVote,
			2: StakingRetractVote,
			3: StakingWithdrawFunds,
			4: StakingAddFunds,
			5: StakingFilterVotes,
		}
		n, known := arity[c.Index]
		if !known || len(c.Fields) != n {
			return StakingRedeemer{}, &plutus.ShapeError{Want: "staking redeemer", Got: plutus.String(d)}
		}
		return StakingRedeemer{Action: actions[c.Index]}, nil
	})
}
