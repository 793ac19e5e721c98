package datum

import (
	"github.com/roach88/govsync/internal/plutus"
)

// GovStateParams are the parameters of a governance thread.
type GovStateParams struct {
	TallyAddress            Address
	StakingAddress          Address
	GovernanceToken         Token
	VaultFTPolicy           []byte
	MinQuorum               int64
	MinProposalDuration     int64
	GovStateNFT             Token
	TallyAuthNFTPolicy      []byte
	StakingVoteNFTPolicy    []byte
	LatestAppliedProposalID int64
}

// GovStateDatum is the datum held by a governance state output.
type GovStateDatum struct {
	Params         GovStateParams
	LastProposalID int64
}

// DecodeGovState decodes a governance state datum.
func DecodeGovState(raw []byte) Result[GovStateDatum] {
	return decodeAs(raw, govStateFromData)
}

func govStateFromData(d plutus.Data) (GovStateDatum, error) {
	f, err := plutus.AsConstr(d, 0, 2)
	if err != nil {
		return GovStateDatum{}, err
	}
	params, err := govParamsFromData(f[0])
	if err != nil {
		return GovStateDatum{}, field("params", err)
	}
	last, err := intField(f[1], "last_proposal_id")
	if err != nil {
		return GovStateDatum{}, err
	}
	return GovStateDatum{Params: params, LastProposalID: last}, nil
}

func govParamsFromData(d plutus.Data) (GovStateParams, error) {
	f, err := plutus.AsConstr(d, 0, 10)
	if err != nil {
		return GovStateParams{}, err
	}
	var p GovStateParams
	if p.TallyAddress, err = addressFromData(f[0]); err != nil {
		return p, field("tally_address", err)
	}
	if p.StakingAddress, err = addressFromData(f[1]); err != nil {
		return p, field("staking_address", err)
	}
	if p.GovernanceToken, err = tokenFromData(f[2]); err != nil {
		return p, field("governance_token", err)
	}
	if p.VaultFTPolicy, err = bytesField(f[3], "vault_ft_policy"); err != nil {
		return p, err
	}
	if p.MinQuorum, err = intField(f[4], "min_quorum"); err != nil {
		return p, err
	}
	if p.MinProposalDuration, err = intField(f[5], "min_proposal_duration"); err != nil {
		return p, err
	}
	if p.GovStateNFT, err = tokenFromData(f[6]); err != nil {
		return p, field("gov_state_nft", err)
	}
	if p.TallyAuthNFTPolicy, err = bytesField(f[7], "tally_auth_nft_policy"); err != nil {
		return p, err
	}
	if p.StakingVoteNFTPolicy, err = bytesField(f[8], "staking_vote_nft_policy"); err != nil {
		return p, err
	}
	if p.LatestAppliedProposalID, err = intField(f[9], "latest_applied_proposal_id"); err != nil {
		return p, err
	}
	return p, nil
}

// ToData encodes the datum in its on-chain form.
func (g GovStateDatum) ToData() plutus.Data {
	p := g.Params
	params := plutus.NewConstr(0,
		p.TallyAddress.ToData(),
		p.StakingAddress.ToData(),
		p.GovernanceToken.ToData(),
		plutus.Bytes(p.VaultFTPolicy),
		plutus.NewInt(p.MinQuorum),
		plutus.NewInt(p.MinProposalDuration),
		p.GovStateNFT.ToData(),
		plutus.Bytes(p.TallyAuthNFTPolicy),
		plutus.Bytes(p.StakingVoteNFTPolicy),
		plutus.NewInt(p.LatestAppliedProposalID),
	)
	return plutus.NewConstr(0, params, plutus.NewInt(g.LastProposalID))
}

// GovRedeemer is the closed set of spend reasons for a governance state.
type GovRedeemer interface {
	govRedeemer()
}

// CreateNewTally opens a new tally from the governance state.
type CreateNewTally struct {
	GovStateInputIndex  int64
	GovStateOutputIndex int64
	TallyOutputIndex    int64
}

// UpgradeGovState applies a winning proposal to the governance state.
type UpgradeGovState struct {
	GovStateInputIndex  int64
	GovStateOutputIndex int64
	TallyInputIndex     int64
}

func (CreateNewTally) govRedeemer()  {}
func (UpgradeGovState) govRedeemer() {}

// DecodeGovRedeemer decodes a governance state spend redeemer.
func DecodeGovRedeemer(raw []byte) Result[GovRedeemer] {
	return decodeAs(raw, govRedeemerFromData)
}

func govRedeemerFromData(d plutus.Data) (GovRedeemer, error) {
	c, ok := d.(plutus.Constr)
	if !ok {
		return nil, &plutus.ShapeError{Want: "gov state redeemer", Got: plutus.String(d)}
	}
	nums, err := ints(d, c.Index, 3)
	if err != nil {
		return nil, err
	}
	switch c.Index {
	case 1:
		return CreateNewTally{GovStateInputIndex: nums[0], GovStateOutputIndex: nums[1], TallyOutputIndex: nums[2]}, nil
	case 2:
		return UpgradeGovState{GovStateInputIndex: nums[0], GovStateOutputIndex: nums[1], TallyInputIndex: nums[2]}, nil
	}
	return nil, &plutus.ShapeError{Want: "gov state redeemer", Got: plutus.String(d)}
}

// ints reads a constructor whose fields are all integers.
func ints(d plutus.Data, index uint64, arity int) ([]int64, error) {
	f, err := plutus.AsConstr(d, index, arity)
	if err != nil {
		return nil, err
	}
	out := make([]int64, arity)
	for i := range f {
		if out[i], err = plutus.AsInt64(f[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
