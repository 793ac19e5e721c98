package datum

import (
	"github.com/roach88/govsync/internal/plutus"
)

// TreasurerParams are the fixed parameters of a treasurer thread.
type TreasurerParams struct {
	AuthNFT      Token
	ValueStore   Address
	TreasurerNFT Token
}

// TreasurerState is the datum of a treasurer output.
type TreasurerState struct {
	Params                TreasurerParams
	LastAppliedProposalID int64
}

// ValueStoreState is the datum of an output holding treasury funds.
type ValueStoreState struct {
	TreasurerNFT Token
}

// DecodeTreasurerState decodes a treasurer datum.
func DecodeTreasurerState(raw []byte) Result[TreasurerState] {
	return decodeAs(raw, func(d plutus.Data) (TreasurerState, error) {
		f, err := plutus.AsConstr(d, 1, 2)
		if err != nil {
			return TreasurerState{}, err
		}
		pf, err := plutus.AsConstr(f[0], 1, 3)
		if err != nil {
			return TreasurerState{}, field("params", err)
		}
		var s TreasurerState
		if s.Params.AuthNFT, err = tokenFromData(pf[0]); err != nil {
			return s, field("auth_nft", err)
		}
		if s.Params.ValueStore, err = addressFromData(pf[1]); err != nil {
			return s, field("value_store", err)
		}
		if s.Params.TreasurerNFT, err = tokenFromData(pf[2]); err != nil {
			return s, field("treasurer_nft", err)
		}
		if s.LastAppliedProposalID, err = intField(f[1], "last_applied_proposal_id"); err != nil {
			return s, err
		}
		return s, nil
	})
}

// ToData encodes the treasurer state in its on-chain form.
func (s TreasurerState) ToData() plutus.Data {
	params := plutus.NewConstr(1,
		s.Params.AuthNFT.ToData(),
		s.Params.ValueStore.ToData(),
		s.Params.TreasurerNFT.ToData(),
	)
	return plutus.NewConstr(1, params, plutus.NewInt(s.LastAppliedProposalID))
}

// DecodeValueStoreState decodes a value store datum.
func DecodeValueStoreState(raw []byte) Result[ValueStoreState] {
	return decodeAs(raw, func(d plutus.Data) (ValueStoreState, error) {
		f, err := plutus.AsConstr(d, 1, 1)
		if err != nil {
			return ValueStoreState{}, err
		}
		tok, err := tokenFromData(f[0])
		if err != nil {
			return ValueStoreState{}, field("treasurer_nft", err)
		}
		return ValueStoreState{TreasurerNFT: tok}, nil
	})
}

// ToData encodes the value store state in its on-chain form.
func (s ValueStoreState) ToData() plutus.Data {
	return plutus.NewConstr(1, s.TreasurerNFT.ToData())
}

// TreasurerRedeemer is the closed set of spend reasons for a treasurer.
type TreasurerRedeemer interface {
	treasurerRedeemer()
}

// PayoutFunds releases funds to an output as decided by a tally.
type PayoutFunds struct {
	TreasurerInputIndex  int64
	TreasurerOutputIndex int64
	NextProposalID       int64
	PayoutIndex          int64
	TallyInputIndex      int64
}

// ConsolidateFunds merges value store outputs without paying out.
type ConsolidateFunds struct {
	TreasurerInputIndex  int64
	TreasurerOutputIndex int64
	NextProposalID       int64
}

func (PayoutFunds) treasurerRedeemer()      {}
func (ConsolidateFunds) treasurerRedeemer() {}

// DecodeTreasurerRedeemer decodes a treasurer spend redeemer.
func DecodeTreasurerRedeemer(raw []byte) Result[TreasurerRedeemer] {
	return decodeAs(raw, func(d plutus.Data) (TreasurerRedeemer, error) {
		if nums, err := ints(d, 2, 5); err == nil {
			return PayoutFunds{
				TreasurerInputIndex:  nums[0],
				TreasurerOutputIndex: nums[1],
				NextProposalID:       nums[2],
				PayoutIndex:          nums[3],
				TallyInputIndex:      nums[4],
			}, nil
		}
		nums, err := ints(d, 3, 3)
		if err != nil {
			return nil, &plutus.ShapeError{Want: "treasurer redeemer", Got: plutus.String(d)}
		}
		return ConsolidateFunds{
			TreasurerInputIndex:  nums[0],
			TreasurerOutputIndex: nums[1],
			NextProposalID:       nums[2],
		}, nil
	})
}
