package testutil

import (
	"bytes"

	"github.com/roach88/govsync/internal/datum"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/plutus"
)

// Hash28 returns a 28-byte hash (policy id or credential) filled with b.
func Hash28(b byte) []byte {
	return bytes.Repeat([]byte{b}, 28)
}

// Deployment is a complete protocol deployment on a test network: the
// policies the indexer is configured with and the parameters the on-chain
// datums carry.
type Deployment struct {
	Network byte

	GovStateNFTPolicy       []byte
	VotePermissionNFTPolicy []byte
	LicensesPolicy          []byte
	TreasurerNFTPolicy      []byte
	TallyAuthNFTPolicy      []byte
	StakingVoteNFTPolicy    []byte
	VaultFTPolicy           []byte

	GovernanceToken datum.Token
	GovStateNFT     datum.Token
	TallyAuthNFT    datum.Token
	TreasurerNFT    datum.Token
	AuthNFT         datum.Token

	TallyAddress      datum.Address
	StakingAddress    datum.Address
	ValueStoreAddress datum.Address
	TreasurerAddress  datum.Address
	GovAddress        datum.Address
	Owner             datum.Address
}

// NewDeployment returns the fixed test deployment.
func NewDeployment() *Deployment {
	script := func(b byte) datum.Address {
		return datum.Address{Payment: datum.Credential{Kind: datum.ScriptCredential, Hash: Hash28(b)}}
	}
	d := &Deployment{
		Network:                 datum.TestnetID,
		GovStateNFTPolicy:       Hash28(0xa0),
		VotePermissionNFTPolicy: Hash28(0xa1),
		LicensesPolicy:          Hash28(0xa2),
		TreasurerNFTPolicy:      Hash28(0xa3),
		TallyAuthNFTPolicy:      Hash28(0xa4),
		StakingVoteNFTPolicy:    Hash28(0xa5),
		VaultFTPolicy:           Hash28(0xa6),
		TallyAddress:            script(0xb0),
		StakingAddress:          script(0xb1),
		ValueStoreAddress:       script(0xb2),
		TreasurerAddress:        script(0xb3),
		GovAddress:              script(0xb4),
		Owner: datum.Address{
			Payment: datum.Credential{Kind: datum.KeyCredential, Hash: Hash28(0xc0)},
			Staking: &datum.StakingRef{Hash: &datum.Credential{Kind: datum.KeyCredential, Hash: Hash28(0xc1)}},
		},
	}
	d.GovernanceToken = datum.Token{Policy: Hash28(0xa7), Name: []byte("GOV")}
	d.GovStateNFT = datum.Token{Policy: d.GovStateNFTPolicy, Name: []byte("gov-thread")}
	d.TallyAuthNFT = datum.Token{Policy: d.TallyAuthNFTPolicy, Name: []byte("tally-auth")}
	d.TreasurerNFT = datum.Token{Policy: d.TreasurerNFTPolicy, Name: []byte("treasurer")}
	d.AuthNFT = datum.Token{Policy: Hash28(0xa8), Name: []byte("auth")}
	return d
}

// Addr renders a datum address in ledger form for this network.
func (d *Deployment) Addr(a datum.Address) []byte {
	return a.Bytes(d.Network)
}

// Asset converts a datum token to a ledger asset id.
func Asset(t datum.Token) ledger.AssetID {
	return ledger.NewAssetID(t.Policy, t.Name)
}

// Coins is a value holding only the native coin.
func Coins(n int64) ledger.Value {
	return ledger.ValueOf(ledger.Amount{Asset: ledger.Coin, Quantity: n})
}

// With returns v plus quantity of token.
func With(v ledger.Value, t datum.Token, quantity int64) ledger.Value {
	return v.Add(ledger.ValueOf(ledger.Amount{Asset: Asset(t), Quantity: quantity}))
}

// GovState returns the governance state datum of the deployment.
func (d *Deployment) GovState(lastProposalID int64) datum.GovStateDatum {
	return datum.GovStateDatum{
		Params: datum.GovStateParams{
			TallyAddress:            d.TallyAddress,
			StakingAddress:          d.StakingAddress,
			GovernanceToken:         d.GovernanceToken,
			VaultFTPolicy:           d.VaultFTPolicy,
			MinQuorum:               100,
			MinProposalDuration:     86_400_000,
			GovStateNFT:             d.GovStateNFT,
			TallyAuthNFTPolicy:      d.TallyAuthNFTPolicy,
			StakingVoteNFTPolicy:    d.StakingVoteNFTPolicy,
			LatestAppliedProposalID: 0,
		},
		LastProposalID: lastProposalID,
	}
}

// GovDatum encodes the governance state datum.
func (d *Deployment) GovDatum(lastProposalID int64) []byte {
	return plutus.MustEncode(d.GovState(lastProposalID).ToData())
}

// GovValue is the value of a governance state output.
func (d *Deployment) GovValue() ledger.Value {
	return With(Coins(2_000_000), d.GovStateNFT, 1)
}

// Participation is a vote held by a staking position.
func (d *Deployment) Participation(proposalID, weight, index int64) datum.Participation {
	return datum.Participation{
		TallyAuthNFT:  d.TallyAuthNFT,
		ProposalID:    proposalID,
		Weight:        weight,
		ProposalIndex: index,
		EndTime:       datum.ExtendedTime{Kind: datum.Finite, Millis: 1_700_000_000_000},
	}
}

// StakingDatum encodes a staking state owned by the deployment owner.
func (d *Deployment) StakingDatum(parts ...datum.Participation) []byte {
	if parts == nil {
		parts = []datum.Participation{}
	}
	s := datum.StakingState{
		Participations: parts,
		Params: datum.StakingParams{
			Owner:           d.Owner,
			GovernanceToken: d.GovernanceToken,
			VaultFTPolicy:   d.VaultFTPolicy,
			TallyAuthNFT:    d.TallyAuthNFT,
		},
	}
	return plutus.MustEncode(s.ToData())
}

// StakingValue is the value of a staking position holding stake tokens.
func (d *Deployment) StakingValue(stake int64) ledger.Value {
	return With(Coins(2_000_000), d.GovernanceToken, stake)
}

// TallyDatum encodes a tally with one weight per proposal.
func (d *Deployment) TallyDatum(proposalID int64, votes ...int64) []byte {
	proposals := make([]plutus.Data, len(votes))
	for i := range votes {
		proposals[i] = plutus.NewConstr(uint64(i % 2))
	}
	s := datum.TallyState{
		Votes: votes,
		Params: datum.ProposalParams{
			Quorum:               100,
			Proposals:            proposals,
			EndTime:              datum.ExtendedTime{Kind: datum.Finite, Millis: 1_800_000_000_000},
			ProposalID:           proposalID,
			TallyAuthNFT:         d.TallyAuthNFT,
			StakingVoteNFTPolicy: d.StakingVoteNFTPolicy,
			StakingAddress:       d.StakingAddress,
			GovernanceToken:      d.GovernanceToken,
			VaultFTPolicy:        d.VaultFTPolicy,
		},
	}
	return plutus.MustEncode(s.ToData())
}

// TallyValue is the value of a tally output.
func (d *Deployment) TallyValue() ledger.Value {
	return With(Coins(2_000_000), d.TallyAuthNFT, 1)
}

// TreasurerDatum encodes the treasurer state of the deployment.
func (d *Deployment) TreasurerDatum(lastApplied int64) []byte {
	s := datum.TreasurerState{
		Params: datum.TreasurerParams{
			AuthNFT:      d.AuthNFT,
			ValueStore:   d.ValueStoreAddress,
			TreasurerNFT: d.TreasurerNFT,
		},
		LastAppliedProposalID: lastApplied,
	}
	return plutus.MustEncode(s.ToData())
}

// TreasurerValue is the value of a treasurer output.
func (d *Deployment) TreasurerValue() ledger.Value {
	return With(Coins(2_000_000), d.TreasurerNFT, 1)
}

// ValueStoreDatum encodes a value store datum bound to the treasurer.
func (d *Deployment) ValueStoreDatum() []byte {
	return plutus.MustEncode(datum.ValueStoreState{TreasurerNFT: d.TreasurerNFT}.ToData())
}

// CreateTallyRedeemer encodes the governance redeemer opening a tally.
func CreateTallyRedeemer() []byte {
	return plutus.MustEncode(plutus.NewConstr(1, plutus.NewInt(0), plutus.NewInt(0), plutus.NewInt(1)))
}

// UpgradeGovRedeemer encodes the governance redeemer applying a proposal.
func UpgradeGovRedeemer() []byte {
	return plutus.MustEncode(plutus.NewConstr(2, plutus.NewInt(0), plutus.NewInt(0), plutus.NewInt(0)))
}

// AddVoteStakingRedeemer encodes the staking redeemer for casting a vote.
func AddVoteStakingRedeemer() []byte {
	return plutus.MustEncode(plutus.NewConstr(1, plutus.NewInt(0), plutus.NewInt(0), plutus.NewInt(0)))
}

// RetractVoteStakingRedeemer encodes the staking redeemer for
// withdrawing a vote.
func RetractVoteStakingRedeemer() []byte {
	return plutus.MustEncode(plutus.NewConstr(2, plutus.NewInt(0), plutus.NewInt(0), plutus.NewInt(0), plutus.NewInt(0)))
}

// AddFundsStakingRedeemer encodes the staking redeemer for a top-up.
func AddFundsStakingRedeemer() []byte {
	return plutus.MustEncode(plutus.NewConstr(4, plutus.NewInt(0), plutus.NewInt(0)))
}

// AddTallyVoteRedeemer encodes the tally redeemer adding weight to a
// proposal.
func (d *Deployment) AddTallyVoteRedeemer(index, weight int64) []byte {
	return plutus.MustEncode(plutus.NewConstr(1,
		plutus.NewInt(index),
		plutus.NewInt(weight),
		d.Owner.ToData(),
		plutus.NewInt(0),
		plutus.NewInt(0),
		plutus.NewInt(1),
		plutus.NewConstr(0),
	))
}

// RetractTallyVoteRedeemer encodes the tally redeemer removing weight
// from a proposal.
func (d *Deployment) RetractTallyVoteRedeemer(index, weight int64) []byte {
	return plutus.MustEncode(plutus.NewConstr(2,
		plutus.NewInt(index),
		plutus.NewInt(weight),
		d.Owner.ToData(),
		plutus.NewInt(0),
		plutus.NewInt(0),
		plutus.NewInt(1),
		plutus.NewInt(0),
	))
}

// PayoutRedeemer encodes the treasurer redeemer paying out funds.
func PayoutRedeemer(payoutIndex, tallyInputIndex int64) []byte {
	return plutus.MustEncode(plutus.NewConstr(2,
		plutus.NewInt(0), plutus.NewInt(0), plutus.NewInt(1),
		plutus.NewInt(payoutIndex), plutus.NewInt(tallyInputIndex),
	))
}

// ConsolidateRedeemer encodes the treasurer redeemer merging funds.
func ConsolidateRedeemer() []byte {
	return plutus.MustEncode(plutus.NewConstr(3, plutus.NewInt(0), plutus.NewInt(0), plutus.NewInt(1)))
}

// ReleaseLicensesRedeemer encodes the license mint redeemer.
func ReleaseLicensesRedeemer(name []byte, tallyInputIndex int64) []byte {
	return plutus.MustEncode(datum.ReleaseLicenses{
		LicenseName:     name,
		ReleaseIndex:    0,
		TallyInputIndex: tallyInputIndex,
	}.ToData())
}

// Ref is the reference to output index of tx.
func Ref(tx ledger.RawTx, index uint32) ledger.OutRef {
	return ledger.OutRef{TxID: tx.ID, Index: index}
}

// Policies returns the configured policies of the deployment in the
// order gov state NFT, vote permission NFT, licenses, treasurer NFT.
func (d *Deployment) Policies() (gov, votePermission, licenses, treasurer []byte) {
	return d.GovStateNFTPolicy, d.VotePermissionNFTPolicy, d.LicensesPolicy, d.TreasurerNFTPolicy
}
