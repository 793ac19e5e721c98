package store

import (
	"context"
	"encoding/hex"

	"github.com/roach88/govsync/internal/ledger"
)

// Row ids are passed around as int64. Optional references (the previous
// version of a thread) are *int64 and stored as NULL when nil.

// GovParams is the natural key of a governance parameter set.
type GovParams struct {
	TallyAddressID          int64
	StakingAddressID        int64
	GovernanceTokenID       int64
	VaultFTPolicy           []byte
	MinQuorum               int64
	MinProposalDuration     int64
	GovStateNFTID           int64
	TallyAuthNFTPolicy      []byte
	StakingVoteNFTPolicy    []byte
	LatestAppliedProposalID int64
}

// GovParams returns the id of a governance parameter set, storing it if new.
func (b *BlockTx) GovParams(ctx context.Context, p GovParams) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "gov_params",
		[]string{
			"tally_address_id", "staking_address_id", "governance_token_id", "vault_ft_policy",
			"min_quorum", "min_proposal_duration", "gov_state_nft_id", "tally_auth_nft_policy",
			"staking_vote_nft_policy", "latest_applied_proposal_id",
		},
		[]any{
			p.TallyAddressID, p.StakingAddressID, p.GovernanceTokenID, hex.EncodeToString(p.VaultFTPolicy),
			p.MinQuorum, p.MinProposalDuration, p.GovStateNFTID, hex.EncodeToString(p.TallyAuthNFTPolicy),
			hex.EncodeToString(p.StakingVoteNFTPolicy), p.LatestAppliedProposalID,
		},
	)
	return id, err
}

// InsertGovState records a new governance state version.
func (b *BlockTx) InsertGovState(ctx context.Context, outputID, paramsID, lastProposalID int64) (int64, error) {
	return b.insert(ctx, "gov_states",
		[]string{"output_id", "gov_params_id", "last_proposal_id"},
		[]any{outputID, paramsID, lastProposalID},
	)
}

// InsertGovUpgrade records the transition into a governance state version.
func (b *BlockTx) InsertGovUpgrade(ctx context.Context, txRowID int64, prev *int64, next int64, action string) (int64, error) {
	return b.insert(ctx, "gov_upgrades",
		[]string{"transaction_id", "prev_gov_state_id", "next_gov_state_id", "action"},
		[]any{txRowID, prev, next, action},
	)
}

// StakingParams is the natural key of a staking parameter set.
type StakingParams struct {
	OwnerAddressID    int64
	GovernanceTokenID int64
	VaultFTPolicy     []byte
	TallyAuthNFTID    int64
}

// StakingParams returns the id of a staking parameter set, storing it if new.
func (b *BlockTx) StakingParams(ctx context.Context, p StakingParams) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "staking_params",
		[]string{"owner_address_id", "governance_token_id", "vault_ft_policy", "tally_auth_nft_id"},
		[]any{p.OwnerAddressID, p.GovernanceTokenID, hex.EncodeToString(p.VaultFTPolicy), p.TallyAuthNFTID},
	)
	return id, err
}

// InsertStakingState records a new staking state version.
func (b *BlockTx) InsertStakingState(ctx context.Context, outputID, paramsID int64) (int64, error) {
	return b.insert(ctx, "staking_states",
		[]string{"output_id", "staking_params_id"},
		[]any{outputID, paramsID},
	)
}

// Participation is the natural key of a vote held by a staking state.
// EndTime is only meaningful when EndTimeKind is "finite".
type Participation struct {
	TallyAuthNFTID int64
	ProposalID     int64
	Weight         int64
	ProposalIndex  int64
	EndTimeKind    string
	EndTime        int64
}

// StakingParticipation returns the id of a participation, storing it if new.
func (b *BlockTx) StakingParticipation(ctx context.Context, p Participation) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "staking_participations",
		[]string{"tally_auth_nft_id", "proposal_id", "weight", "proposal_index", "end_time_kind", "end_time"},
		[]any{p.TallyAuthNFTID, p.ProposalID, p.Weight, p.ProposalIndex, p.EndTimeKind, p.EndTime},
	)
	return id, err
}

// LinkParticipation places a participation at a position of a staking state.
func (b *BlockTx) LinkParticipation(ctx context.Context, stakingStateID, participationID int64, position int) error {
	_, err := b.insert(ctx, "staking_state_participations",
		[]string{"staking_state_id", "participation_id", "position"},
		[]any{stakingStateID, participationID, position},
	)
	return err
}

// InsertStakingDeposit records the transition into a staking state version.
func (b *BlockTx) InsertStakingDeposit(ctx context.Context, txRowID int64, prev *int64, next int64, action string) (int64, error) {
	return b.insert(ctx, "staking_deposits",
		[]string{"transaction_id", "prev_staking_state_id", "next_staking_state_id", "action"},
		[]any{txRowID, prev, next, action},
	)
}

// SaveStakingDelta stores the nonzero entries of a deposit's value change.
func (b *BlockTx) SaveStakingDelta(ctx context.Context, depositID int64, delta ledger.Value) error {
	return b.saveValueDelta(ctx, "staking_deposit_deltas", "staking_deposit_id", depositID, delta)
}

// ParticipationAdded records a participation present after a deposit but
// not before.
func (b *BlockTx) ParticipationAdded(ctx context.Context, depositID, participationID int64) error {
	_, _, err := b.getOrCreate(ctx, "staking_participations_added",
		[]string{"staking_deposit_id", "participation_id"},
		[]any{depositID, participationID},
	)
	return err
}

// ParticipationRemoved records a participation present before a deposit
// but not after.
func (b *BlockTx) ParticipationRemoved(ctx context.Context, depositID, participationID int64) error {
	_, _, err := b.getOrCreate(ctx, "staking_participations_removed",
		[]string{"staking_deposit_id", "participation_id"},
		[]any{depositID, participationID},
	)
	return err
}

// VotePermission returns the id of a vote permission, storing it if new.
func (b *BlockTx) VotePermission(ctx context.Context, tokenID, delegatedActionDatumID int64) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "vote_permissions",
		[]string{"token_id", "delegated_action_datum_id"},
		[]any{tokenID, delegatedActionDatumID},
	)
	return id, err
}

// InsertVotePermissionMint records an output receiving a minted permission.
func (b *BlockTx) InsertVotePermissionMint(ctx context.Context, txRowID, votePermissionID, outputID int64) (int64, error) {
	return b.insert(ctx, "vote_permission_mints",
		[]string{"transaction_id", "vote_permission_id", "output_id"},
		[]any{txRowID, votePermissionID, outputID},
	)
}

// TallyParams is the natural key of a tally parameter set.
type TallyParams struct {
	Quorum               int64
	EndTimeKind          string
	EndTime              int64
	ProposalID           int64
	TallyAuthNFTID       int64
	StakingVoteNFTPolicy []byte
	StakingAddressID     int64
	GovernanceTokenID    int64
	VaultFTPolicy        []byte
}

// TallyParams returns the id of a tally parameter set, storing it if new.
func (b *BlockTx) TallyParams(ctx context.Context, p TallyParams) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "tally_params",
		[]string{
			"quorum", "end_time_kind", "end_time", "proposal_id", "tally_auth_nft_id",
			"staking_vote_nft_policy", "staking_address_id", "governance_token_id", "vault_ft_policy",
		},
		[]any{
			p.Quorum, p.EndTimeKind, p.EndTime, p.ProposalID, p.TallyAuthNFTID,
			hex.EncodeToString(p.StakingVoteNFTPolicy), p.StakingAddressID, p.GovernanceTokenID,
			hex.EncodeToString(p.VaultFTPolicy),
		},
	)
	return id, err
}

// TallyProposal attaches a proposal datum at a position of a tally.
func (b *BlockTx) TallyProposal(ctx context.Context, paramsID int64, position int, datumID int64) error {
	_, _, err := b.getOrCreate(ctx, "tally_proposals",
		[]string{"tally_params_id", "position", "proposal_datum_id"},
		[]any{paramsID, position, datumID},
	)
	return err
}

// InsertTallyState records a new tally state version.
func (b *BlockTx) InsertTallyState(ctx context.Context, outputID, paramsID int64) (int64, error) {
	return b.insert(ctx, "tally_states",
		[]string{"output_id", "tally_params_id"},
		[]any{outputID, paramsID},
	)
}

// SaveTallyWeights stores the vote weight vector of a tally state.
func (b *BlockTx) SaveTallyWeights(ctx context.Context, tallyStateID int64, weights []int64) error {
	for i, w := range weights {
		if _, err := b.insert(ctx, "tally_weights",
			[]string{"tally_state_id", "position", "weight"},
			[]any{tallyStateID, i, w},
		); err != nil {
			return err
		}
	}
	return nil
}

// InsertTallyCreation records a tally created from a governance state.
func (b *BlockTx) InsertTallyCreation(ctx context.Context, txRowID, govStateID, nextTallyStateID int64) (int64, error) {
	return b.insert(ctx, "tally_creations",
		[]string{"transaction_id", "gov_state_id", "next_tally_state_id"},
		[]any{txRowID, govStateID, nextTallyStateID},
	)
}

// TallyCreationParticipant records an address receiving an output of the
// creating transaction.
func (b *BlockTx) TallyCreationParticipant(ctx context.Context, creationID, addressID int64) error {
	_, _, err := b.getOrCreate(ctx, "tally_creation_participants",
		[]string{"tally_creation_id", "address_id"},
		[]any{creationID, addressID},
	)
	return err
}

// TallyVote is a vote cast or retracted by a staking state.
type TallyVote struct {
	TransactionID    int64
	StakingStateID   int64
	Position         int64
	WeightDelta      int64
	PrevTallyStateID int64
	NextTallyStateID int64
}

// InsertTallyVote records a vote transition.
func (b *BlockTx) InsertTallyVote(ctx context.Context, v TallyVote) (int64, error) {
	return b.insert(ctx, "tally_votes",
		[]string{"transaction_id", "staking_state_id", "position", "weight_delta", "prev_tally_state_id", "next_tally_state_id"},
		[]any{v.TransactionID, v.StakingStateID, v.Position, v.WeightDelta, v.PrevTallyStateID, v.NextTallyStateID},
	)
}

// TreasurerParams is the natural key of a treasurer parameter set.
type TreasurerParams struct {
	AuthNFTID           int64
	ValueStoreAddressID int64
	TreasurerNFTID      int64
}

// TreasurerParams returns the id of a treasurer parameter set, storing it
// if new.
func (b *BlockTx) TreasurerParams(ctx context.Context, p TreasurerParams) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "treasurer_params",
		[]string{"auth_nft_id", "value_store_address_id", "treasurer_nft_id"},
		[]any{p.AuthNFTID, p.ValueStoreAddressID, p.TreasurerNFTID},
	)
	return id, err
}

// InsertTreasurerState records a new treasurer state version.
func (b *BlockTx) InsertTreasurerState(ctx context.Context, outputID, paramsID, lastAppliedProposalID int64) (int64, error) {
	return b.insert(ctx, "treasurer_states",
		[]string{"output_id", "treasurer_params_id", "last_applied_proposal_id"},
		[]any{outputID, paramsID, lastAppliedProposalID},
	)
}

// InsertValueStoreState records funds locked in the value store.
func (b *BlockTx) InsertValueStoreState(ctx context.Context, outputID, treasurerNFTID int64) (int64, error) {
	return b.insert(ctx, "value_store_states",
		[]string{"output_id", "treasurer_nft_id"},
		[]any{outputID, treasurerNFTID},
	)
}

// InsertTreasuryDelta records a movement of treasury funds.
func (b *BlockTx) InsertTreasuryDelta(ctx context.Context, txRowID int64) (int64, error) {
	return b.insert(ctx, "treasury_deltas",
		[]string{"transaction_id"},
		[]any{txRowID},
	)
}

// SaveTreasuryDelta stores the nonzero entries of a treasury movement.
func (b *BlockTx) SaveTreasuryDelta(ctx context.Context, deltaID int64, delta ledger.Value) error {
	return b.saveValueDelta(ctx, "treasury_delta_values", "treasury_delta_id", deltaID, delta)
}

// InsertTreasuryPayout records a payout approved by a tally.
func (b *BlockTx) InsertTreasuryPayout(ctx context.Context, deltaID, treasurerStateID, tallyStateID, payoutOutputID int64) (int64, error) {
	return b.insert(ctx, "treasury_payouts",
		[]string{"treasury_delta_id", "treasurer_state_id", "tally_state_id", "payout_output_id"},
		[]any{deltaID, treasurerStateID, tallyStateID, payoutOutputID},
	)
}

// LicenseMint is a license released on the strength of a tally.
type LicenseMint struct {
	TransactionID     int64
	TokenID           int64
	Amount            int64
	ReceiverAddressID int64
	TallyProposalID   int64
	Expiration        int64
	UsedTallyStateID  int64
}

// InsertLicenseMint records a license mint.
func (b *BlockTx) InsertLicenseMint(ctx context.Context, m LicenseMint) (int64, error) {
	return b.insert(ctx, "license_mints",
		[]string{"transaction_id", "token_id", "amount", "receiver_address_id", "tally_proposal_id", "expiration", "used_tally_state_id"},
		[]any{m.TransactionID, m.TokenID, m.Amount, m.ReceiverAddressID, m.TallyProposalID, m.Expiration, m.UsedTallyStateID},
	)
}

// LicenseOutput records a license token held by an output.
func (b *BlockTx) LicenseOutput(ctx context.Context, outputID, tokenID int64) error {
	_, _, err := b.getOrCreate(ctx, "license_outputs",
		[]string{"output_id", "token_id"},
		[]any{outputID, tokenID},
	)
	return err
}
