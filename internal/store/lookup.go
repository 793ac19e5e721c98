package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/roach88/govsync/internal/ledger"
)

// StateKind selects one of the state version tables.
type StateKind int

const (
	GovState StateKind = iota
	StakingState
	TallyState
	TreasurerState
	ValueStoreState
)

type stateTable struct {
	table  string
	params string
}

var stateTables = map[StateKind]stateTable{
	GovState:        {"gov_states", "gov_params_id"},
	StakingState:    {"staking_states", "staking_params_id"},
	TallyState:      {"tally_states", "tally_params_id"},
	TreasurerState:  {"treasurer_states", "treasurer_params_id"},
	ValueStoreState: {"value_store_states", "treasurer_nft_id"},
}

func (k StateKind) String() string {
	if t, ok := stateTables[k]; ok {
		return t.table
	}
	return "unknown"
}

// StateRef locates a stored state version. ParamsID is the parameter set
// of the version (the treasurer token id for value stores).
type StateRef struct {
	ID       int64
	OutputID int64
	ParamsID int64
}

// StateAt returns the state version of kind created at ref, if any.
// Spent and unspent versions are both found.
func (b *BlockTx) StateAt(ctx context.Context, kind StateKind, ref ledger.OutRef) (StateRef, bool, error) {
	t, ok := stateTables[kind]
	if !ok {
		return StateRef{}, false, fmt.Errorf("unknown state kind %d", kind)
	}
	var s StateRef
	err := b.c.queryRow(ctx, fmt.Sprintf(`
		SELECT s.id, s.output_id, s.%s
		FROM %s s
		JOIN tx_outputs o ON o.id = s.output_id
		WHERE o.tx_hash = ? AND o.output_index = ?
	`, t.params, t.table), ref.TxID.String(), int64(ref.Index)).Scan(&s.ID, &s.OutputID, &s.ParamsID)
	if errors.Is(err, sql.ErrNoRows) {
		return StateRef{}, false, nil
	}
	if err != nil {
		return StateRef{}, false, fmt.Errorf("lookup %s at %s: %w", t.table, ref, err)
	}
	return s, true, nil
}

// OutputValue returns the stored value of an output.
func (b *BlockTx) OutputValue(ctx context.Context, outputID int64) (ledger.Value, error) {
	rows, err := b.c.query(ctx, `
		SELECT t.policy_id, t.asset_name, v.amount
		FROM tx_output_values v
		JOIN tokens t ON t.id = v.token_id
		WHERE v.output_id = ?
		ORDER BY t.policy_id, t.asset_name
	`, outputID)
	if err != nil {
		return ledger.Value{}, fmt.Errorf("query output value: %w", err)
	}
	defer rows.Close()

	var amounts []ledger.Amount
	for rows.Next() {
		var policyHex, nameHex string
		var amount int64
		if err := rows.Scan(&policyHex, &nameHex, &amount); err != nil {
			return ledger.Value{}, fmt.Errorf("scan output value: %w", err)
		}
		asset, err := decodeAsset(policyHex, nameHex)
		if err != nil {
			return ledger.Value{}, err
		}
		amounts = append(amounts, ledger.Amount{Asset: asset, Quantity: amount})
	}
	if err := rows.Err(); err != nil {
		return ledger.Value{}, fmt.Errorf("iterate output value: %w", err)
	}
	return ledger.ValueOf(amounts...), nil
}

// StakingParticipations returns the participation ids of a staking state
// in position order.
func (b *BlockTx) StakingParticipations(ctx context.Context, stakingStateID int64) ([]int64, error) {
	return b.int64Column(ctx, `
		SELECT participation_id FROM staking_state_participations
		WHERE staking_state_id = ?
		ORDER BY position
	`, stakingStateID)
}

// TallyWeights returns the vote weight vector of a tally state.
func (b *BlockTx) TallyWeights(ctx context.Context, tallyStateID int64) ([]int64, error) {
	return b.int64Column(ctx, `
		SELECT weight FROM tally_weights
		WHERE tally_state_id = ?
		ORDER BY position
	`, tallyStateID)
}

func (b *BlockTx) int64Column(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := b.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func decodeAsset(policyHex, nameHex string) (ledger.AssetID, error) {
	policy, err := hex.DecodeString(policyHex)
	if err != nil {
		return ledger.AssetID{}, fmt.Errorf("decode policy %q: %w", policyHex, err)
	}
	name, err := hex.DecodeString(nameHex)
	if err != nil {
		return ledger.AssetID{}, fmt.Errorf("decode asset name %q: %w", nameHex, err)
	}
	return ledger.NewAssetID(policy, name), nil
}
