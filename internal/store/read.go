package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/roach88/govsync/internal/ledger"
)

// GovThread is an unspent governance state version with the parameters
// the other projectors key on.
type GovThread struct {
	StateID         int64
	Ref             ledger.OutRef
	Thread          ledger.AssetID
	TallyAddress    []byte
	StakingAddress  []byte
	TallyAuthPolicy []byte
}

// TreasuryThread is an unspent treasurer state version.
type TreasuryThread struct {
	StateID    int64
	Ref        ledger.OutRef
	Thread     ledger.AssetID
	ValueStore []byte
}

// Tip returns the highest stored block, or nil when the store is empty.
func (s *Store) Tip(ctx context.Context) (*ledger.BlockHeader, error) {
	var hashHex string
	var slot, height int64
	err := s.conn().queryRow(ctx, `
		SELECT hash, slot, height FROM blocks
		ORDER BY slot DESC
		LIMIT 1
	`).Scan(&hashHex, &slot, &height)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query tip: %w", err)
	}
	hash, err := ledger.ParseHash32(hashHex)
	if err != nil {
		return nil, fmt.Errorf("query tip: %w", err)
	}
	return &ledger.BlockHeader{Hash: hash, Slot: uint64(slot), Height: uint64(height)}, nil
}

// ResumePoints returns the stored blocks at the given depths below the
// tip (0 is the tip), newest first. Depths beyond the stored history are
// skipped, so an empty store yields no points.
func (s *Store) ResumePoints(ctx context.Context, depths []int) ([]ledger.Point, error) {
	points := []ledger.Point{}
	seen := make(map[ledger.Point]bool)
	for _, depth := range depths {
		var hashHex string
		var slot int64
		err := s.conn().queryRow(ctx, `
			SELECT hash, slot FROM blocks
			ORDER BY slot DESC
			LIMIT 1 OFFSET ?
		`, depth).Scan(&hashHex, &slot)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query resume point at depth %d: %w", depth, err)
		}
		hash, err := ledger.ParseHash32(hashHex)
		if err != nil {
			return nil, fmt.Errorf("query resume point at depth %d: %w", depth, err)
		}
		p := ledger.Point{Slot: uint64(slot), Hash: hash}
		if !seen[p] {
			seen[p] = true
			points = append(points, p)
		}
	}
	return points, nil
}

// UnspentGovStates returns every governance state version whose output
// is unspent, oldest first.
func (s *Store) UnspentGovStates(ctx context.Context) ([]GovThread, error) {
	rows, err := s.conn().query(ctx, `
		SELECT g.id, o.tx_hash, o.output_index, nft.policy_id, nft.asset_name,
		       ta.address_raw, sa.address_raw, p.tally_auth_nft_policy
		FROM gov_states g
		JOIN tx_outputs o ON o.id = g.output_id
		JOIN gov_params p ON p.id = g.gov_params_id
		JOIN tokens nft ON nft.id = p.gov_state_nft_id
		JOIN addresses ta ON ta.id = p.tally_address_id
		JOIN addresses sa ON sa.id = p.staking_address_id
		WHERE o.spent_in_block_id IS NULL
		ORDER BY g.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query unspent gov states: %w", err)
	}
	defer rows.Close()

	threads := []GovThread{}
	for rows.Next() {
		var t GovThread
		var txHash, policyHex, nameHex, tallyHex, stakingHex, authHex string
		var index int64
		if err := rows.Scan(&t.StateID, &txHash, &index, &policyHex, &nameHex, &tallyHex, &stakingHex, &authHex); err != nil {
			return nil, fmt.Errorf("scan gov state: %w", err)
		}
		if t.Ref, err = outRef(txHash, index); err != nil {
			return nil, err
		}
		if t.Thread, err = decodeAsset(policyHex, nameHex); err != nil {
			return nil, err
		}
		if t.TallyAddress, err = decodeHexColumn(tallyHex); err != nil {
			return nil, err
		}
		if t.StakingAddress, err = decodeHexColumn(stakingHex); err != nil {
			return nil, err
		}
		if t.TallyAuthPolicy, err = decodeHexColumn(authHex); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gov states: %w", err)
	}
	return threads, nil
}

// UnspentTreasurerStates returns every treasurer state version whose
// output is unspent, oldest first. The thread token is the asset the
// output holds under treasurerPolicy.
func (s *Store) UnspentTreasurerStates(ctx context.Context, treasurerPolicy []byte) ([]TreasuryThread, error) {
	rows, err := s.conn().query(ctx, `
		SELECT ts.id, o.tx_hash, o.output_index, va.address_raw,
		       (SELECT t.asset_name
		        FROM tx_output_values v
		        JOIN tokens t ON t.id = v.token_id
		        WHERE v.output_id = o.id AND t.policy_id = ? AND v.amount > 0
		        ORDER BY t.asset_name
		        LIMIT 1)
		FROM treasurer_states ts
		JOIN tx_outputs o ON o.id = ts.output_id
		JOIN treasurer_params p ON p.id = ts.treasurer_params_id
		JOIN addresses va ON va.id = p.value_store_address_id
		WHERE o.spent_in_block_id IS NULL
		ORDER BY ts.id
	`, hex.EncodeToString(treasurerPolicy))
	if err != nil {
		return nil, fmt.Errorf("query unspent treasurer states: %w", err)
	}
	defer rows.Close()

	threads := []TreasuryThread{}
	for rows.Next() {
		var t TreasuryThread
		var txHash, valueStoreHex string
		var nameHex sql.NullString
		var index int64
		if err := rows.Scan(&t.StateID, &txHash, &index, &valueStoreHex, &nameHex); err != nil {
			return nil, fmt.Errorf("scan treasurer state: %w", err)
		}
		if t.Ref, err = outRef(txHash, index); err != nil {
			return nil, err
		}
		if t.ValueStore, err = decodeHexColumn(valueStoreHex); err != nil {
			return nil, err
		}
		if t.Thread, err = decodeAsset(hex.EncodeToString(treasurerPolicy), nameHex.String); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate treasurer states: %w", err)
	}
	return threads, nil
}

// Tables lists every table in dependency order.
var Tables = []string{
	"blocks", "addresses", "tokens", "datums", "transactions", "tx_outputs", "tx_output_values",
	"gov_params", "gov_states", "gov_upgrades",
	"staking_params", "staking_states", "staking_participations", "staking_state_participations",
	"staking_deposits", "staking_deposit_deltas", "staking_participations_added",
	"staking_participations_removed", "vote_permissions", "vote_permission_mints",
	"tally_params", "tally_proposals", "tally_states", "tally_weights", "tally_creations",
	"tally_creation_participants", "tally_votes",
	"treasurer_params", "treasurer_states", "value_store_states", "treasury_deltas",
	"treasury_delta_values", "treasury_payouts",
	"license_mints", "license_outputs",
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// TableCounts returns the row count of every table in Tables order.
func (s *Store) TableCounts(ctx context.Context) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(Tables))
	for _, table := range Tables {
		var n int64
		if err := s.conn().queryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
	}
	return counts, nil
}

func outRef(txHash string, index int64) (ledger.OutRef, error) {
	id, err := ledger.ParseHash32(txHash)
	if err != nil {
		return ledger.OutRef{}, err
	}
	return ledger.OutRef{TxID: id, Index: uint32(index)}, nil
}

func decodeHexColumn(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex column %q: %w", s, err)
	}
	return b, nil
}
