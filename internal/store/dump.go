package store

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// dumpQueries render the projection in natural keys only, so two stores
// fed the same chain dump identically regardless of row ids.
var dumpQueries = []struct {
	name  string
	query string
}{
	{"blocks", `
		SELECT hash, slot, height FROM blocks ORDER BY slot, hash`},
	{"outputs", `
		SELECT o.tx_hash || '#' || o.output_index, a.address_raw, COALESCE(o.datum_hash, ''),
		       COALESCE(sb.hash, '')
		FROM tx_outputs o
		JOIN addresses a ON a.id = o.address_id
		LEFT JOIN blocks sb ON sb.id = o.spent_in_block_id
		ORDER BY o.tx_hash, o.output_index`},
	{"output_values", `
		SELECT o.tx_hash || '#' || o.output_index, t.policy_id || '.' || t.asset_name, v.amount
		FROM tx_output_values v
		JOIN tx_outputs o ON o.id = v.output_id
		JOIN tokens t ON t.id = v.token_id
		ORDER BY o.tx_hash, o.output_index, t.policy_id, t.asset_name`},
	{"gov_states", `
		SELECT o.tx_hash || '#' || o.output_index, g.last_proposal_id, p.latest_applied_proposal_id
		FROM gov_states g
		JOIN tx_outputs o ON o.id = g.output_id
		JOIN gov_params p ON p.id = g.gov_params_id
		ORDER BY o.tx_hash, o.output_index`},
	{"gov_upgrades", `
		SELECT tx.tx_hash, COALESCE(po.tx_hash || '#' || po.output_index, ''),
		       no.tx_hash || '#' || no.output_index, u.action
		FROM gov_upgrades u
		JOIN transactions tx ON tx.id = u.transaction_id
		LEFT JOIN gov_states pg ON pg.id = u.prev_gov_state_id
		LEFT JOIN tx_outputs po ON po.id = pg.output_id
		JOIN gov_states ng ON ng.id = u.next_gov_state_id
		JOIN tx_outputs no ON no.id = ng.output_id
		ORDER BY tx.tx_hash, no.output_index`},
	{"staking_states", `
		SELECT o.tx_hash || '#' || o.output_index, a.address_raw,
		       (SELECT COUNT(*) FROM staking_state_participations sp WHERE sp.staking_state_id = s.id)
		FROM staking_states s
		JOIN tx_outputs o ON o.id = s.output_id
		JOIN staking_params p ON p.id = s.staking_params_id
		JOIN addresses a ON a.id = p.owner_address_id
		ORDER BY o.tx_hash, o.output_index`},
	{"staking_deposits", `
		SELECT tx.tx_hash, COALESCE(po.tx_hash || '#' || po.output_index, ''),
		       no.tx_hash || '#' || no.output_index, d.action
		FROM staking_deposits d
		JOIN transactions tx ON tx.id = d.transaction_id
		LEFT JOIN staking_states ps ON ps.id = d.prev_staking_state_id
		LEFT JOIN tx_outputs po ON po.id = ps.output_id
		JOIN staking_states ns ON ns.id = d.next_staking_state_id
		JOIN tx_outputs no ON no.id = ns.output_id
		ORDER BY tx.tx_hash, no.output_index`},
	{"staking_deposit_deltas", `
		SELECT no.tx_hash || '#' || no.output_index, t.policy_id || '.' || t.asset_name, dd.amount
		FROM staking_deposit_deltas dd
		JOIN staking_deposits d ON d.id = dd.staking_deposit_id
		JOIN staking_states ns ON ns.id = d.next_staking_state_id
		JOIN tx_outputs no ON no.id = ns.output_id
		JOIN tokens t ON t.id = dd.token_id
		ORDER BY no.tx_hash, no.output_index, t.policy_id, t.asset_name`},
	{"staking_participation_changes", `
		SELECT no.tx_hash || '#' || no.output_index, 'added', sp.proposal_id, sp.weight, sp.proposal_index
		FROM staking_participations_added pa
		JOIN staking_participations sp ON sp.id = pa.participation_id
		JOIN staking_deposits d ON d.id = pa.staking_deposit_id
		JOIN staking_states ns ON ns.id = d.next_staking_state_id
		JOIN tx_outputs no ON no.id = ns.output_id
		UNION ALL
		SELECT no.tx_hash || '#' || no.output_index, 'removed', sp.proposal_id, sp.weight, sp.proposal_index
		FROM staking_participations_removed pr
		JOIN staking_participations sp ON sp.id = pr.participation_id
		JOIN staking_deposits d ON d.id = pr.staking_deposit_id
		JOIN staking_states ns ON ns.id = d.next_staking_state_id
		JOIN tx_outputs no ON no.id = ns.output_id
		ORDER BY 1, 2, 3, 4, 5`},
	{"vote_permission_mints", `
		SELECT tx.tx_hash, t.asset_name, o.tx_hash || '#' || o.output_index, dt.hash
		FROM vote_permission_mints m
		JOIN transactions tx ON tx.id = m.transaction_id
		JOIN vote_permissions vp ON vp.id = m.vote_permission_id
		JOIN tokens t ON t.id = vp.token_id
		JOIN datums dt ON dt.id = vp.delegated_action_datum_id
		JOIN tx_outputs o ON o.id = m.output_id
		ORDER BY tx.tx_hash, o.output_index`},
	{"tally_weights", `
		SELECT o.tx_hash || '#' || o.output_index, p.proposal_id, w.position, w.weight
		FROM tally_weights w
		JOIN tally_states s ON s.id = w.tally_state_id
		JOIN tally_params p ON p.id = s.tally_params_id
		JOIN tx_outputs o ON o.id = s.output_id
		ORDER BY o.tx_hash, o.output_index, w.position`},
	{"tally_creations", `
		SELECT tx.tx_hash, go.tx_hash || '#' || go.output_index, no.tx_hash || '#' || no.output_index,
		       (SELECT COUNT(*) FROM tally_creation_participants cp WHERE cp.tally_creation_id = c.id)
		FROM tally_creations c
		JOIN transactions tx ON tx.id = c.transaction_id
		JOIN gov_states g ON g.id = c.gov_state_id
		JOIN tx_outputs go ON go.id = g.output_id
		JOIN tally_states ns ON ns.id = c.next_tally_state_id
		JOIN tx_outputs no ON no.id = ns.output_id
		ORDER BY tx.tx_hash, no.output_index`},
	{"tally_votes", `
		SELECT tx.tx_hash, so.tx_hash || '#' || so.output_index, v.position, v.weight_delta,
		       po.tx_hash || '#' || po.output_index, no.tx_hash || '#' || no.output_index
		FROM tally_votes v
		JOIN transactions tx ON tx.id = v.transaction_id
		JOIN staking_states s ON s.id = v.staking_state_id
		JOIN tx_outputs so ON so.id = s.output_id
		JOIN tally_states ps ON ps.id = v.prev_tally_state_id
		JOIN tx_outputs po ON po.id = ps.output_id
		JOIN tally_states ns ON ns.id = v.next_tally_state_id
		JOIN tx_outputs no ON no.id = ns.output_id
		ORDER BY tx.tx_hash, no.output_index`},
	{"treasurer_states", `
		SELECT o.tx_hash || '#' || o.output_index, s.last_applied_proposal_id
		FROM treasurer_states s
		JOIN tx_outputs o ON o.id = s.output_id
		ORDER BY o.tx_hash, o.output_index`},
	{"value_store_states", `
		SELECT o.tx_hash || '#' || o.output_index, t.policy_id || '.' || t.asset_name
		FROM value_store_states s
		JOIN tx_outputs o ON o.id = s.output_id
		JOIN tokens t ON t.id = s.treasurer_nft_id
		ORDER BY o.tx_hash, o.output_index`},
	{"treasury_delta_values", `
		SELECT tx.tx_hash, t.policy_id || '.' || t.asset_name, dv.amount
		FROM treasury_delta_values dv
		JOIN treasury_deltas d ON d.id = dv.treasury_delta_id
		JOIN transactions tx ON tx.id = d.transaction_id
		JOIN tokens t ON t.id = dv.token_id
		ORDER BY tx.tx_hash, t.policy_id, t.asset_name`},
	{"treasury_payouts", `
		SELECT tx.tx_hash, too.tx_hash || '#' || too.output_index, tao.tx_hash || '#' || tao.output_index,
		       po.tx_hash || '#' || po.output_index
		FROM treasury_payouts p
		JOIN treasury_deltas d ON d.id = p.treasury_delta_id
		JOIN transactions tx ON tx.id = d.transaction_id
		JOIN treasurer_states ts ON ts.id = p.treasurer_state_id
		JOIN tx_outputs too ON too.id = ts.output_id
		JOIN tally_states tas ON tas.id = p.tally_state_id
		JOIN tx_outputs tao ON tao.id = tas.output_id
		JOIN tx_outputs po ON po.id = p.payout_output_id
		ORDER BY tx.tx_hash`},
	{"license_mints", `
		SELECT tx.tx_hash, t.asset_name, m.amount, a.address_raw, m.tally_proposal_id, m.expiration,
		       o.tx_hash || '#' || o.output_index
		FROM license_mints m
		JOIN transactions tx ON tx.id = m.transaction_id
		JOIN tokens t ON t.id = m.token_id
		JOIN addresses a ON a.id = m.receiver_address_id
		JOIN tally_states s ON s.id = m.used_tally_state_id
		JOIN tx_outputs o ON o.id = s.output_id
		ORDER BY tx.tx_hash`},
	{"license_outputs", `
		SELECT o.tx_hash || '#' || o.output_index, t.asset_name
		FROM license_outputs l
		JOIN tx_outputs o ON o.id = l.output_id
		JOIN tokens t ON t.id = l.token_id
		ORDER BY o.tx_hash, o.output_index, t.asset_name`},
}

// Dump writes the projection as plain text, one section per relation
// and one line per row with columns separated by " | ".
func (s *Store) Dump(ctx context.Context, w io.Writer) error {
	c := s.conn()
	for _, dq := range dumpQueries {
		if _, err := fmt.Fprintf(w, "## %s\n", dq.name); err != nil {
			return err
		}
		rows, err := c.query(ctx, dq.query)
		if err != nil {
			return fmt.Errorf("dump %s: %w", dq.name, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return fmt.Errorf("dump %s: %w", dq.name, err)
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return fmt.Errorf("dump %s: scan: %w", dq.name, err)
			}
			fields := make([]string, len(vals))
			for i, v := range vals {
				if b, ok := v.([]byte); ok {
					v = string(b)
				}
				fields[i] = fmt.Sprint(v)
			}
			if _, err := fmt.Fprintln(w, strings.Join(fields, " | ")); err != nil {
				rows.Close()
				return err
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("dump %s: %w", dq.name, err)
		}
		rows.Close()
	}
	return nil
}
