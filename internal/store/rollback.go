package store

import (
	"context"
	"fmt"
)

// RollbackTo deletes every block with a slot above slot. Everything the
// deleted blocks created goes with them, and outputs they spent become
// unspent. Returns the number of blocks deleted.
func (s *Store) RollbackTo(ctx context.Context, slot uint64) (int64, error) {
	res, err := s.conn().exec(ctx, "DELETE FROM blocks WHERE slot > ?", int64(slot))
	if err != nil {
		return 0, fmt.Errorf("rollback to slot %d: %w", slot, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rollback to slot %d: rows affected: %w", slot, err)
	}
	return n, nil
}

// RollbackAll deletes every block, a rollback to the chain origin.
func (s *Store) RollbackAll(ctx context.Context) (int64, error) {
	res, err := s.conn().exec(ctx, "DELETE FROM blocks")
	if err != nil {
		return 0, fmt.Errorf("rollback to origin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rollback to origin: rows affected: %w", err)
	}
	return n, nil
}
