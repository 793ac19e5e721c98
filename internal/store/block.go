package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/govsync/internal/ledger"
)

// ErrBlockExists is returned by BeginBlock when the block hash is already
// stored. Replaying a stored block means the caller missed a rollback.
var ErrBlockExists = errors.New("block already stored")

// BlockTx is the write transaction of one block. Everything a block
// produces is written through it and becomes visible on Commit; Rollback
// discards all of it.
type BlockTx struct {
	c       conn
	tx      *sql.Tx
	header  ledger.BlockHeader
	blockID int64
	done    bool
}

// BeginBlock opens the transaction of a block and inserts the block row.
func (s *Store) BeginBlock(ctx context.Context, header ledger.BlockHeader) (*BlockTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin block: %w", err)
	}
	b := &BlockTx{
		c:      conn{q: tx, logger: s.logger, debug: s.debugSQL},
		tx:     tx,
		header: header,
	}

	res, err := b.c.exec(ctx, `
		INSERT INTO blocks (hash, slot, height)
		VALUES (?, ?, ?)
	`, header.Hash.String(), int64(header.Slot), int64(header.Height))
	if err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("begin block %s: %w", header.Hash, ErrBlockExists)
		}
		return nil, fmt.Errorf("begin block %s: %w", header.Hash, err)
	}
	if b.blockID, err = res.LastInsertId(); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("begin block %s: last insert id: %w", header.Hash, err)
	}
	return b, nil
}

// Header returns the header the transaction was opened with.
func (b *BlockTx) Header() ledger.BlockHeader {
	return b.header
}

// BlockID returns the row id of the block.
func (b *BlockTx) BlockID() int64 {
	return b.blockID
}

// Commit makes the block durable.
func (b *BlockTx) Commit() error {
	if b.done {
		return errors.New("block transaction already finished")
	}
	b.done = true
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit block %s: %w", b.header.Hash, err)
	}
	return nil
}

// Rollback discards the block. It is a no-op after Commit, so it can be
// deferred.
func (b *BlockTx) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	if err := b.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback block %s: %w", b.header.Hash, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// getOrCreate inserts a row keyed by its natural key and returns its id.
// If the row already exists the existing id is returned with created=false.
// table and cols are compile-time constants of this package.
func (b *BlockTx) getOrCreate(ctx context.Context, table string, cols []string, vals []any) (id int64, created bool, err error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	res, err := b.c.exec(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		table, strings.Join(cols, ", "), placeholders,
	), vals...)
	if err != nil {
		return 0, false, fmt.Errorf("insert %s: %w", table, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert %s: rows affected: %w", table, err)
	}
	if rowsAffected > 0 {
		id, err = res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("insert %s: last insert id: %w", table, err)
		}
		return id, true, nil
	}

	where := make([]string, len(cols))
	for i, col := range cols {
		where[i] = col + " = ?"
	}
	err = b.c.queryRow(ctx, fmt.Sprintf(
		"SELECT id FROM %s WHERE %s",
		table, strings.Join(where, " AND "),
	), vals...).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("select existing %s: %w", table, err)
	}
	return id, false, nil
}

// insert adds a row that has no natural key.
func (b *BlockTx) insert(ctx context.Context, table string, cols []string, vals []any) (int64, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	res, err := b.c.exec(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders,
	), vals...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last insert id: %w", table, err)
	}
	return id, nil
}

// Address returns the id of an address, storing it if new.
func (b *BlockTx) Address(ctx context.Context, raw []byte) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "addresses", []string{"address_raw"}, []any{hex.EncodeToString(raw)})
	return id, err
}

// Token returns the id of a token, storing it if new. The coin is the
// token with empty policy and name.
func (b *BlockTx) Token(ctx context.Context, asset ledger.AssetID) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "tokens",
		[]string{"policy_id", "asset_name"},
		[]any{hex.EncodeToString(asset.PolicyBytes()), hex.EncodeToString(asset.NameBytes())},
	)
	return id, err
}

// Datum returns the id of raw Plutus data keyed by its hash, storing it
// if new.
func (b *BlockTx) Datum(ctx context.Context, raw []byte) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "datums",
		[]string{"hash", "data"},
		[]any{ledger.HashDatum(raw).String(), raw},
	)
	return id, err
}

// Transaction returns the id of a transaction of this block, storing it
// if new.
func (b *BlockTx) Transaction(ctx context.Context, txID ledger.Hash32, blockIndex int) (int64, error) {
	id, _, err := b.getOrCreate(ctx, "transactions",
		[]string{"tx_hash", "block_id", "block_index"},
		[]any{txID.String(), b.blockID, blockIndex},
	)
	return id, err
}

// Output returns the id of a transaction output, storing it with its
// datum and value if new. Existing outputs are returned unchanged.
func (b *BlockTx) Output(ctx context.Context, txID ledger.Hash32, blockIndex int, out ledger.Output) (int64, error) {
	var existing int64
	err := b.c.queryRow(ctx, `
		SELECT id FROM tx_outputs WHERE tx_hash = ? AND output_index = ?
	`, txID.String(), int64(out.Index)).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("select output: %w", err)
	}

	txRow, err := b.Transaction(ctx, txID, blockIndex)
	if err != nil {
		return 0, err
	}
	addrID, err := b.Address(ctx, out.Address)
	if err != nil {
		return 0, err
	}

	var datumHash any
	if out.HasDatum() {
		if _, err := b.Datum(ctx, out.Datum); err != nil {
			return 0, err
		}
	}
	if out.DatumHash != nil {
		datumHash = out.DatumHash.String()
	}

	id, err := b.insert(ctx, "tx_outputs",
		[]string{"transaction_id", "tx_hash", "output_index", "address_id", "datum_hash"},
		[]any{txRow, txID.String(), int64(out.Index), addrID, datumHash},
	)
	if err != nil {
		return 0, err
	}

	for _, amount := range out.Value.Entries() {
		if amount.Asset != ledger.Coin && amount.Quantity == 0 {
			continue
		}
		tokenID, err := b.Token(ctx, amount.Asset)
		if err != nil {
			return 0, err
		}
		if _, err := b.insert(ctx, "tx_output_values",
			[]string{"output_id", "token_id", "amount"},
			[]any{id, tokenID, amount.Quantity},
		); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// MarkSpent records that this block spends refs. Only stored outputs are
// affected, and an output keeps the first block that spent it. Returns the
// number of outputs marked.
func (b *BlockTx) MarkSpent(ctx context.Context, refs []ledger.OutRef) (int64, error) {
	var total int64
	for _, ref := range refs {
		res, err := b.c.exec(ctx, `
			UPDATE tx_outputs SET spent_in_block_id = ?
			WHERE tx_hash = ? AND output_index = ? AND spent_in_block_id IS NULL
		`, b.blockID, ref.TxID.String(), int64(ref.Index))
		if err != nil {
			return total, fmt.Errorf("mark spent %s: %w", ref, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("mark spent %s: rows affected: %w", ref, err)
		}
		total += n
	}
	return total, nil
}

// saveValueDelta writes the nonzero entries of delta into a delta table
// (staking_deposit_deltas or treasury_delta_values) under parentCol.
func (b *BlockTx) saveValueDelta(ctx context.Context, table, parentCol string, parentID int64, delta ledger.Value) error {
	for _, amount := range delta.NonZero() {
		tokenID, err := b.Token(ctx, amount.Asset)
		if err != nil {
			return err
		}
		if _, err := b.insert(ctx, table,
			[]string{parentCol, "token_id", "amount"},
			[]any{parentID, tokenID, amount.Quantity},
		); err != nil {
			return err
		}
	}
	return nil
}
