package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/ogmios"
	"github.com/roach88/govsync/internal/projector"
	"github.com/roach88/govsync/internal/store"
	"github.com/roach88/govsync/internal/tracker"
)

// EventSource delivers chain-sync events in chain order.
// Implemented by *ogmios.Client (production) and the harness event log.
type EventSource interface {
	Next(ctx context.Context) (ogmios.Event, error)
}

// Ingestor applies chain-sync events to the store.
//
// Each block is applied in one store transaction: spends are marked and
// the projectors run for every transaction in block order, then the block
// commits. Any error rolls the block back and restores the tracked-state
// cache, so the store and cache never reflect a partial block.
//
// Thread-safety model:
//   - All methods must be called from one goroutine
//   - Cache() may be read between calls
type Ingestor struct {
	store           *store.Store
	cache           *tracker.Cache
	projectors      []projector.Projector
	treasurerPolicy []byte
	logger          *slog.Logger
	metrics         *Metrics
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets the ingestor logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingestor) {
		i.logger = logger
	}
}

// WithMetrics sets the collectors the ingestor updates.
func WithMetrics(m *Metrics) Option {
	return func(i *Ingestor) {
		i.metrics = m
	}
}

// New creates an Ingestor over s and loads the tracked-state cache from
// the unspent states already stored.
func New(ctx context.Context, s *store.Store, env projector.Env, opts ...Option) (*Ingestor, error) {
	i := &Ingestor{
		store:           s,
		treasurerPolicy: env.Policies.TreasurerNFT,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.metrics == nil {
		i.metrics = NewMetrics(nil)
	}
	if env.Logger == nil {
		env.Logger = i.logger
	}
	i.projectors = projector.All(env)

	cache, err := tracker.Load(ctx, s, i.treasurerPolicy)
	if err != nil {
		return nil, fmt.Errorf("load tracked state: %w", err)
	}
	i.cache = cache

	tip, err := s.Tip(ctx)
	if err != nil {
		return nil, err
	}
	if tip != nil {
		i.metrics.TipSlot.Set(float64(tip.Slot))
	}
	gov, treasury := cache.Len()
	i.logger.Info("tracked state loaded", "gov_threads", gov, "treasury_threads", treasury)
	return i, nil
}

// Cache returns the tracked-state cache.
func (i *Ingestor) Cache() *tracker.Cache {
	return i.cache
}

// Run applies events from src until ctx is cancelled or src fails.
// A transport failure is returned unchanged so the caller can reconnect;
// any other failure halts ingestion.
func (i *Ingestor) Run(ctx context.Context, src EventSource) error {
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := i.Handle(ctx, ev); err != nil {
			return err
		}
	}
}

// Handle applies one event.
func (i *Ingestor) Handle(ctx context.Context, ev ogmios.Event) error {
	switch e := ev.(type) {
	case ogmios.RollForward:
		return i.HandleRollForward(ctx, e.Block)
	case ogmios.RollBackward:
		return i.HandleRollback(ctx, e.Point)
	}
	return fmt.Errorf("unknown event %T", ev)
}

// HandleRollback deletes every block after point and rebuilds the cache.
// A nil point is the chain origin and deletes every block.
func (i *Ingestor) HandleRollback(ctx context.Context, point *ledger.Point) error {
	var deleted int64
	var err error
	if point == nil {
		deleted, err = i.store.RollbackAll(ctx)
	} else {
		deleted, err = i.store.RollbackTo(ctx, point.Slot)
	}
	if err != nil {
		return &IngestError{Code: ErrCodeStoreFailure, Message: err.Error(), Err: err}
	}
	if err := i.cache.Rebuild(ctx, i.store, i.treasurerPolicy); err != nil {
		return &IngestError{Code: ErrCodeStoreFailure, Message: err.Error(), Err: err}
	}
	i.metrics.Rollbacks.Inc()

	target := "origin"
	if point != nil {
		target = point.String()
	}
	gov, treasury := i.cache.Len()
	i.logger.Info("rolled back", "to", target, "blocks_deleted", deleted,
		"gov_threads", gov, "treasury_threads", treasury)

	tip, err := i.store.Tip(ctx)
	if err != nil {
		return &IngestError{Code: ErrCodeStoreFailure, Message: err.Error(), Err: err}
	}
	if tip != nil {
		i.metrics.TipSlot.Set(float64(tip.Slot))
	} else {
		i.metrics.TipSlot.Set(0)
	}
	return nil
}

// RollbackToSlot deletes every block above slot, the operator recovery
// path. Equivalent to a chain rollback to a point at slot.
func (i *Ingestor) RollbackToSlot(ctx context.Context, slot uint64) error {
	return i.HandleRollback(ctx, &ledger.Point{Slot: slot})
}

// HandleRollForward applies a block atomically. A block that is already
// stored is skipped.
func (i *Ingestor) HandleRollForward(ctx context.Context, blk ledger.Block) error {
	start := time.Now()
	ref := blockRef{slot: blk.Slot, hash: blk.Hash.String()}

	b, err := i.store.BeginBlock(ctx, blk.BlockHeader)
	if errors.Is(err, store.ErrBlockExists) {
		i.logger.Warn("block already stored", "slot", blk.Slot, "hash", ref.hash)
		return nil
	}
	if err != nil {
		return newIngestError(ErrCodeStoreFailure, ref, "", err)
	}

	snapshot := i.cache.Clone()
	rows := map[string]int{}
	for idx, raw := range blk.Transactions {
		if err := i.applyTx(ctx, b, idx, raw, rows); err != nil {
			if rbErr := b.Rollback(); rbErr != nil {
				i.logger.Error("discard block", "slot", blk.Slot, "error", rbErr)
			}
			i.cache.Restore(snapshot)
			i.logger.Error("block aborted", "slot", blk.Slot, "hash", ref.hash, "error", err)
			return err
		}
	}
	if err := b.Commit(); err != nil {
		i.cache.Restore(snapshot)
		return newIngestError(ErrCodeStoreFailure, ref, "", err)
	}

	for name, n := range rows {
		i.metrics.ProjectorRows.WithLabelValues(name).Add(float64(n))
	}
	i.metrics.BlocksApplied.Inc()
	i.metrics.TipSlot.Set(float64(blk.Slot))
	i.metrics.BlockApplySeconds.Observe(time.Since(start).Seconds())
	i.logger.Debug("block applied", "slot", blk.Slot, "height", blk.Height, "txs", len(blk.Transactions))
	return nil
}

func (i *Ingestor) applyTx(ctx context.Context, b *store.BlockTx, idx int, raw ledger.RawTx, rows map[string]int) error {
	ref := blockRef{slot: b.Header().Slot, hash: b.Header().Hash.String()}
	txID := raw.ID.String()

	tx, err := ledger.DecodeTransaction(raw.ID, raw.CBOR, i.logger)
	unsupported := errors.Is(err, ledger.ErrUnsupported)
	if err != nil && !unsupported {
		return newIngestError(ErrCodeDecodeFailure, ref, txID, err)
	}

	if !tx.Valid {
		if _, err := b.MarkSpent(ctx, tx.Collateral); err != nil {
			return newIngestError(ErrCodeStoreFailure, ref, txID, err)
		}
		i.metrics.TransactionsSkipped.Inc()
		i.logger.Warn("skipping transaction that failed script validation", "tx", txID, "slot", ref.slot,
			"collateral", len(tx.Collateral))
		i.endThreads(txID, tx.Collateral)
		return nil
	}

	if _, err := b.MarkSpent(ctx, tx.Inputs); err != nil {
		return newIngestError(ErrCodeStoreFailure, ref, txID, err)
	}
	if unsupported {
		i.metrics.TransactionsSkipped.Inc()
		i.logger.Warn("skipping transaction with unsupported ledger feature", "tx", txID, "slot", ref.slot, "error", err)
		i.endThreads(txID, tx.Inputs)
		return nil
	}

	in := projector.Input{Block: b, Cache: i.cache, Tx: tx, Index: idx}
	for _, p := range i.projectors {
		n, err := p.Project(ctx, in)
		if err != nil {
			return classify(ref, txID, err)
		}
		rows[p.Name()] += n
	}
	return nil
}

// endThreads drops the tracked threads spent by a transaction whose
// effects are not projected. Their history ends at the spent version.
func (i *Ingestor) endThreads(txID string, spent []ledger.OutRef) {
	for _, in := range spent {
		if t, ok := i.cache.GovByOutRef(in); ok {
			i.cache.RemoveGovByOutRef(in)
			i.logger.Warn("governance thread spent by skipped transaction", "tx", txID,
				"ref", in.String(), "thread", t.Thread.String())
		}
		if t, ok := i.cache.TreasuryByOutRef(in); ok {
			i.cache.RemoveTreasuryByOutRef(in)
			i.logger.Warn("treasury thread spent by skipped transaction", "tx", txID,
				"ref", in.String(), "thread", t.Thread.String())
		}
	}
}
