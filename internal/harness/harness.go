package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/govsync/internal/config"
	"github.com/roach88/govsync/internal/engine"
	"github.com/roach88/govsync/internal/ogmios"
	"github.com/roach88/govsync/internal/store"
)

// Harness runs one scenario against a fresh store.
type Harness struct {
	store    *store.Store
	ingestor *engine.Ingestor
	logger   *slog.Logger
	dbPath   string
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger routes ingestor and store logs to logger. Logs are
// discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithDatabase runs the scenario against the database at path instead
// of an in-memory one, leaving the projection behind for inspection.
func WithDatabase(path string) Option {
	return func(h *Harness) {
		h.dbPath = path
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Build the projector environment from the scenario's policies
// 2. Apply every event through the ingestor, as chain sync would
// 3. Capture table counts and the store dump
// 4. Evaluate assertions
//
// A step that fails without expecting to halts the run, as a production
// indexer would; the failure is reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		dbPath: ":memory:",
	}
	for _, opt := range opts {
		opt(h)
	}
	ctx := context.Background()

	cfg := config.Default()
	if scenario.Network != "" {
		cfg.Network = scenario.Network
	}
	cfg.Policies = scenario.Policies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario configuration: %w", err)
	}
	env, err := cfg.Env(h.logger)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(h.dbPath, store.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	ing, err := engine.New(ctx, st, env, engine.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestor: %w", err)
	}
	h.store = st
	h.ingestor = ing

	src, err := NewSource(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	if err := h.executeEvents(ctx, scenario.Events, src, result); err != nil {
		return nil, fmt.Errorf("failed to execute events: %w", err)
	}

	counts, err := st.TableCounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		result.State[c.Table] = c.Rows
	}

	var dump bytes.Buffer
	if err := st.Dump(ctx, &dump); err != nil {
		return nil, err
	}
	result.Dump = dump.String()

	actx := &AssertionContext{
		Ctx:             ctx,
		Store:           st,
		Cache:           ing.Cache(),
		TreasurerPolicy: env.Policies.TreasurerNFT,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// executeEvents applies each event and checks it against the step's
// expected error.
func (h *Harness) executeEvents(ctx context.Context, steps []Step, src *Source, result *Result) error {
	for i, step := range steps {
		ev, err := src.Next(ctx)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}

		applyErr := h.ingestor.Handle(ctx, ev)
		code := ErrorCode(applyErr)

		switch e := ev.(type) {
		case ogmios.RollForward:
			result.AddForwardTrace(e.Block.Slot, e.Block.Hash.String(), len(e.Block.Transactions), code)
		case ogmios.RollBackward:
			if e.Point == nil {
				result.AddRollbackTrace(0, "", code)
			} else {
				result.AddRollbackTrace(e.Point.Slot, e.Point.Hash.String(), code)
			}
		}

		switch {
		case step.ExpectError != "" && code != step.ExpectError:
			got := code
			if got == "" {
				got = "success"
			}
			result.AddError(fmt.Sprintf("events[%d]: expected error %s, got %s", i, step.ExpectError, got))
		case step.ExpectError == "" && applyErr != nil:
			result.AddError(fmt.Sprintf("events[%d]: %v", i, applyErr))
			h.logger.Error("scenario halted", "step", i, "error", applyErr)
			return nil
		}

		h.logger.Info("scenario step applied", "step", i, "event", fmt.Sprintf("%T", ev), "error_code", code)
	}
	return nil
}

// ErrorCode returns the ingest error code of err, "" for nil and
// "ERROR" for failures outside the ingest taxonomy.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var ie *engine.IngestError
	if errors.As(err, &ie) {
		return string(ie.Code)
	}
	return "ERROR"
}
