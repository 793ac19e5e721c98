package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/govsync/internal/engine"
	"github.com/roach88/govsync/internal/store"
)

// RollbackOptions holds flags for the rollback command.
type RollbackOptions struct {
	*RootOptions
	Database string
}

// RollbackResult reports the outcome of an operator rollback.
type RollbackResult struct {
	Slot    uint64 `json:"slot"`
	TipSlot uint64 `json:"tip_slot"`
	Empty   bool   `json:"empty"`
}

// RenderText implements textRenderer.
func (r RollbackResult) RenderText(w io.Writer) error {
	if r.Empty {
		_, err := fmt.Fprintf(w, "Rolled back to slot %d. Store is empty.\n", r.Slot)
		return err
	}
	_, err := fmt.Fprintf(w, "Rolled back to slot %d. Tip is now at slot %d.\n", r.Slot, r.TipSlot)
	return err
}

// NewRollbackCommand creates the rollback command.
func NewRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RollbackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rollback <slot>",
		Short: "Delete every block above a slot",
		Long: `Delete every stored block above the given slot, together with all
state the blocks produced. Outputs those blocks spent become unspent again.

Use this to recover from a halted indexer: roll back below the offending
block, fix the cause and sync again.

Examples:
  govsync rollback 72316796 --db ./govsync.db
  govsync rollback 0 --config govsync.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitSetup, fmt.Sprintf("invalid slot %q", args[0]))
			}
			return runRollback(opts, slot, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runRollback(opts *RollbackOptions, slot uint64, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	env, err := cfg.Env(logger)
	if err != nil {
		return WrapExitError(ExitSetup, "invalid configuration", err)
	}

	st, err := openExisting(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ing, err := engine.New(ctx, st, env, engine.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitSetup, "failed to load tracked state", err)
	}
	if err := ing.RollbackToSlot(ctx, slot); err != nil {
		return WrapExitError(ExitHalted, "rollback failed", err)
	}

	result := RollbackResult{Slot: slot, Empty: true}
	tip, err := st.Tip(ctx)
	if err != nil {
		return WrapExitError(ExitHalted, "failed to read tip", err)
	}
	if tip != nil {
		result.TipSlot = tip.Slot
		result.Empty = false
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return out.Success(result)
}

// openExisting opens a database that must already exist; commands that
// only inspect or repair a store never create one.
func openExisting(path string, logger *slog.Logger) (*store.Store, error) {
	if !fileExists(path) {
		return nil, NewExitError(ExitSetup, fmt.Sprintf("database not found: %s", path))
	}
	logger.Info("opening database", "path", path)
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitSetup, "failed to open database", err)
	}
	return st, nil
}
