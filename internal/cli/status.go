package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/govsync/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
}

// StatusResult describes a store.
type StatusResult struct {
	Database string             `json:"database"`
	Tip      *TipInfo           `json:"tip,omitempty"`
	Tables   []store.TableCount `json:"tables"`
}

// TipInfo is the highest stored block.
type TipInfo struct {
	Slot   uint64 `json:"slot"`
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

// RenderText implements textRenderer.
func (r StatusResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Database: %s\n", r.Database)
	if r.Tip == nil {
		fmt.Fprintln(w, "Tip: none (empty store)")
	} else {
		fmt.Fprintf(w, "Tip: slot %d, height %d, hash %s\n", r.Tip.Slot, r.Tip.Height, r.Tip.Hash)
	}
	fmt.Fprintln(w)
	for _, c := range r.Tables {
		if _, err := fmt.Fprintf(w, "  %-32s %d\n", c.Table, c.Rows); err != nil {
			return err
		}
	}
	return nil
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored tip and row counts",
		Long: `Show the highest stored block and the number of rows in every table.

Examples:
  govsync status --db ./govsync.db
  govsync status --config govsync.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
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

	st, err := openExisting(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	result := StatusResult{Database: cfg.Database}
	tip, err := st.Tip(ctx)
	if err != nil {
		return WrapExitError(ExitHalted, "failed to read tip", err)
	}
	if tip != nil {
		result.Tip = &TipInfo{Slot: tip.Slot, Height: tip.Height, Hash: tip.Hash.String()}
	}
	if result.Tables, err = st.TableCounts(ctx); err != nil {
		return WrapExitError(ExitHalted, "failed to count rows", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return out.Success(result)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
