package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/govsync/internal/harness"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string // optional - keep the projection in this file
	Dump     bool
}

// ReplayResult holds the outcome of replaying one scenario.
type ReplayResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Events   []harness.TraceEvent `json:"events"`
	Tables   map[string]int64     `json:"tables"`
	Errors   []string             `json:"errors,omitempty"`
	Dump     string               `json:"dump,omitempty"`
}

// RenderText implements textRenderer.
func (r ReplayResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	for i, ev := range r.Events {
		line := fmt.Sprintf("  [%d] %-8s slot %d", i+1, ev.Type, ev.Slot)
		if ev.Type == "forward" {
			line += fmt.Sprintf(" (%d txs)", ev.Txs)
		}
		if ev.Error != "" {
			line += " -> " + ev.Error
		}
		fmt.Fprintln(w, line)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
	if r.Dump != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, r.Dump)
	}
	if r.Pass {
		fmt.Fprintln(w, "✓ Replay passed")
	}
	return nil
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay a recorded chain-sync scenario",
		Long: `Replay a scenario file through the ingestor without a node.

Each event is applied as chain sync would deliver it, then the
scenario's assertions are checked. By default the projection lives in
memory; --db keeps it in a file for inspection.

Exit codes:
  0 - All events behaved as expected and all assertions hold
  1 - An event or assertion failed
  2 - Command error (scenario not found, malformed, etc.)

Examples:
  govsync replay ./scenarios/vote_rollback.yaml
  govsync replay ./scenarios/vote_rollback.yaml --dump
  govsync replay ./scenarios/vote_rollback.yaml --db /tmp/replay.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "write the projection to this SQLite file")
	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "print the final projection")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitSetup, "failed to load scenario", err)
	}
	if opts.Database != "" && fileExists(opts.Database) {
		return NewExitError(ExitSetup, fmt.Sprintf("database already exists: %s", opts.Database))
	}

	runOpts := []harness.Option{}
	if opts.Verbose {
		runOpts = append(runOpts, harness.WithLogger(logger))
	}
	if opts.Database != "" {
		runOpts = append(runOpts, harness.WithDatabase(opts.Database))
	}
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitSetup, "failed to run scenario", err)
	}

	out := ReplayResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Events:   result.Trace,
		Tables:   result.State,
		Errors:   result.Errors,
	}
	if opts.Dump {
		out.Dump = result.Dump
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if err := formatter.Success(out); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitHalted, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}
