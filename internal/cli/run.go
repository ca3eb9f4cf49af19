package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/harness"
	"github.com/roach88/splitledger/internal/kvp"
	"github.com/roach88/splitledger/internal/metrics"
	"github.com/roach88/splitledger/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Errors   []string             `json:"errors,omitempty"`
	Journal  string               `json:"journal"`
	State    json.RawMessage      `json:"state"`
	Metrics  []metrics.Count      `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Execute one ledger scenario",
		Long: `Execute a scenario file against a fresh book and print the trace,
the journal tags and the final state.

With --db (or journal.path in the config file) every journal entry and
every committed transaction is also written to the SQLite store, and
the journal sequence continues from what the store already holds.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed (unexpected error or failed assertion)
  2 - Command error (scenario not found, database error, etc.)

Examples:
  splitledger run ./scenarios/simple_transfer.yaml
  splitledger run --db ./ledger.db ./scenarios/simple_transfer.yaml
  splitledger run --config ./splitledger.yaml --format json ./scenarios/stock.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides journal.path)")

	return cmd
}

func runScenarioCommand(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := opts.logger(cmd.ErrOrStderr())
	cfg := opts.settings()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.cfg != nil {
		runOpts = append(runOpts, harness.WithBookOptions(cfg.BookOptions()...))
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Journal.Path
	}
	if dbPath != "" {
		st, storeOpts, err := openJournalStore(ctx, dbPath, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		runOpts = append(runOpts, storeOpts...)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder, err = metrics.NewRecorder(nil)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create metrics recorder", err)
		}
		runOpts = append(runOpts, harness.WithObserver(recorder))
	}

	logger.Debug("running scenario", "name", scenario.Name, "path", path, "db", dbPath)
	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		if opts.Format == "json" {
			f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
			_ = f.Error(errorCode(err, ErrCodeScenario), err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	state, err := kvp.MarshalCanonical(result.State)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode final state", err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
		Journal:  result.Journal,
		State:    state,
	}
	if recorder != nil {
		if out.Metrics, err = recorder.Snapshot(); err != nil {
			return WrapExitError(ExitCommandError, "failed to read metrics", err)
		}
	}

	if opts.Format == "json" {
		if err := outputRunJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		outputRunText(cmd.OutOrStdout(), out)
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
	}
	return nil
}

// openJournalStore opens the SQLite store and returns the harness options
// that persist a run into it: journal, journal clock and backend.
func openJournalStore(ctx context.Context, path string, logger *slog.Logger) (*store.Store, []harness.Option, error) {
	logger.Info("opening database", "path", path)
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	clock, err := st.JournalClock(ctx)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to read journal sequence", err)
	}

	return st, []harness.Option{
		harness.WithJournal(st),
		harness.WithJournalClock(clock),
		harness.WithBackend(st),
	}, nil
}

// outputRunJSON outputs the run result as JSON.
func outputRunJSON(w io.Writer, result RunResult) error {
	f := &OutputFormatter{Format: "json", Writer: w}
	if result.Pass {
		return f.Success(result)
	}
	return f.encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error: &CLIError{
			Code:    ErrCodeScenario,
			Message: fmt.Sprintf("scenario %s failed", result.Scenario),
			Details: result.Errors,
		},
	})
}

// outputRunText outputs the run result as text.
func outputRunText(w io.Writer, result RunResult) {
	status := "PASS"
	if !result.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s %s\n", status, result.Scenario)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Trace ===")
	if len(result.Trace) == 0 {
		fmt.Fprintln(w, "  (no steps)")
	}
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "  [%d] %s %s -> %s\n", ev.Seq, ev.Op, ev.Target, ev.Outcome)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Journal: %s\n", result.Journal)
	fmt.Fprintf(w, "State: %s\n", result.State)

	if len(result.Metrics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Metrics ===")
		for _, c := range result.Metrics {
			fmt.Fprintf(w, "  %-20s %-8s %d\n", c.Operation, c.Status, c.Total)
		}
	}

	if len(result.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Errors ===")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
