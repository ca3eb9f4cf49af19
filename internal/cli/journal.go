package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/guid"
	"github.com/roach88/splitledger/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database    string
	Transaction string
	Kinds       []string
	AfterSeq    int64
	Limit       int
	Interrupted bool
}

// JournalEvent is one journal row as printed.
type JournalEvent struct {
	Seq         int64  `json:"seq"`
	Kind        string `json:"kind"`
	Transaction string `json:"transaction"`
	Payload     string `json:"payload,omitempty"`
}

// JournalHistory summarizes how a transaction's last edit session ended.
type JournalHistory struct {
	Transaction string `json:"transaction"`
	LastSeq     int64  `json:"last_seq"`
	LastKind    string `json:"last_kind"`
	Status      string `json:"status"`
	Committed   bool   `json:"committed"`
}

// JournalResult holds the journal command output.
type JournalResult struct {
	Events    []JournalEvent   `json:"events"`
	Histories []JournalHistory `json:"histories,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the edit journal",
		Long: `Read the edit journal from a SQLite store.

Each entry is one of B (begin), C (commit), R (rollback) or D (delete),
with the transaction's canonical snapshot at that point.

With --tx the transaction's history is also analyzed: whether its last
session was committed, deleted, rolled back or interrupted mid-edit.
With --interrupted only transactions whose last entry is a begin are
listed; the command exits 1 when any are found.

Examples:
  splitledger journal --db ./ledger.db
  splitledger journal --db ./ledger.db --kind C --kind D
  splitledger journal --db ./ledger.db --tx 00000000-0000-0000-0000-000000000001
  splitledger journal --db ./ledger.db --interrupted --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Transaction, "tx", "", "only entries of this transaction GUID")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only entries of these kinds (B, C, R, D)")
	cmd.Flags().Int64Var(&opts.AfterSeq, "after", 0, "only entries after this sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")
	cmd.Flags().BoolVar(&opts.Interrupted, "interrupted", false, "list transactions with an unfinished edit")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	filter, err := opts.filter()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid journal filter", err)
	}

	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database, store.ReadOnly(), store.WithLogger(opts.logger(cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result := JournalResult{Events: []JournalEvent{}}

	if opts.Interrupted {
		histories, err := st.FindInterruptedEdits(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find interrupted edits", err)
		}
		for _, h := range histories {
			result.Histories = append(result.Histories, toJournalHistory(h))
		}
		if err := outputJournal(opts, cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if len(histories) > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d interrupted edit(s)", len(histories)))
		}
		return nil
	}

	records, err := st.ReadJournal(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	for _, rec := range records {
		ev := JournalEvent{
			Seq:         rec.Seq,
			Kind:        rec.Kind.String(),
			Transaction: rec.Transaction.String(),
		}
		if opts.Verbose {
			ev.Payload = rec.Payload
		}
		result.Events = append(result.Events, ev)
	}

	if !filter.Transaction.IsNull() {
		h, err := st.GetHistory(ctx, filter.Transaction)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		result.Histories = []JournalHistory{toJournalHistory(h)}
	}

	return outputJournal(opts, cmd.OutOrStdout(), result)
}

// filter converts the flags to a store filter.
func (o *JournalOptions) filter() (store.JournalFilter, error) {
	f := store.JournalFilter{AfterSeq: o.AfterSeq, Limit: o.Limit}

	if o.Transaction != "" {
		id, err := guid.Parse(o.Transaction)
		if err != nil {
			return f, fmt.Errorf("--tx: %w", err)
		}
		f.Transaction = id
	}

	for _, k := range o.Kinds {
		if len(k) != 1 || !engine.JournalKind(k[0]).Valid() {
			return f, fmt.Errorf("--kind: unknown journal kind %q", k)
		}
		f.Kinds = append(f.Kinds, engine.JournalKind(k[0]))
	}
	return f, nil
}

func toJournalHistory(h store.TransactionHistory) JournalHistory {
	out := JournalHistory{
		Transaction: h.Transaction.String(),
		LastSeq:     h.LastSeq,
		Status:      historyStatus(h),
		Committed:   h.Committed,
	}
	if len(h.Entries) > 0 {
		out.LastKind = h.LastKind.String()
	}
	return out
}

// historyStatus names how the last edit session ended.
func historyStatus(h store.TransactionHistory) string {
	switch {
	case len(h.Entries) == 0:
		return "unknown"
	case h.Interrupted:
		return "interrupted"
	case h.Deleted:
		return "deleted"
	case h.LastKind == engine.JournalRollback:
		return "rolled back"
	default:
		return "committed"
	}
}

func outputJournal(opts *JournalOptions, w io.Writer, result JournalResult) error {
	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: w}
		return f.Success(result)
	}

	if opts.Interrupted {
		if len(result.Histories) == 0 {
			fmt.Fprintln(w, "No interrupted edits.")
			return nil
		}
		fmt.Fprintln(w, "=== Interrupted Edits ===")
		for _, h := range result.Histories {
			fmt.Fprintf(w, "  %s  begun at seq %d, committed snapshot: %t\n", h.Transaction, h.LastSeq, h.Committed)
		}
		return nil
	}

	fmt.Fprintln(w, "=== Journal ===")
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  [%d] %s %s\n", ev.Seq, ev.Kind, ev.Transaction)
		if ev.Payload != "" {
			fmt.Fprintf(w, "       %s\n", ev.Payload)
		}
	}

	for _, h := range result.Histories {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== History ===")
		fmt.Fprintf(w, "  Transaction: %s\n", h.Transaction)
		fmt.Fprintf(w, "  Status:      %s\n", h.Status)
		fmt.Fprintf(w, "  Last Entry:  [%d] %s\n", h.LastSeq, h.LastKind)
		fmt.Fprintf(w, "  Committed:   %t\n", h.Committed)
	}
	return nil
}
