package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/store"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	Database string
	Clear    bool
	Runs     bool
}

// StateReport is the JSON payload of the state command.
type StateReport struct {
	Stream  string       `json:"stream"`
	State   *doc.Map     `json:"state"`
	Hash    string       `json:"hash,omitempty"`
	RunID   string       `json:"run_id,omitempty"`
	Seq     int64        `json:"seq,omitempty"`
	Cleared bool         `json:"cleared,omitempty"`
	Runs    []RunSummary `json:"runs,omitempty"`
}

// RunSummary is one entry of a stream's run history.
type RunSummary struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	SyncMode   string     `json:"sync_mode"`
	Slices     int64      `json:"slices"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state <stream>",
		Short: "Show or clear the checkpointed state of a child stream",
		Long: `Show the cursor state last checkpointed for a child stream.

A stream with no checkpoint is reported as having no state. --clear
removes the checkpoint so the next incremental sync starts from scratch.
--runs adds the stream's run history.

Examples:
  lowcode state cards --db ./lowcode.db
  lowcode state cards --db ./lowcode.db --runs --format json
  lowcode state cards --db ./lowcode.db --clear`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "delete the stream's checkpoint")
	cmd.Flags().BoolVar(&opts.Runs, "runs", false, "include the stream's run history")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runState(cmd *cobra.Command, opts *StateOptions, streamName string) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	report := StateReport{Stream: streamName}

	if opts.Clear {
		if err := st.SaveState(ctx, store.StateRecord{Stream: streamName}); err != nil {
			_ = f.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to clear state", err)
		}
		report.Cleared = true
	} else {
		rec, err := st.LoadState(ctx, streamName)
		switch {
		case errors.Is(err, store.ErrNoState):
		case err != nil:
			_ = f.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load state", err)
		default:
			report.State, report.Hash, report.RunID, report.Seq = rec.State, rec.Hash, rec.RunID, rec.Seq
		}
	}

	if opts.Runs {
		runs, err := st.ListRuns(ctx, streamName)
		if err != nil {
			_ = f.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			report.Runs = append(report.Runs, RunSummary{
				ID:         r.ID,
				Status:     string(r.Status),
				SyncMode:   r.SyncMode,
				Slices:     r.SliceCount,
				Error:      r.Error,
				StartedAt:  r.StartedAt,
				FinishedAt: r.FinishedAt,
			})
		}
	}

	if f.Format == "json" {
		return f.Success(report)
	}
	return writeStateText(f, report)
}

func writeStateText(f *OutputFormatter, report StateReport) error {
	switch {
	case report.Cleared:
		fmt.Fprintf(f.Writer, "✓ Cleared state for %s\n", report.Stream)
	case report.State == nil:
		fmt.Fprintf(f.Writer, "%s: no state\n", report.Stream)
	default:
		data, err := json.Marshal(report.State)
		if err != nil {
			return err
		}
		fmt.Fprintf(f.Writer, "%s: %s\n", report.Stream, data)
		f.VerboseLog("hash %s, run %s, seq %d", report.Hash, report.RunID, report.Seq)
	}
	for _, r := range report.Runs {
		line := fmt.Sprintf("  %s  %-9s  %-12s  %d slices", r.ID, r.Status, r.SyncMode, r.Slices)
		if r.Error != "" {
			line += "  error: " + r.Error
		}
		fmt.Fprintln(f.Writer, line)
	}
	return nil
}
