package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/engine"
	"github.com/roach88/lowcode/internal/stream"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	connectorOptions
	Database        string
	Limit           int
	CheckpointEvery int
	FullRefresh     bool
}

// SyncSummary is the JSON payload of the sync command.
type SyncSummary struct {
	RunID       string   `json:"run_id"`
	Connector   string   `json:"connector"`
	Stream      string   `json:"stream"`
	SyncMode    string   `json:"sync_mode"`
	Status      string   `json:"status"`
	Slices      int64    `json:"slices"`
	Checkpoints int      `json:"checkpoints"`
	Limited     bool     `json:"limited,omitempty"`
	State       *doc.Map `json:"state"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <manifest>",
		Short: "Run a sync and persist slices and state",
		Long: `Run the manifest's substream against its parent streams.

Every produced slice is logged to the database and folded into the cursor
state, which is checkpointed every --checkpoint-every slices and at the
end of the run. Incremental syncs resume from the stored state of the
child stream; --full-refresh ignores it.

Examples:
  lowcode sync ./connector.yaml --db ./lowcode.db
  lowcode sync ./connector.yaml --db ./lowcode.db --limit 100
  lowcode sync ./connector.yaml --db ./lowcode.db --full-refresh --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, args[0])
		},
	}

	opts.connectorOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "stop after this many slices (0 = all)")
	cmd.Flags().IntVar(&opts.CheckpointEvery, "checkpoint-every", engine.DefaultCheckpointEvery, "slices between state checkpoints (0 = only at the end)")
	cmd.Flags().BoolVar(&opts.FullRefresh, "full-refresh", false, "ignore stored state and read every parent partition")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions, path string) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	setupLogging(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Limit < 0 {
		msg := fmt.Sprintf("invalid --limit %d: must not be negative", opts.Limit)
		_ = f.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	m, c, err := opts.loadConnector(path)
	if err != nil {
		return f.Fail(ExitCommandError, err)
	}
	hash, err := m.Hash()
	if err != nil {
		return f.Fail(ExitCommandError, err)
	}

	st, err := openStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	mode := c.SyncMode
	if opts.FullRefresh {
		mode = stream.FullRefresh
	}

	eng := engine.New(st, engine.WithCheckpointEvery(opts.CheckpointEvery))
	res, err := eng.Run(ctx, engine.Request{
		Connector:    c.Name,
		Stream:       c.Stream,
		ManifestHash: hash,
		Slicer:       c.Slicer,
		SyncMode:     mode,
		CursorField:  c.CursorField,
		Limit:        opts.Limit,
	})
	if err != nil {
		_ = f.Error(ErrCodeSyncFailed, err.Error(), runDetails(res))
		return WrapExitError(ExitFailure, "sync failed", err)
	}

	summary := SyncSummary{
		RunID:       res.RunID,
		Connector:   c.Name,
		Stream:      c.Stream,
		SyncMode:    string(mode),
		Status:      string(res.Status),
		Slices:      res.Slices,
		Checkpoints: res.Checkpoints,
		Limited:     res.Limited,
		State:       res.State,
	}
	if f.Format == "json" {
		return f.Success(summary)
	}

	fmt.Fprintf(f.Writer, "✓ %s/%s run %s: %d slices, %d checkpoints\n",
		summary.Connector, summary.Stream, summary.RunID, summary.Slices, summary.Checkpoints)
	if summary.Limited {
		fmt.Fprintf(f.Writer, "  stopped at --limit %d\n", opts.Limit)
	}
	state, err := json.Marshal(summary.State)
	if err != nil {
		return err
	}
	fmt.Fprintf(f.Writer, "  state: %s\n", state)
	return nil
}

// runDetails describes a failed run for error output; nil when the run was
// never started.
func runDetails(res *engine.Result) map[string]any {
	if res == nil {
		return nil
	}
	return map[string]any{
		"run_id": res.RunID,
		"status": string(res.Status),
		"slices": res.Slices,
	}
}
