package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/stream"
)

// SlicesOptions holds flags for the slices command.
type SlicesOptions struct {
	*RootOptions
	connectorOptions
	Limit    int
	FullSync bool
}

// SliceEntry is one produced slice in JSON output.
type SliceEntry struct {
	Parent string   `json:"parent"`
	Slice  *doc.Map `json:"slice"`
}

// NewSlicesCommand creates the slices command.
func NewSlicesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SlicesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "slices <manifest>",
		Short: "Preview the slices a substream produces",
		Long: `Preview the child slices produced from a manifest's parent streams.

Slices are produced lazily; with --limit, parent records past the limit
are never read. Nothing is persisted.

Text output prints one slice per line as "<parent>\t<slice JSON>".

Examples:
  lowcode slices ./connector.yaml
  lowcode slices ./connector.yaml --limit 10 --format json
  lowcode slices ./connector.yaml --config ./secrets.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlices(cmd, opts, args[0])
		},
	}

	opts.connectorOptions.addFlags(cmd)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "stop after this many slices (0 = all)")
	cmd.Flags().BoolVar(&opts.FullSync, "full-refresh", false, "request parent partitions in full-refresh mode")

	return cmd
}

func runSlices(cmd *cobra.Command, opts *SlicesOptions, path string) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Limit < 0 {
		msg := fmt.Sprintf("invalid --limit %d: must not be negative", opts.Limit)
		_ = f.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	_, c, err := opts.loadConnector(path)
	if err != nil {
		return f.Fail(ExitCommandError, err)
	}

	mode := c.SyncMode
	if opts.FullSync {
		mode = stream.FullRefresh
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	it := c.Slicer.StreamSlices(ctx, mode, c.CursorField, nil)
	defer it.Close()

	var entries []SliceEntry
	for (opts.Limit == 0 || len(entries) < opts.Limit) && it.Next(ctx) {
		entries = append(entries, SliceEntry{Parent: it.Parent(), Slice: it.Value()})
	}
	if err := it.Err(); err != nil {
		return f.Fail(ExitFailure, err)
	}
	f.VerboseLog("%d slices from %d parents", len(entries), len(c.Parents))

	if f.Format == "json" {
		if entries == nil {
			entries = []SliceEntry{}
		}
		return f.Success(entries)
	}
	for _, e := range entries {
		data, err := json.Marshal(e.Slice)
		if err != nil {
			return err
		}
		fmt.Fprintf(f.Writer, "%s\t%s\n", e.Parent, data)
	}
	return nil
}
