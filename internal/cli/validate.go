package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/lowcode/internal/manifest"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	connectorOptions
	Watch bool
}

// ManifestReport is the validation outcome of one manifest.
type ManifestReport struct {
	Path      string   `json:"path"`
	Valid     bool     `json:"valid"`
	Name      string   `json:"name,omitempty"`
	Substream string   `json:"substream,omitempty"`
	Parents   []string `json:"parents,omitempty"`
	Hash      string   `json:"hash,omitempty"`
	Code      string   `json:"code,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ValidationReport is the JSON payload of the validate command.
type ValidationReport struct {
	Valid     bool             `json:"valid"`
	Manifests []ManifestReport `json:"manifests"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate connector manifests",
		Long: `Validate one or more connector manifests.

Each manifest is checked against the manifest schema and then built, so
stream references, slicer configuration and authenticator templates are
all verified. Manifests are validated concurrently; the report keeps the
order given on the command line.

With --watch, a single manifest is revalidated every time it is written.

Examples:
  lowcode validate ./connector.yaml
  lowcode validate a.yaml b.cue --format json
  lowcode validate ./connector.yaml --watch`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				if len(args) != 1 {
					f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
					_ = f.Error(ErrCodeGeneric, "--watch takes exactly one manifest", nil)
					return NewExitError(ExitCommandError, "--watch takes exactly one manifest")
				}
				return runValidateWatch(cmd, opts, args[0])
			}
			return runValidate(cmd, opts, args)
		},
	}

	opts.connectorOptions.addFlags(cmd)
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "revalidate the manifest whenever it changes")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, paths []string) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	reports := validateAll(cmd.Context(), &opts.connectorOptions, paths)
	report := ValidationReport{Valid: true, Manifests: reports}
	for _, r := range reports {
		if !r.Valid {
			report.Valid = false
		}
	}

	if err := writeValidationReport(f, report); err != nil {
		return err
	}
	if !report.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// validateAll validates paths concurrently. Reports are indexed by input
// position so the output order is deterministic.
func validateAll(ctx context.Context, copts *connectorOptions, paths []string) []ManifestReport {
	if ctx == nil {
		ctx = context.Background()
	}
	reports := make([]ManifestReport, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = validateOne(copts, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for i := range reports {
			if reports[i].Path == "" {
				reports[i] = ManifestReport{Path: paths[i], Code: ErrCodeGeneric, Error: err.Error()}
			}
		}
	}
	return reports
}

func validateOne(copts *connectorOptions, path string) ManifestReport {
	m, err := manifest.Load(path)
	if err != nil {
		return ManifestReport{Path: path, Code: errorCode(err), Error: err.Error()}
	}
	return validateLoaded(copts, path, m)
}

// validateLoaded builds an already loaded manifest.
func validateLoaded(copts *connectorOptions, path string, m *manifest.Manifest) ManifestReport {
	r := ManifestReport{Path: path}
	c, err := copts.build(m)
	if err != nil {
		r.Code, r.Error = errorCode(err), err.Error()
		return r
	}
	hash, err := m.Hash()
	if err != nil {
		r.Code, r.Error = ErrCodeGeneric, err.Error()
		return r
	}
	r.Valid = true
	r.Name = m.Name
	r.Substream = c.Stream
	for _, p := range c.Parents {
		r.Parents = append(r.Parents, p.Name())
	}
	r.Hash = hash
	return r
}

func writeValidationReport(f *OutputFormatter, report ValidationReport) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		status := "ok"
		if !report.Valid {
			status = "error"
		}
		return enc.Encode(CLIResponse{Status: status, Data: report})
	}

	for _, r := range report.Manifests {
		writeManifestLine(f.Writer, r)
	}
	if !report.Valid {
		fmt.Fprintln(f.Writer, "✗ Validation failed")
	}
	return nil
}

func writeManifestLine(w io.Writer, r ManifestReport) {
	if r.Valid {
		fmt.Fprintf(w, "✓ %s: %s (substream %s, %d parents)\n", r.Path, r.Name, r.Substream, len(r.Parents))
		return
	}
	fmt.Fprintf(w, "✗ %s: [%s] %s\n", r.Path, r.Code, r.Error)
}

// runValidateWatch revalidates path on every change until interrupted.
func runValidateWatch(cmd *cobra.Command, opts *ValidateOptions, path string) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ctx, stop := signalContext(cmd)
	defer stop()

	events, err := manifest.Watch(ctx, path)
	if err != nil {
		return f.Fail(ExitCommandError, err)
	}
	f.VerboseLog("watching %s", path)

	for ev := range events {
		r := ManifestReport{Path: path}
		if ev.Err != nil {
			r.Code, r.Error = errorCode(ev.Err), ev.Err.Error()
		} else {
			r = validateLoaded(&opts.connectorOptions, path, ev.Manifest)
		}
		if f.Format == "json" {
			if err := json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: r}); err != nil {
				return err
			}
			continue
		}
		writeManifestLine(f.Writer, r)
	}
	return nil
}

