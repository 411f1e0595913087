package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lowcode/internal/interpolation"
	"github.com/roach88/lowcode/internal/manifest"
	"github.com/roach88/lowcode/internal/slicer"
	"github.com/roach88/lowcode/internal/store"
)

// Error codes reported by CLI commands. Manifest load failures carry the
// manifest package's codes (E001-E010).
const (
	ErrCodeGeneric      = manifest.ErrCodeGeneric
	ErrCodeSlicerConfig = "E011" // substream configuration rejected
	ErrCodeTemplate     = "E012" // template evaluation failed
	ErrCodeDatabase     = "E020" // database open/read/write failed
	ErrCodeSyncFailed   = "E021" // sync run failed
)

// errorCode classifies err for CLI output.
func errorCode(err error) string {
	var loadErr *manifest.LoadError
	var cfgErr *slicer.ConfigError
	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.Err == nil:
		return exitErr.Message
	case errors.As(err, &loadErr):
		return loadErr.Code
	case errors.As(err, &cfgErr):
		return ErrCodeSlicerConfig
	case errors.Is(err, interpolation.ErrEval):
		return ErrCodeTemplate
	default:
		return ErrCodeGeneric
	}
}

// connectorOptions holds flags shared by commands that build a connector.
type connectorOptions struct {
	ConfigPath string
}

func (o *connectorOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.ConfigPath, "config", "", "runtime config file (YAML or JSON) replacing the manifest's config block")
}

// loadConnector loads the manifest at path and builds its connector.
func (o *connectorOptions) loadConnector(path string) (*manifest.Manifest, *manifest.Connector, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}
	c, err := o.build(m)
	if err != nil {
		return nil, nil, err
	}
	return m, c, nil
}

// build builds m, replacing its config block when --config is set.
func (o *connectorOptions) build(m *manifest.Manifest) (*manifest.Connector, error) {
	var buildOpts []manifest.BuildOption
	if o.ConfigPath != "" {
		config, err := manifest.LoadConfig(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		buildOpts = append(buildOpts, manifest.WithConfig(config))
	}
	return manifest.Build(m, buildOpts...)
}

// openStore opens the database, reporting failures with ErrCodeDatabase.
func openStore(f *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		_ = f.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// signalContext returns the command's context, cancelled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
