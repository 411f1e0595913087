package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/lowcode/internal/auth"
)

// AuthOptions holds flags for the auth command.
type AuthOptions struct {
	*RootOptions
	connectorOptions
	Reveal bool
	URL    string
}

// AuthReport is the JSON payload of the auth command.
type AuthReport struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Header string `json:"header"`
	Value  string `json:"value"`
	Masked bool   `json:"masked"`
}

// NewAuthCommand creates the auth command.
func NewAuthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "auth <manifest>",
		Short: "Show the authentication header a manifest produces",
		Long: `Evaluate the manifest's authenticator against its config and show the
header it would set on a request.

The header value is masked unless --reveal is given.

Examples:
  lowcode auth ./connector.yaml
  lowcode auth ./connector.yaml --config ./secrets.yaml --reveal`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, opts, args[0])
		},
	}

	opts.connectorOptions.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.Reveal, "reveal", false, "print the header value unmasked")
	cmd.Flags().StringVar(&opts.URL, "url", "https://api.example.com/", "request URL the header is applied to")

	return cmd
}

func runAuth(cmd *cobra.Command, opts *AuthOptions, path string) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	m, c, err := opts.loadConnector(path)
	if err != nil {
		return f.Fail(ExitCommandError, err)
	}
	if c.Authenticator == nil {
		msg := fmt.Sprintf("manifest %s declares no authenticator", m.Name)
		_ = f.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, opts.URL, nil)
	if err != nil {
		return f.Fail(ExitCommandError, err)
	}
	if err := auth.Apply(req, c.Authenticator); err != nil {
		return f.Fail(ExitFailure, err)
	}
	name, _, err := auth.Header(c.Authenticator)
	if err != nil {
		return f.Fail(ExitFailure, err)
	}

	report := AuthReport{
		Type:   m.Authenticator.Type,
		URL:    req.URL.String(),
		Header: name,
		Value:  req.Header.Get(name),
	}
	if !opts.Reveal {
		report.Value = auth.Mask(report.Value)
		report.Masked = true
	}

	if f.Format == "json" {
		return f.Success(report)
	}
	fmt.Fprintf(f.Writer, "%s: %s\n", report.Header, report.Value)
	f.VerboseLog("%s applied to GET %s", report.Type, report.URL)
	return nil
}
