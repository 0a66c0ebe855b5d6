package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/warden"
	"github.com/dmitrymomot/warden/internal/server"
	"github.com/dmitrymomot/warden/pkg/config"
	"github.com/dmitrymomot/warden/pkg/logger"
)

type rootFlags struct {
	configPath string
	envFiles   []string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "Resource paths, CSRF tokens, audit logs and error tracking",
		Long: `warden runs the trust layer of a web application: it resolves virtual
resource paths, issues and verifies CSRF tokens, appends audit records and
keeps the most recent errors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("WARDEN_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "warden.yaml"
	}
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", defaultConfig, "configuration file")
	cmd.PersistentFlags().StringSliceVar(&f.envFiles, "env-file", []string{".env"}, "dotenv files for unset variables")
	cmd.PersistentFlags().BoolVar(&f.jsonOutput, "json", false, "output in JSON format")

	cmd.AddCommand(
		newServeCmd(f),
		newRouteCmd(f),
		newCSRFCmd(f),
		newAuditCmd(f),
	)
	return cmd
}

// open builds a runtime for one-shot commands: logging is discarded and
// diagnostics go to the command's stderr.
func (f *rootFlags) open(cmd *cobra.Command) (*warden.Runtime, error) {
	return warden.Open(f.configPath,
		warden.WithLoadOptions(config.WithEnvFiles(f.envFiles...)),
		warden.WithLogger(logger.NewNope()),
		warden.WithErrorOutput(cmd.ErrOrStderr()),
	)
}

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP endpoints and run background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := warden.Open(f.configPath,
				warden.WithLoadOptions(config.WithEnvFiles(f.envFiles...)),
				warden.WithLogExtractors(server.RequestIDExtractor()),
				warden.WithErrorOutput(cmd.ErrOrStderr()),
			)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Prepare(); err != nil {
				return err
			}
			return server.Run(cmd.Context(), rt, nil)
		},
	}
}

func (f *rootFlags) print(w io.Writer, v any, plain func(io.Writer) error) error {
	if f.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return plain(w)
}
