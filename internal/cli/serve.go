package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/sheetblocks/internal/server"
	"github.com/matzehuels/sheetblocks/pkg/pipeline"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the upload, annotation, template and batch endpoints over HTTP on the
configured storage. Runs until interrupted, then shuts down gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			if addr == "" {
				addr = cfg.Server.Addr
			}
			return c.withService(cmd.Context(), func(svc *pipeline.Service) error {
				srv := server.New(svc, server.Options{
					Addr:            addr,
					MaxUploadBytes:  cfg.MaxUploadBytes(),
					CORSOrigins:     cfg.Server.CORSOrigins,
					ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration,
				}, c.Logger)
				printInfo("Serving on %s (storage: %s)", StyleHighlight.Render(addr), cfg.Storage.Driver)
				return srv.ListenAndServe(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8000)")
	return cmd
}
