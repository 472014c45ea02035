package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rpcexpose/internal/app"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath points at the YAML configuration file.
var serveConfigPath string

// serveCmd starts the HTTP transport (and the MCP transport when enabled)
// in front of the demo composition.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the exposed endpoints over HTTP",
	Long: `Compiles the exposure configuration and serves every endpoint over HTTP.

The server also provides:
  - GET /healthz     readiness of the transport
  - GET /_routes     the compiled endpoint table as JSON
  - GET /metrics     Prometheus metrics (metrics.enabled)
  - /mcp             every endpoint as an MCP tool (mcp.enabled)

Configuration:
  Use --config to load a YAML file. Without it, or when the file does not
  exist, built-in defaults are used. Invalid configuration aborts startup
  with exit code 2.

The server stops gracefully on SIGINT or SIGTERM, draining in-flight
calls within server.shutdownTimeout.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath, GetVersion())

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to the YAML configuration file")
}
