package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rpcexpose/internal/app"
	"rpcexpose/internal/formatting"
)

var (
	routesConfigPath string
	routesOutput     string
	routesNoColor    bool
)

// routesCmd prints the endpoint table the serve command would publish.
var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the compiled endpoint table",
	Long: `Compiles every exposed route with the given configuration and prints
verb, path, method, success status, authorization checks and filter count.
Nothing is served.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatting.ParseOutputFormat(routesOutput)
		if err != nil {
			return err
		}
		return listRoutes(cmd.OutOrStdout(), routesConfigPath, formatting.Options{
			Format: format,
			Color:  !routesNoColor,
		})
	},
}

func listRoutes(w io.Writer, configPath string, opts formatting.Options) error {
	cfg := app.NewConfig(false, configPath, GetVersion())
	cfg.Silent = true

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	routes, err := application.Routes()
	if err != nil {
		return fmt.Errorf("failed to compile routes: %w", err)
	}
	return formatting.NewFormatter(opts).FormatRoutes(w, formatting.Rows(routes))
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVar(&routesConfigPath, "config", "", "Path to the YAML configuration file")
	routesCmd.Flags().StringVarP(&routesOutput, "output", "o", "table", "Output format (table, json, yaml)")
	routesCmd.Flags().BoolVar(&routesNoColor, "no-color", false, "Disable colored output")
}
