package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rpcexpose/internal/api"
	"rpcexpose/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates an invalid configuration file or composition,
	// such as a duplicate route.
	ExitCodeConfig = 2
)

// rootCmd represents the base command for the rpcexpose application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rpcexpose",
	Short: "Expose plain Go services as HTTP and MCP endpoints",
	Long: `rpcexpose turns the methods of ordinary Go types into routed endpoints.
Routes, verbs, authorization, filters and response headers are declared
through a fluent exposure configuration and compiled once into an
endpoint table that both the HTTP and the MCP transport dispatch through.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "rpcexpose version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		if report := configReport(err); report != "" {
			fmt.Fprint(os.Stderr, report)
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var single config.ConfigurationError
	var collection *config.ConfigurationErrorCollection
	if errors.As(err, &single) || errors.As(err, &collection) || api.IsConfigurationError(err) {
		return ExitCodeConfig
	}
	return ExitCodeError
}

// configReport returns the detailed report of a configuration file error,
// or an empty string for any other error.
func configReport(err error) string {
	var collection *config.ConfigurationErrorCollection
	if errors.As(err, &collection) {
		return collection.GetDetailedReport()
	}
	var single config.ConfigurationError
	if errors.As(err, &single) {
		return single.DetailedError()
	}
	return ""
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
