package cmd

import (
	"errors"
	"os"

	"simbridge/internal/config"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeConfig indicates the service refused to start because a
	// mandatory setting is missing.
	ExitCodeConfig = 2
)

// rootCmd represents the base command for the simbridge application.
var rootCmd = &cobra.Command{
	Use:   "simbridge",
	Short: "Authenticated MCP bridge to the AnyLogic simulation cloud",
	Long: `simbridge exposes the AnyLogic Cloud API (model listing, simulation
execution, results retrieval) as MCP tools, resources, and prompts,
gated by GitHub OAuth with three access tiers.

Run 'simbridge serve' for the HTTP transport with the OAuth login flow,
or 'simbridge stdio' for single-user stdio transport with a
pre-provisioned token.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main to
// inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "simbridge version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to semantic exit codes for scripting.
func getExitCode(err error) int {
	var configErr *config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeConfig
	}
	return ExitCodeError
}
