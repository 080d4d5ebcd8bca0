package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"simbridge/internal/auth"
	"simbridge/internal/config"
	"simbridge/internal/mcpserver"
	"simbridge/internal/simulation"
	"simbridge/pkg/logging"

	"github.com/spf13/cobra"
)

var stdioDebug bool
var stdioConfigPath string

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdio with a pre-provisioned token",
	Long: `Serves the MCP protocol over stdin/stdout for direct AI-assistant
integration.

There is no login flow on this transport: the session token is read once
from MCP_AUTH_TOKEN at startup and resolves the identity for the lifetime
of the process. Obtain a token from a running 'simbridge serve' instance
via its /auth/login endpoint.

This mode is appropriate only for single-tenant, single-session
deployments such as a local assistant configuration.`,
	Args: cobra.NoArgs,
	RunE: runStdio,
}

func runStdio(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if stdioDebug {
		level = logging.LevelDebug
	}
	// stdout carries the protocol stream; all logging goes to stderr.
	logging.Init(level, os.Stderr)

	cfg, err := config.Load(stdioConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Configuration failed")
		return err
	}

	store, err := simulation.NewStore(cfg.StorageDir)
	if err != nil {
		logging.Error("Bootstrap", err, "Storage initialization failed")
		return err
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, auth.DefaultTokenValidity, cfg)

	var identity *auth.Identity
	if envToken := os.Getenv("MCP_AUTH_TOKEN"); envToken != "" {
		identity = tokens.Authenticate(envToken)
		if identity == nil {
			logging.Warn("Bootstrap", "MCP_AUTH_TOKEN is invalid or expired; only public tools will be available")
		} else {
			logging.Info("Bootstrap", "Authenticated as %s (privileged: %t)", identity.Username, identity.IsPrivileged)
		}
	} else {
		logging.Info("Bootstrap", "MCP_AUTH_TOKEN not set; only public tools will be available")
	}

	mcp := mcpserver.New(cfg, store, nil)

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return mcp.ServeStdio(ctx, identity)
}

func init() {
	rootCmd.AddCommand(stdioCmd)

	stdioCmd.Flags().BoolVar(&stdioDebug, "debug", false, "Enable debug logging")
	stdioCmd.Flags().StringVar(&stdioConfigPath, "config-path", "", "Directory containing an optional config.yaml overlay")
}
