package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"simbridge/internal/auth"
	"simbridge/internal/config"
	"simbridge/internal/githubauth"
	"simbridge/internal/mcpserver"
	"simbridge/internal/server"
	"simbridge/internal/simulation"
	"simbridge/pkg/logging"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath points at a directory containing an optional config.yaml
// overlay. Environment variables always win over file values.
var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP transport with the OAuth login flow",
	Long: `Starts the MCP server over streamable HTTP together with the GitHub
OAuth endpoints:

  GET /auth/login     redirects to GitHub with a fresh anti-forgery state
  GET /auth/callback  exchanges the authorization code and issues a token
  GET /health         liveness probe
  POST /mcp           the MCP endpoint; send the issued token as
                      "Authorization: Bearer <token>"

The service refuses to start unless GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET,
and JWT_SECRET are set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stdout)

	cfg, err := config.Load(serveConfigPath)
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
	oauthClient := githubauth.NewClient(cfg)
	mcp := mcpserver.New(cfg, store, nil)

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, tokens, oauthClient, mcp).Run(ctx)
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Directory containing an optional config.yaml overlay")
}
