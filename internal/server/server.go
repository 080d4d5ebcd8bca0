package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"simbridge/internal/auth"
	"simbridge/internal/config"
	"simbridge/internal/githubauth"
	"simbridge/internal/mcpserver"
	"simbridge/pkg/logging"

	mcpserverlib "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP transport: it hosts the OAuth login/callback endpoints
// and the MCP streamable-HTTP endpoint, and resolves the request identity
// before dispatch.
type Server struct {
	cfg    *config.Config
	tokens *auth.TokenManager
	oauth  *githubauth.Client
	states *githubauth.StateStore
	mcp    *mcpserver.Server

	httpServer *http.Server
}

// New assembles the HTTP server and its routes.
func New(cfg *config.Config, tokens *auth.TokenManager, oauthClient *githubauth.Client, mcp *mcpserver.Server) *Server {
	s := &Server{
		cfg:    cfg,
		tokens: tokens,
		oauth:  oauthClient,
		states: githubauth.NewStateStore(),
		mcp:    mcp,
	}

	streamable := mcpserverlib.NewStreamableHTTPServer(
		mcp.MCPServer(),
		mcpserverlib.WithHTTPContextFunc(s.resolveIdentity),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/callback", s.handleCallback)
	mux.Handle("/mcp", streamable)
	mux.Handle("/mcp/", streamable)

	s.httpServer = &http.Server{
		Addr:    cfg.BindAddr(),
		Handler: mux,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.states.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Server", "Listening on %s (OAuth login at %s)", s.cfg.BindAddr(), s.loginURL())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) loginURL() string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL + "/auth/login"
	}
	return "http://" + s.cfg.BindAddr() + "/auth/login"
}

// resolveIdentity populates the request context with the identity asserted
// by the bearer credential, if any. Every request starts from "no identity";
// nothing carries over from the previous request on the same connection.
func (s *Server) resolveIdentity(ctx context.Context, r *http.Request) context.Context {
	credential := r.Header.Get("Authorization")
	if credential == "" {
		return auth.WithIdentity(ctx, nil)
	}
	return auth.WithIdentity(ctx, s.tokens.Authenticate(credential))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "simbridge MCP server",
		"version":       mcpserver.ServerVersion,
		"auth_required": true,
		"login_url":     "/auth/login",
		"health_check":  "/health",
		"mcp_endpoint":  "/mcp",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   mcpserver.ServerVersion,
	})
}

// handleLogin starts the OAuth flow: generate and store a fresh state, then
// redirect the browser to the provider's authorize endpoint.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := s.states.Generate()
	if err != nil {
		logging.Error("OAuth", err, "Failed to generate login state")
		renderErrorPage(w, "Could not start the login flow. Please try again.")
		return
	}

	http.Redirect(w, r, s.cfg.AuthorizationURL(state), http.StatusFound)
}

// handleCallback completes the OAuth flow: validate the state we issued,
// exchange the code, and hand the caller a session token.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		logging.Warn("OAuth", "Callback received provider error: %s - %s", errParam, query.Get("error_description"))
		renderErrorPage(w, "Authentication failed. Please try again.")
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		logging.Warn("OAuth", "Callback missing code or state parameter")
		renderErrorPage(w, "Invalid callback: missing required parameters.")
		return
	}

	if !s.states.Consume(state) {
		renderErrorPage(w, "Authentication session expired or invalid. Please try again.")
		return
	}

	profile, err := s.oauth.AuthenticateUser(r.Context(), code)
	if err != nil {
		// Details are already logged by the exchange client; the user gets
		// a generic message.
		renderErrorPage(w, "Failed to complete authentication. Please try again.")
		return
	}

	token, err := s.tokens.CreateToken(profile.ID, profile.Login, profile.Name, profile.Email, profile.AvatarURL)
	if err != nil {
		logging.Error("OAuth", err, "Failed to issue session token for %s", profile.Login)
		renderErrorPage(w, "Failed to complete authentication. Please try again.")
		return
	}

	logging.Audit(logging.AuditEvent{
		Action:  "login",
		Outcome: "success",
		User:    profile.Login,
	})
	renderTokenPage(w, profile.Login, token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Server", "Failed to encode response: %v", err)
	}
}
