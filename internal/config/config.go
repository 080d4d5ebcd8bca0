package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"simbridge/pkg/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// GitHub OAuth endpoints. These are provider constants, not configuration.
const (
	GitHubAuthorizeURL = "https://github.com/login/oauth/authorize"
	GitHubTokenURL     = "https://github.com/login/oauth/access_token"
	GitHubUserURL      = "https://api.github.com/user"
)

// OAuthScopes is the scope requested during the GitHub authorization flow.
const OAuthScopes = "read:user"

// Defaults for network binding.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8000
)

// ConfigurationError indicates a mandatory setting is missing or malformed.
// The process must not start when one is returned.
type ConfigurationError struct {
	Variable string
	Reason   string
}

// Error implements the error interface.
func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", ce.Variable, ce.Reason)
}

// fileConfig is the optional config.yaml overlay. Environment variables
// always take precedence over file values.
type fileConfig struct {
	Host            string   `yaml:"host,omitempty"`
	Port            int      `yaml:"port,omitempty"`
	PublicURL       string   `yaml:"publicURL,omitempty"`
	PrivilegedUsers []string `yaml:"privilegedUsers,omitempty"`
	StorageDir      string   `yaml:"storageDir,omitempty"`
}

// Config holds the resolved service configuration.
//
// OAuth client credentials and the token signing secret are mandatory; the
// rest has defaults matching a local deployment.
type Config struct {
	GitHubClientID     string
	GitHubClientSecret string
	JWTSecret          string

	Host      string
	Port      int
	PublicURL string

	// StorageDir is the root for simulation metadata and exports.
	StorageDir string

	privilegedUsers map[string]struct{}
}

// Load resolves the configuration from the environment, with an optional
// config.yaml overlay read from configPath (ignored when empty or absent).
// A .env file in the working directory is loaded first if present, matching
// local development workflows.
func Load(configPath string) (*Config, error) {
	// Missing .env is the normal production case.
	if err := godotenv.Load(); err == nil {
		logging.Debug("Config", "Loaded environment from .env file")
	}

	fc := fileConfig{}
	if configPath != "" {
		filePath := filepath.Join(configPath, configFileName)
		data, err := os.ReadFile(filePath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logging.Info("Config", "No %s at %s, using environment only", configFileName, configPath)
		case err != nil:
			return nil, fmt.Errorf("reading %s: %w", filePath, err)
		default:
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", filePath, err)
			}
			logging.Info("Config", "Loaded configuration overlay from %s", filePath)
		}
	}

	cfg := &Config{
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		Host:               firstNonEmpty(os.Getenv("MCP_SERVER_HOST"), fc.Host, DefaultHost),
		PublicURL:          firstNonEmpty(os.Getenv("PUBLIC_URL"), fc.PublicURL),
		StorageDir:         firstNonEmpty(os.Getenv("SIMBRIDGE_STORAGE_DIR"), fc.StorageDir, "simulations"),
	}

	if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
		return nil, &ConfigurationError{
			Variable: "GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET",
			Reason:   "GitHub OAuth credentials are required",
		}
	}
	if cfg.JWTSecret == "" {
		return nil, &ConfigurationError{
			Variable: "JWT_SECRET",
			Reason:   "token signing secret is required",
		}
	}

	cfg.Port = fc.Port
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if portStr := os.Getenv("MCP_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, &ConfigurationError{
				Variable: "MCP_SERVER_PORT",
				Reason:   fmt.Sprintf("invalid port %q", portStr),
			}
		}
		cfg.Port = port
	}

	cfg.privilegedUsers = parsePrivilegedUsers(os.Getenv("PRIVILEGED_USERS"))
	if len(cfg.privilegedUsers) == 0 {
		for _, u := range fc.PrivilegedUsers {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if cfg.privilegedUsers == nil {
				cfg.privilegedUsers = make(map[string]struct{})
			}
			cfg.privilegedUsers[u] = struct{}{}
		}
	}

	logging.Info("Config", "Configuration resolved: bind=%s:%d privileged_users=%d",
		cfg.Host, cfg.Port, len(cfg.privilegedUsers))
	return cfg, nil
}

// parsePrivilegedUsers splits a comma-separated handle list, trimming
// whitespace and dropping empty entries. Matching is exact and
// case-sensitive.
func parsePrivilegedUsers(raw string) map[string]struct{} {
	users := make(map[string]struct{})
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		users[entry] = struct{}{}
	}
	return users
}

// IsPrivileged reports whether the handle is in the configured allow-list.
func (c *Config) IsPrivileged(username string) bool {
	_, ok := c.privilegedUsers[username]
	return ok
}

// PrivilegedUserCount returns the size of the configured allow-list.
func (c *Config) PrivilegedUserCount() int {
	return len(c.privilegedUsers)
}

// CallbackURL derives the OAuth callback endpoint. It must exactly match the
// redirect URI registered with the provider, so PUBLIC_URL takes precedence
// over the bind address.
func (c *Config) CallbackURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/") + "/auth/callback"
	}
	return fmt.Sprintf("http://%s:%d/auth/callback", c.Host, c.Port)
}

// BindAddr returns the host:port pair the HTTP server listens on.
func (c *Config) BindAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthorizationURL assembles the GitHub authorize endpoint with the client
// id, callback URL, requested scope, and the anti-forgery state value.
func (c *Config) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.GitHubClientID)
	params.Set("redirect_uri", c.CallbackURL())
	params.Set("scope", OAuthScopes)
	params.Set("state", state)
	return GitHubAuthorizeURL + "?" + params.Encode()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
