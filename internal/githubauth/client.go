package githubauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"simbridge/internal/config"
	"simbridge/pkg/logging"

	"golang.org/x/oauth2"
	oauth2github "golang.org/x/oauth2/github"
)

// DefaultHTTPTimeout is the default timeout for requests to the provider.
const DefaultHTTPTimeout = 30 * time.Second

// userAgent identifies this service to the GitHub API, which rejects
// requests without a User-Agent header.
const userAgent = "simbridge/1.0"

// Profile is the subset of the GitHub user profile the service consumes.
type Profile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Client drives the GitHub authorization-code grant: code to provider token,
// then provider token to user profile. The two steps are separate trust
// boundaries and must not be collapsed: the client secret is used only in
// the first, the bearer token only in the second.
//
// Thread-safe: all state is immutable after construction.
type Client struct {
	oauthCfg   *oauth2.Config
	userURL    string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client, used by tests to point at a stub
// provider.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the provider endpoints. Tests use this to target
// an httptest server.
func WithEndpoints(authURL, tokenURL, userURL string) ClientOption {
	return func(c *Client) {
		c.oauthCfg.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
		c.userURL = userURL
	}
}

// NewClient builds a GitHub OAuth client from the service configuration.
func NewClient(cfg *config.Config, opts ...ClientOption) *Client {
	c := &Client{
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Endpoint:     oauth2github.Endpoint,
			RedirectURL:  cfg.CallbackURL(),
			Scopes:       []string{config.OAuthScopes},
		},
		userURL:    config.GitHubUserURL,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExchangeCode exchanges an authorization code for a provider access token.
// Any provider rejection or transport failure yields an error; the caller
// must treat it as a hard authentication failure and restart the flow.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauthCfg.Exchange(ctx, code)
	if err != nil {
		logging.Warn("OAuth", "Token exchange failed: %v", err)
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	if token.AccessToken == "" {
		logging.Warn("OAuth", "Token exchange returned empty access token")
		return "", fmt.Errorf("provider returned no access token")
	}
	return token.AccessToken, nil
}

// FetchProfile retrieves the user profile for a provider access token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building profile request: %w", err)
	}
	req.Header.Set("Authorization", "token "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Warn("OAuth", "Profile request failed: %v", err)
		return nil, fmt.Errorf("fetching user profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		logging.Warn("OAuth", "Profile request returned status %d", resp.StatusCode)
		return nil, fmt.Errorf("profile endpoint returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding user profile: %w", err)
	}
	return &profile, nil
}

// AuthenticateUser composes both steps of the authorization-code grant. If
// the code exchange fails, the profile endpoint is never contacted.
func (c *Client) AuthenticateUser(ctx context.Context, code string) (*Profile, error) {
	accessToken, err := c.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return c.FetchProfile(ctx, accessToken)
}
