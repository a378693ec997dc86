// Package backend is the HTTP client for the backing store's security API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/saml-front/internal/log"
	"github.com/dgellow/saml-front/internal/saml"
)

// DefaultTimeout applies when Config.Timeout is zero
const DefaultTimeout = 30 * time.Second

type endpoint struct {
	method string
	path   string
}

// Security API endpoints by operation name.
var endpoints = map[string]endpoint{
	saml.OpSAMLPrepare:      {http.MethodPost, "/_security/saml/prepare"},
	saml.OpSAMLAuthenticate: {http.MethodPost, "/_security/saml/authenticate"},
	saml.OpSAMLLogout:       {http.MethodPost, "/_security/saml/logout"},
	saml.OpSAMLInvalidate:   {http.MethodPost, "/_security/saml/invalidate"},
}

const (
	authenticatePath    = "/_security/_authenticate"
	invalidateTokenPath = "/_security/oauth2/token"
)

// Config configures a Client.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration

	// HTTPClient overrides the default client. Mostly useful in tests.
	HTTPClient *http.Client
}

// Client calls the backing store security API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

var _ saml.Backend = (*Client)(nil)

// NewClient creates a Client for cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("backend username is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
	}, nil
}

// URL returns the configured base URL.
func (c *Client) URL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Credentials returns the internal user credentials.
func (c *Client) Credentials() (username, password string) {
	return c.username, c.password
}

// CallAsInternalUser performs op with the internal user's credentials and
// decodes the JSON response into out.
func (c *Client) CallAsInternalUser(ctx context.Context, op string, body any, out any) error {
	ep, ok := endpoints[op]
	if !ok {
		return fmt.Errorf("unknown backend operation %q", op)
	}
	return c.do(ctx, ep.method, ep.path, body, out, func(req *http.Request) {
		req.SetBasicAuth(c.username, c.password)
	})
}

// AuthenticateUser resolves the user behind an Authorization header value.
func (c *Client) AuthenticateUser(ctx context.Context, authorization string) (*saml.User, error) {
	var user saml.User
	err := c.do(ctx, http.MethodGet, authenticatePath, nil, &user, func(req *http.Request) {
		req.Header.Set("Authorization", authorization)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// InvalidateTokenRequest selects the tokens to invalidate.
type InvalidateTokenRequest struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// InvalidateTokenResponse reports how many tokens were invalidated.
type InvalidateTokenResponse struct {
	InvalidatedTokens           int `json:"invalidated_tokens"`
	PreviouslyInvalidatedTokens int `json:"previously_invalidated_tokens"`
}

// InvalidateToken revokes an access or refresh token as the internal user.
func (c *Client) InvalidateToken(ctx context.Context, body InvalidateTokenRequest) (*InvalidateTokenResponse, error) {
	var resp InvalidateTokenResponse
	err := c.do(ctx, http.MethodDelete, invalidateTokenPath, body, &resp, func(req *http.Request) {
		req.SetBasicAuth(c.username, c.password)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, authorize func(*http.Request)) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.LogTraceWithFields("backend", "Backend request completed", map[string]any{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
