// Package tokens refreshes and invalidates backing store access/refresh token pairs.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/saml-front/internal/backend"
	"github.com/dgellow/saml-front/internal/log"
	"github.com/dgellow/saml-front/internal/saml"
	"golang.org/x/oauth2"
)

// DefaultTokenPath is the backing store token endpoint
const DefaultTokenPath = "/_security/oauth2/token"

// Service implements saml.TokenService against the backing store.
type Service struct {
	client     *backend.Client
	oauth      oauth2.Config
	httpClient *http.Client
}

var _ saml.TokenService = (*Service)(nil)

// NewService creates a Service. tokenPath defaults to DefaultTokenPath.
func NewService(client *backend.Client, tokenPath string) *Service {
	if tokenPath == "" {
		tokenPath = DefaultTokenPath
	}
	username, password := client.Credentials()
	base := client.HTTPClient()
	return &Service{
		client: client,
		httpClient: &http.Client{
			Timeout: base.Timeout,
			Transport: &jsonGrantTransport{
				base:     base.Transport,
				username: username,
				password: password,
			},
		},
		oauth: oauth2.Config{
			ClientID:     username,
			ClientSecret: password,
			Endpoint: oauth2.Endpoint{
				TokenURL:  client.URL() + tokenPath,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
	}
}

// Refresh exchanges refreshToken for a new pair. It returns nil, nil when the
// refresh token is no longer usable, which means both tokens have expired.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*saml.TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			if isExpiredGrant(re) {
				log.LogDebugWithFields("tokens", "Refresh token is expired or already used", map[string]any{
					"error_code": re.ErrorCode,
				})
				return nil, nil
			}
			return nil, retrieveError(re)
		}
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}

	return &saml.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// Invalidate revokes both tokens of pair. Tokens that are already gone are ignored.
func (s *Service) Invalidate(ctx context.Context, pair saml.TokenPair) error {
	if pair.AccessToken != "" {
		if err := s.invalidate(ctx, backend.InvalidateTokenRequest{Token: pair.AccessToken}); err != nil {
			return fmt.Errorf("failed to invalidate access token: %w", err)
		}
	}
	if pair.RefreshToken != "" {
		if err := s.invalidate(ctx, backend.InvalidateTokenRequest{RefreshToken: pair.RefreshToken}); err != nil {
			return fmt.Errorf("failed to invalidate refresh token: %w", err)
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, req backend.InvalidateTokenRequest) error {
	resp, err := s.client.InvalidateToken(ctx, req)
	if err != nil {
		if backend.IsStatus(err, http.StatusNotFound) {
			return nil
		}
		return err
	}
	log.LogTraceWithFields("tokens", "Token invalidated", map[string]any{
		"invalidated":            resp.InvalidatedTokens,
		"previously_invalidated": resp.PreviouslyInvalidatedTokens,
	})
	return nil
}

// IsAccessTokenExpiredError reports whether err is the backing store
// rejecting an access token with 401.
func (s *Service) IsAccessTokenExpiredError(err error) bool {
	return backend.IsStatus(err, http.StatusUnauthorized)
}

func isExpiredGrant(re *oauth2.RetrieveError) bool {
	if re.ErrorCode == "invalid_grant" {
		return true
	}
	return re.Response != nil && re.Response.StatusCode == http.StatusBadRequest
}

// retrieveError keeps the token endpoint status visible to saml.StatusCode.
func retrieveError(re *oauth2.RetrieveError) error {
	e := &backend.Error{Status: http.StatusInternalServerError, Type: re.ErrorCode, Reason: re.ErrorDescription}
	if re.Response != nil {
		e.Status = re.Response.StatusCode
		e.Header = re.Response.Header.Clone()
	}
	if e.Reason == "" {
		e.Reason = string(re.Body)
	}
	return e
}
