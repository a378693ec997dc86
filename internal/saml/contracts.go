package saml

import "context"

// Backing store operations invoked with internal credentials.
const (
	OpSAMLPrepare      = "samlPrepare"
	OpSAMLAuthenticate = "samlAuthenticate"
	OpSAMLLogout       = "samlLogout"
	OpSAMLInvalidate   = "samlInvalidate"
)

// Backend is the backing store client.
type Backend interface {
	// CallAsInternalUser performs an administrative operation and decodes the
	// JSON response into out.
	CallAsInternalUser(ctx context.Context, op string, body any, out any) error

	// AuthenticateUser resolves the user behind an Authorization header value.
	AuthenticateUser(ctx context.Context, authorization string) (*User, error)
}

// TokenService manages access/refresh token pairs.
type TokenService interface {
	// Refresh mints a new pair. A nil pair with a nil error means both tokens
	// are unrecoverably expired.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	// Invalidate revokes both tokens of a pair.
	Invalidate(ctx context.Context, pair TokenPair) error

	// IsAccessTokenExpiredError reports whether err means the access token expired.
	IsAccessTokenExpiredError(err error) bool
}

type prepareRequest struct {
	Realm string `json:"realm,omitempty"`
	ACS   string `json:"acs,omitempty"`
}

type prepareResponse struct {
	ID       string `json:"id"`
	Redirect string `json:"redirect"`
	Realm    string `json:"realm,omitempty"`
}

type authenticateRequest struct {
	IDs     []string `json:"ids"`
	Content string   `json:"content"`
}

type authenticateResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username,omitempty"`
	Realm        string `json:"realm,omitempty"`
}

type logoutRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type invalidateRequest struct {
	QueryString string `json:"queryString"`
	Realm       string `json:"realm,omitempty"`
	ACS         string `json:"acs,omitempty"`
}

type redirectResponse struct {
	Redirect string `json:"redirect,omitempty"`
}
