package saml

import (
	"context"
	"net/http"

	"github.com/dgellow/saml-front/internal/log"
)

// LoginAttempt carries the assertion posted by the identity provider.
type LoginAttempt struct {
	SAMLResponse string
}

// Login exchanges a SAML response for a token pair. When the request already
// belongs to an authenticated session, the existing session is replaced and
// the previous tokens are invalidated.
func (p *Provider) Login(ctx context.Context, r *http.Request, attempt LoginAttempt, state *State) AuthenticationResult {
	if attempt.SAMLResponse == "" {
		log.LogDebugWithFields("saml", "Login attempt carries no SAML response", nil)
		return notHandled()
	}
	if state.IsEmpty() {
		state = nil
	}

	var existing AuthenticationResult = NotHandled{}
	if state != nil {
		existing = p.authenticateViaState(ctx, state)
	}

	switch res := existing.(type) {
	case NotHandled:
		return p.loginWithSAMLResponse(ctx, r, attempt.SAMLResponse, state)
	case Succeeded:
		return p.loginWithNewSAMLResponse(ctx, r, attempt.SAMLResponse, state, res.User)
	default:
		log.LogDebugWithFields("saml", "Failed to authenticate request via state before login", map[string]any{
			"result": Kind(res),
		})
		return res
	}
}

// loginWithSAMLResponse exchanges the assertion with the backing store. A
// missing state or request id means the login was started by the identity
// provider.
func (p *Provider) loginWithSAMLResponse(ctx context.Context, r *http.Request, samlResponse string, state *State) AuthenticationResult {
	if state != nil && !state.HasHandshake() {
		log.LogDebugWithFields("saml", "SAML response state does not have corresponding request id or redirect URL", nil)
		return failed(badRequest("SAML response state does not have corresponding request id or redirect URL."))
	}

	ids := []string{}
	if state != nil && state.RequestID != "" {
		ids = append(ids, state.RequestID)
	} else {
		log.LogDebugWithFields("saml", "Login has been initiated by Identity Provider", nil)
	}

	var resp authenticateResponse
	if err := p.backend.CallAsInternalUser(ctx, OpSAMLAuthenticate, authenticateRequest{
		IDs:     ids,
		Content: samlResponse,
	}, &resp); err != nil {
		log.LogDebugWithFields("saml", "Failed to log in with SAML response", map[string]any{
			"error": err.Error(),
		})
		return failed(err)
	}

	next := p.path(r, "/")
	if state != nil && state.NextURL != "" {
		next = state.NextURL
	}

	log.LogDebugWithFields("saml", "Login has been performed with SAML response", nil)
	return Redirected{
		URL: next,
		State: stateFromTokens(TokenPair{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
		}),
	}
}

// loginWithNewSAMLResponse handles an assertion arriving for a session that is
// already authenticated. The new session always wins; the user is told when
// it belongs to a different identity.
func (p *Provider) loginWithNewSAMLResponse(ctx context.Context, r *http.Request, samlResponse string, existingState *State, existingUser *User) AuthenticationResult {
	res := p.loginWithSAMLResponse(ctx, r, samlResponse, nil)
	redirected, ok := res.(Redirected)
	if !ok {
		return res
	}
	if redirected.State == nil || redirected.State.AccessToken == "" {
		return failed(internalError("login did not produce a session state"))
	}

	newRes := p.authenticateViaState(ctx, redirected.State)
	if f, ok := newRes.(Failed); ok {
		return f
	}
	newSession, ok := newRes.(Succeeded)
	if !ok || newSession.User == nil {
		return failed(internalError("could not retrieve user information using tokens produced for the SAML payload"))
	}

	log.LogDebugWithFields("saml", "Login initiated by Identity Provider is for a user with an active session", nil)

	if err := p.tokens.Invalidate(ctx, existingState.Tokens()); err != nil {
		log.LogDebugWithFields("saml", "Failed to invalidate existing session tokens", map[string]any{
			"error": err.Error(),
		})
		return failed(err)
	}

	if !newSession.User.SameIdentity(existingUser) {
		log.LogDebugWithFields("saml", "Login initiated by Identity Provider is for a different user than currently authenticated", map[string]any{
			"user": newSession.User.Username,
		})
		return Redirected{
			URL:   p.path(r, OverwrittenSessionPath),
			State: redirected.State,
		}
	}

	log.LogDebugWithFields("saml", "Login initiated by Identity Provider is for currently authenticated user", nil)
	return redirected
}
