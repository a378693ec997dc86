package saml

import (
	"context"
	"net/http"
	"strings"

	"github.com/dgellow/saml-front/internal/log"
)

// stage is one step of the authenticate pipeline. It receives the result of
// the previous stage and returns its own result plus whether the pipeline
// must stop here.
type stage struct {
	name string
	run  func(p *Provider, ctx context.Context, r *http.Request, state *State, prev AuthenticationResult) (AuthenticationResult, bool)
}

var authenticatePipeline = []stage{
	{name: "header", run: (*Provider).headerStage},
	{name: "state", run: (*Provider).stateStage},
	{name: "refresh", run: (*Provider).refreshStage},
	{name: "handshake", run: (*Provider).handshakeStage},
}

// Authenticate resolves the request's user by trying, in order, the
// Authorization header, the session state, a token refresh and finally a new
// handshake with the identity provider.
func (p *Provider) Authenticate(ctx context.Context, r *http.Request, state *State) AuthenticationResult {
	var res AuthenticationResult = NotHandled{}
	for _, s := range authenticatePipeline {
		var stop bool
		res, stop = s.run(p, ctx, r, state, res)
		if stop {
			log.LogTraceWithFields("saml", "Authentication pipeline stopped", map[string]any{
				"stage":  s.name,
				"result": Kind(res),
			})
			return res
		}
	}
	return res
}

func (p *Provider) headerStage(ctx context.Context, r *http.Request, _ *State, _ AuthenticationResult) (AuthenticationResult, bool) {
	res, headerNotRecognized := p.authenticateViaHeader(ctx, r)
	if headerNotRecognized {
		return res, true
	}
	return res, !isNotHandled(res)
}

func (p *Provider) stateStage(ctx context.Context, _ *http.Request, state *State, prev AuthenticationResult) (AuthenticationResult, bool) {
	if !isNotHandled(prev) || state.IsEmpty() {
		return prev, false
	}

	res := p.authenticateViaState(ctx, state)
	if f, ok := res.(Failed); ok && p.tokens.IsAccessTokenExpiredError(f.Err) {
		// The refresh stage takes over
		return res, false
	}
	return res, !isNotHandled(res)
}

func (p *Provider) refreshStage(ctx context.Context, r *http.Request, state *State, prev AuthenticationResult) (AuthenticationResult, bool) {
	f, ok := prev.(Failed)
	if !ok {
		return prev, false
	}
	if !p.tokens.IsAccessTokenExpiredError(f.Err) {
		return prev, true
	}

	res := p.authenticateViaRefreshToken(ctx, r, state)
	return res, !isNotHandled(res)
}

func (p *Provider) handshakeStage(ctx context.Context, r *http.Request, _ *State, prev AuthenticationResult) (AuthenticationResult, bool) {
	if !isNotHandled(prev) {
		return prev, true
	}
	return p.authenticateViaHandshake(ctx, r), true
}

// authenticateViaHeader handles "Authorization: Bearer <token>". The second
// return value is true when an Authorization header with another scheme is
// present, in which case no other strategy may run.
func (p *Provider) authenticateViaHeader(ctx context.Context, r *http.Request) (AuthenticationResult, bool) {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		log.LogDebugWithFields("saml", "Authorization header is not presented", nil)
		return notHandled(), false
	}

	scheme, _, _ := strings.Cut(authorization, " ")
	if !strings.EqualFold(scheme, "bearer") {
		log.LogDebugWithFields("saml", "Unsupported authentication schema", map[string]any{
			"schema": scheme,
		})
		return notHandled(), true
	}

	user, err := p.backend.AuthenticateUser(ctx, authorization)
	if err != nil {
		log.LogDebugWithFields("saml", "Failed to authenticate request via header", map[string]any{
			"error": err.Error(),
		})
		return failed(err), false
	}

	log.LogDebugWithFields("saml", "Request has been authenticated via header", nil)
	return Succeeded{User: user}, false
}

// authenticateViaState resolves the user behind the access token stored in state.
func (p *Provider) authenticateViaState(ctx context.Context, state *State) AuthenticationResult {
	if state == nil || state.AccessToken == "" {
		log.LogDebugWithFields("saml", "Access token is not found in state", nil)
		return notHandled()
	}

	authorization := "Bearer " + state.AccessToken
	user, err := p.backend.AuthenticateUser(ctx, authorization)
	if err != nil {
		log.LogDebugWithFields("saml", "Failed to authenticate request via state", map[string]any{
			"error": err.Error(),
		})
		return failed(err)
	}

	log.LogDebugWithFields("saml", "Request has been authenticated via state", map[string]any{
		"user": user.Username,
	})
	return Succeeded{
		User:        user,
		AuthHeaders: http.Header{"Authorization": []string{authorization}},
	}
}

// authenticateViaRefreshToken mints a new token pair after the access token expired.
func (p *Provider) authenticateViaRefreshToken(ctx context.Context, r *http.Request, state *State) AuthenticationResult {
	if state == nil || state.RefreshToken == "" {
		log.LogDebugWithFields("saml", "Refresh token is not found in state", nil)
		return notHandled()
	}

	pair, err := p.tokens.Refresh(ctx, state.RefreshToken)
	if err != nil {
		log.LogDebugWithFields("saml", "Failed to refresh access token", map[string]any{
			"error": err.Error(),
		})
		return failed(err)
	}

	if pair == nil {
		// Both tokens are gone. Interactive clients get a new handshake;
		// others get 400 so they do not trigger a logout flow on 401.
		if p.redirect.CanRedirect(r) {
			log.LogDebugWithFields("saml", "Both access and refresh tokens are expired. Re-initiating SAML handshake", nil)
			return notHandled()
		}
		log.LogDebugWithFields("saml", "Both access and refresh tokens are expired", nil)
		return failed(badRequest("Both access and refresh tokens are expired."))
	}

	log.LogDebugWithFields("saml", "Access token has been successfully refreshed", nil)

	authorization := "Bearer " + pair.AccessToken
	user, err := p.backend.AuthenticateUser(ctx, authorization)
	if err != nil {
		log.LogDebugWithFields("saml", "Failed to authenticate user using newly refreshed access token", map[string]any{
			"error": err.Error(),
		})
		return failed(err)
	}

	return Succeeded{
		User:        user,
		AuthHeaders: http.Header{"Authorization": []string{authorization}},
		State:       stateFromTokens(*pair),
	}
}

// authenticateViaHandshake starts a new SAML handshake for interactive clients.
func (p *Provider) authenticateViaHandshake(ctx context.Context, r *http.Request) AuthenticationResult {
	if !p.redirect.CanRedirect(r) {
		log.LogDebugWithFields("saml", "SAML handshake can not be initiated for AJAX request", map[string]any{
			"path": r.URL.Path,
		})
		return notHandled()
	}

	realm, acs, err := p.realmOrACS(r)
	if err != nil {
		return failed(internalError("cannot build assertion consumer service URL: " + err.Error()))
	}

	var resp prepareResponse
	if err := p.backend.CallAsInternalUser(ctx, OpSAMLPrepare, prepareRequest{Realm: realm, ACS: acs}, &resp); err != nil {
		log.LogDebugWithFields("saml", "Failed to initiate SAML handshake", map[string]any{
			"error": err.Error(),
		})
		return failed(err)
	}

	log.LogDebugWithFields("saml", "Redirecting to Identity Provider with SAML request", map[string]any{
		"request_id": resp.ID,
	})
	return Redirected{
		URL:   resp.Redirect,
		State: handshakeState(resp.ID, r.URL.RequestURI()),
	}
}
