package saml

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dgellow/saml-front/internal/log"
)

// Logout runs SAML single logout. Requests carrying SAMLRequest come from the
// identity provider; otherwise the session in state is terminated.
func (p *Provider) Logout(ctx context.Context, r *http.Request, state *State) (res DeauthenticationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogErrorWithFields("saml", "Recovered panic during logout", map[string]any{
				"panic": fmt.Sprint(rec),
			})
			res = LogoutFailed{Err: internalError(fmt.Sprintf("logout panicked: %v", rec))}
		}
	}()

	idpInitiated := r.URL.Query().Get(IdPRequestParam) != ""
	if !idpInitiated && (state == nil || state.AccessToken == "") {
		log.LogDebugWithFields("saml", "There is neither access token nor SAML session to invalidate", nil)
		return LogoutNotHandled{}
	}

	var (
		redirect string
		err      error
	)
	if idpInitiated {
		log.LogDebugWithFields("saml", "Logout has been initiated by the Identity Provider", nil)
		redirect, err = p.performIdPInitiatedSingleLogout(ctx, r)
	} else {
		log.LogDebugWithFields("saml", "Logout has been initiated by the user", nil)
		redirect, err = p.performUserInitiatedSingleLogout(ctx, state.Tokens())
	}
	if err != nil {
		log.LogDebugWithFields("saml", "Failed to deauthenticate user", map[string]any{
			"error": err.Error(),
		})
		return LogoutFailed{Err: err}
	}

	if redirect == "" {
		return LogoutRedirected{URL: p.path(r, LoggedOutPath)}
	}
	return LogoutRedirected{URL: redirect}
}

func (p *Provider) performUserInitiatedSingleLogout(ctx context.Context, pair TokenPair) (string, error) {
	var resp redirectResponse
	if err := p.backend.CallAsInternalUser(ctx, OpSAMLLogout, logoutRequest{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, &resp); err != nil {
		return "", err
	}
	log.LogDebugWithFields("saml", "User session has been successfully invalidated", nil)
	return resp.Redirect, nil
}

func (p *Provider) performIdPInitiatedSingleLogout(ctx context.Context, r *http.Request) (string, error) {
	realm, acs, err := p.realmOrACS(r)
	if err != nil {
		return "", internalError("cannot build assertion consumer service URL: " + err.Error())
	}

	var resp redirectResponse
	if err := p.backend.CallAsInternalUser(ctx, OpSAMLInvalidate, invalidateRequest{
		QueryString: r.URL.RawQuery,
		Realm:       realm,
		ACS:         acs,
	}, &resp); err != nil {
		return "", err
	}
	log.LogDebugWithFields("saml", "User session has been successfully invalidated", nil)
	return resp.Redirect, nil
}
