package saml

// State is the per-session data the provider owns while a login or logout
// cycle is in flight. It is persisted by the session state store.
//
// AccessToken and RefreshToken describe an established session. RequestID and
// NextURL are only set while a handshake started by us is outstanding.
type State struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	NextURL      string `json:"nextURL,omitempty"`
}

// TokenPair is an access token together with the refresh token that mints its successor.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IsEmpty reports whether s is nil or carries no data at all.
func (s *State) IsEmpty() bool {
	return s == nil || *s == State{}
}

// HasHandshake reports whether both correlation fields are set.
func (s *State) HasHandshake() bool {
	return s != nil && s.RequestID != "" && s.NextURL != ""
}

// Tokens returns the session's token pair.
func (s *State) Tokens() TokenPair {
	if s == nil {
		return TokenPair{}
	}
	return TokenPair{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

func stateFromTokens(p TokenPair) *State {
	return &State{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

func handshakeState(requestID, nextURL string) *State {
	return &State{RequestID: requestID, NextURL: nextURL}
}
