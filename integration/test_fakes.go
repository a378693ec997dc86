package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	fakeSecurityPort = "19200"
	fakeUpstreamPort = "15601"
	fakeIdPURL       = "http://idp.test"

	internalUsername = "kibana_system"
	// reserved characters catch clients that escape basic credentials
	internalPassword = "test:internal/p@ss%"
)

// fakeSession is one token pair minted by the fake security API
type fakeSession struct {
	username string
	expired  bool
}

// FakeSecurityAPI mimics the backing store's SAML and token endpoints
type FakeSecurityAPI struct {
	server *http.Server

	mu            sync.Mutex
	nextID        int
	requests      map[string]bool         // outstanding SAML request ids
	accessTokens  map[string]*fakeSession // access token -> session
	refreshTokens map[string]string       // refresh token -> username
	logouts       []string
}

// NewFakeSecurityAPI creates a new fake security API listening on port
func NewFakeSecurityAPI(port string) *FakeSecurityAPI {
	f := &FakeSecurityAPI{
		requests:      make(map[string]bool),
		accessTokens:  make(map[string]*fakeSession),
		refreshTokens: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /_security/saml/prepare", f.internal(f.handlePrepare))
	mux.HandleFunc("POST /_security/saml/authenticate", f.internal(f.handleAuthenticate))
	mux.HandleFunc("POST /_security/saml/logout", f.internal(f.handleLogout))
	mux.HandleFunc("POST /_security/saml/invalidate", f.internal(f.handleInvalidate))
	mux.HandleFunc("POST /_security/oauth2/token", f.internal(f.handleRefresh))
	mux.HandleFunc("DELETE /_security/oauth2/token", f.internal(f.handleInvalidateToken))
	mux.HandleFunc("GET /_security/_authenticate", f.handleWhoAmI)

	f.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	return f
}

// Start starts the fake security API
func (f *FakeSecurityAPI) Start() error {
	go func() {
		if err := f.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	for range 20 {
		resp, err := http.Get("http://localhost:" + fakeSecurityPort + "/_security/_authenticate")
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("fake security API did not start")
}

// Stop stops the fake security API
func (f *FakeSecurityAPI) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}

// ExpireAccessTokens marks every issued access token as expired
func (f *FakeSecurityAPI) ExpireAccessTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.accessTokens {
		s.expired = true
	}
}

// RevokeRefreshTokens drops every refresh token
func (f *FakeSecurityAPI) RevokeRefreshTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.refreshTokens)
}

// Logouts returns the users logged out through the SAML logout endpoint
func (f *FakeSecurityAPI) Logouts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.logouts)
}

func (f *FakeSecurityAPI) internal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != internalUsername || pass != internalPassword {
			writeFakeError(w, http.StatusUnauthorized, "security_exception", "invalid internal credentials")
			return
		}
		next(w, r)
	}
}

// mint issues a new token pair for username. Callers hold f.mu.
func (f *FakeSecurityAPI) mint(username string) map[string]any {
	f.nextID++
	at := fmt.Sprintf("at-%d", f.nextID)
	rt := fmt.Sprintf("rt-%d", f.nextID)
	f.accessTokens[at] = &fakeSession{username: username}
	f.refreshTokens[rt] = username
	return map[string]any{
		"access_token":  at,
		"refresh_token": rt,
		"token_type":    "Bearer",
		"expires_in":    1200,
		"username":      username,
	}
}

func (f *FakeSecurityAPI) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Realm string `json:"realm"`
		ACS   string `json:"acs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || (body.Realm == "") == (body.ACS == "") {
		writeFakeError(w, http.StatusBadRequest, "illegal_argument_exception", "exactly one of realm or acs is required")
		return
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("_req%d", f.nextID)
	f.requests[id] = true
	f.mu.Unlock()

	writeFakeJSON(w, map[string]any{
		"id":       id,
		"realm":    "saml1",
		"redirect": fakeIdPURL + "/sso?SAMLRequest=" + id,
	})
}

// handleAuthenticate accepts assertions of the form "assertion:<user>[:<request id>]"
func (f *FakeSecurityAPI) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs     []string `json:"ids"`
		Content string   `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeError(w, http.StatusBadRequest, "parse_exception", err.Error())
		return
	}

	parts := strings.Split(body.Content, ":")
	if len(parts) < 2 || parts[0] != "assertion" {
		writeFakeError(w, http.StatusUnauthorized, "security_exception", "invalid SAML assertion")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(parts) == 3 {
		if !slices.Contains(body.IDs, parts[2]) || !f.requests[parts[2]] {
			writeFakeError(w, http.StatusUnauthorized, "security_exception", "SAML response is not in reply to an outstanding request")
			return
		}
		delete(f.requests, parts[2])
	}

	writeFakeJSON(w, f.mint(parts[1]))
}

func (f *FakeSecurityAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/json" {
		writeFakeError(w, http.StatusNotAcceptable, "media_type_header_exception", "only application/json is supported")
		return
	}
	var grant struct {
		GrantType    string `json:"grant_type"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&grant); err != nil || grant.GrantType != "refresh_token" {
		writeFakeJSONStatus(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	rt := grant.RefreshToken
	username, ok := f.refreshTokens[rt]
	if !ok {
		writeFakeJSONStatus(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "token has already been refreshed",
		})
		return
	}
	delete(f.refreshTokens, rt)
	writeFakeJSON(w, f.mint(username))
}

func (f *FakeSecurityAPI) handleInvalidateToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeError(w, http.StatusBadRequest, "parse_exception", err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	if _, ok := f.accessTokens[body.Token]; ok {
		delete(f.accessTokens, body.Token)
		count++
	}
	if _, ok := f.refreshTokens[body.RefreshToken]; ok {
		delete(f.refreshTokens, body.RefreshToken)
		count++
	}
	if count == 0 {
		writeFakeError(w, http.StatusNotFound, "resource_not_found_exception", "token not found")
		return
	}
	writeFakeJSON(w, map[string]any{"invalidated_tokens": count, "previously_invalidated_tokens": 0})
}

func (f *FakeSecurityAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeError(w, http.StatusBadRequest, "parse_exception", err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.accessTokens[body.Token]
	if !ok {
		writeFakeError(w, http.StatusUnauthorized, "security_exception", "token is not valid")
		return
	}
	delete(f.accessTokens, body.Token)
	delete(f.refreshTokens, body.RefreshToken)
	f.logouts = append(f.logouts, session.username)

	writeFakeJSON(w, map[string]any{"redirect": fakeIdPURL + "/slo?SAMLRequest=logout"})
}

func (f *FakeSecurityAPI) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QueryString string `json:"queryString"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !strings.Contains(body.QueryString, "SAMLRequest=") {
		writeFakeError(w, http.StatusBadRequest, "illegal_argument_exception", "queryString must carry a SAMLRequest")
		return
	}
	writeFakeJSON(w, map[string]any{"invalidated": 1, "redirect": fakeIdPURL + "/slo?SAMLResponse=done"})
}

func (f *FakeSecurityAPI) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	session, found := f.accessTokens[token]
	f.mu.Unlock()

	if !ok || !found || session.expired {
		w.Header().Set("WWW-Authenticate", `Bearer realm="security"`)
		writeFakeError(w, http.StatusUnauthorized, "security_exception", "token expired")
		return
	}

	writeFakeJSON(w, map[string]any{
		"username": session.username,
		"roles":    []string{"viewer"},
		"enabled":  true,
		"authentication_realm": map[string]string{
			"name": "saml1",
			"type": "saml",
		},
	})
}

func writeFakeJSON(w http.ResponseWriter, body any) {
	writeFakeJSONStatus(w, http.StatusOK, body)
}

func writeFakeJSONStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFakeError(w http.ResponseWriter, status int, errType, reason string) {
	writeFakeJSONStatus(w, status, map[string]any{
		"error":  map[string]string{"type": errType, "reason": reason},
		"status": status,
	})
}

// FakeUpstream records the requests forwarded by saml-front
type FakeUpstream struct {
	server *http.Server
}

// NewFakeUpstream creates an upstream application that echoes the caller's identity
func NewFakeUpstream(port string) *FakeUpstream {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, hasState := r.Header["Cookie"]
		writeFakeJSON(w, map[string]any{
			"path":          r.URL.Path,
			"authorization": r.Header.Get("Authorization"),
			"cookie":        hasState,
		})
	})
	return &FakeUpstream{server: &http.Server{Addr: ":" + port, Handler: mux}}
}

// Start starts the fake upstream
func (u *FakeUpstream) Start() error {
	go func() {
		if err := u.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	return nil
}

// Stop stops the fake upstream
func (u *FakeUpstream) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return u.server.Shutdown(ctx)
}
