package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgellow/saml-front/internal/authcontext"
	"github.com/dgellow/saml-front/internal/saml"
	"github.com/dgellow/saml-front/internal/storage"
	"github.com/dgellow/saml-front/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type upstreamError struct {
	status int
	header http.Header
}

func (e *upstreamError) Error() string                { return http.StatusText(e.status) }
func (e *upstreamError) StatusCode() int              { return e.status }
func (e *upstreamError) ResponseHeaders() http.Header { return e.header }

func TestAuthMiddleware(t *testing.T) {
	alice := &saml.User{Username: "alice", AuthenticationRealm: saml.Realm{Name: "saml1", Type: "saml"}}

	t.Run("succeeded forwards with user and auth headers", func(t *testing.T) {
		provider := &testutil.MockProvider{}
		states := newStateStore(t)
		store := storage.NewMemoryStorage()

		existing := &saml.State{AccessToken: "at-1", RefreshToken: "rt-1"}
		refreshed := &saml.State{AccessToken: "at-2", RefreshToken: "rt-2"}
		provider.On("Authenticate", mock.Anything, mock.Anything, existing).Return(saml.Succeeded{
			User:        alice,
			AuthHeaders: http.Header{"Authorization": []string{"Bearer at-2"}},
			State:       refreshed,
		})

		var gotUser *saml.User
		var gotAuth string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser, _ = authcontext.GetUser(r.Context())
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		})

		req := withState(t, httptest.NewRequest("GET", "/app/discover", nil), states, existing)
		rr := httptest.NewRecorder()
		NewAuthMiddleware(provider, states, store)(next).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, alice, gotUser)
		assert.Equal(t, "Bearer at-2", gotAuth)
		assert.Equal(t, refreshed, stateFrom(t, rr, states))

		users, err := store.GetAllUsers(req.Context())
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "alice", users[0].Username)
		assert.Equal(t, "saml1", users[0].Realm)
		provider.AssertExpectations(t)
	})

	t.Run("succeeded without state leaves cookie untouched", func(t *testing.T) {
		provider := &testutil.MockProvider{}
		states := newStateStore(t)
		provider.On("Authenticate", mock.Anything, mock.Anything, noState).Return(saml.Succeeded{User: alice})

		req := httptest.NewRequest("GET", "/app/discover", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		rr := httptest.NewRecorder()
		NewAuthMiddleware(provider, states, nil)(okHandler()).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Result().Cookies())
	})

	t.Run("tracking failure does not fail the request", func(t *testing.T) {
		provider := &testutil.MockProvider{}
		store := &testutil.MockStorage{}
		provider.On("Authenticate", mock.Anything, mock.Anything, noState).Return(saml.Succeeded{User: alice})
		store.On("UpsertUser", mock.Anything, "alice", "saml1").Return(errors.New("unavailable"))

		rr := httptest.NewRecorder()
		NewAuthMiddleware(provider, newStateStore(t), store)(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		store.AssertExpectations(t)
	})

	t.Run("redirected persists handshake state", func(t *testing.T) {
		provider := &testutil.MockProvider{}
		states := newStateStore(t)
		handshake := &saml.State{RequestID: "req-1", NextURL: "/app/discover?q=1"}
		provider.On("Authenticate", mock.Anything, mock.Anything, noState).Return(saml.Redirected{
			URL:   "https://idp.example.com/sso?SAMLRequest=xyz",
			State: handshake,
		})

		rr := httptest.NewRecorder()
		NewAuthMiddleware(provider, states, nil)(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/app/discover?q=1", nil))

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "https://idp.example.com/sso?SAMLRequest=xyz", rr.Header().Get("Location"))
		assert.Equal(t, handshake, stateFrom(t, rr, states))
	})

	t.Run("failed relays status and response headers", func(t *testing.T) {
		provider := &testutil.MockProvider{}
		challenge := http.Header{"Www-Authenticate": []string{`Bearer realm="security"`}}
		provider.On("Authenticate", mock.Anything, mock.Anything, noState).Return(saml.Failed{
			Err:                 &upstreamError{status: http.StatusUnauthorized, header: challenge},
			AuthResponseHeaders: challenge,
		})

		rr := httptest.NewRecorder()
		NewAuthMiddleware(provider, newStateStore(t), nil)(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/api/status", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, `Bearer realm="security"`, rr.Header().Get("WWW-Authenticate"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "unauthorized", body["error"])
	})

	t.Run("failed without status is a 500", func(t *testing.T) {
		provider := &testutil.MockProvider{}
		provider.On("Authenticate", mock.Anything, mock.Anything, noState).Return(saml.Failed{Err: errors.New("connection refused")})

		rr := httptest.NewRecorder()
		NewAuthMiddleware(provider, newStateStore(t), nil)(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "connection refused")
	})

	t.Run("not handled is a 401", func(t *testing.T) {
		provider := &testutil.MockProvider{}
		provider.On("Authenticate", mock.Anything, mock.Anything, noState).Return(saml.NotHandled{})

		rr := httptest.NewRecorder()
		NewAuthMiddleware(provider, newStateStore(t), nil)(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/api/status", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unreadable state is cleared and treated as absent", func(t *testing.T) {
		provider := &testutil.MockProvider{}
		provider.On("Authenticate", mock.Anything, mock.Anything, noState).Return(saml.NotHandled{})

		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "garbage"})
		rr := httptest.NewRecorder()
		NewAuthMiddleware(provider, newStateStore(t), nil)(okHandler()).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.True(t, clearedCookie(rr))
		provider.AssertExpectations(t)
	})
}
