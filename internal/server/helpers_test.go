package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgellow/saml-front/internal/cookie"
	"github.com/dgellow/saml-front/internal/crypto"
	"github.com/dgellow/saml-front/internal/saml"
	"github.com/dgellow/saml-front/internal/sessionstate"
	"github.com/stretchr/testify/require"
)

var noState = (*saml.State)(nil)

func newStateStore(t *testing.T) *sessionstate.Store {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	enc, err := crypto.NewEncryptor(key)
	require.NoError(t, err)
	return sessionstate.NewStore(cookie.New(cookie.DefaultStateCookie, "/"), enc, time.Hour)
}

// withState attaches state to r as the browser would after a previous response
func withState(t *testing.T, r *http.Request, states *sessionstate.Store, state *saml.State) *http.Request {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, states.Save(w, state))
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

// stateFrom reads back the state cookie written to w
func stateFrom(t *testing.T, w *httptest.ResponseRecorder, states *sessionstate.Store) *saml.State {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 {
			r.AddCookie(c)
		}
	}
	state, err := states.Load(r)
	require.NoError(t, err)
	return state
}

// clearedCookie reports whether w deleted the state cookie
func clearedCookie(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookie.DefaultStateCookie && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
