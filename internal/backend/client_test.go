package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgellow/saml-front/internal/saml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{URL: srv.URL + "/", Username: "kibana_system", Password: "secret"})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{Username: "u"})
	assert.Error(t, err)

	_, err = NewClient(Config{URL: "http://localhost:9200"})
	assert.Error(t, err)

	c, err := NewClient(Config{URL: "http://localhost:9200/", Username: "u"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9200", c.URL())
	assert.Equal(t, DefaultTimeout, c.HTTPClient().Timeout)
}

func TestCallAsInternalUser(t *testing.T) {
	tests := []struct {
		op   string
		path string
	}{
		{op: saml.OpSAMLPrepare, path: "/_security/saml/prepare"},
		{op: saml.OpSAMLAuthenticate, path: "/_security/saml/authenticate"},
		{op: saml.OpSAMLLogout, path: "/_security/saml/logout"},
		{op: saml.OpSAMLInvalidate, path: "/_security/saml/invalidate"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				user, pass, ok := r.BasicAuth()
				assert.True(t, ok)
				assert.Equal(t, "kibana_system", user)
				assert.Equal(t, "secret", pass)

				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "saml1", body["realm"])

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"req-1","redirect":"https://idp.example.com"}`))
			})

			var out struct {
				ID       string `json:"id"`
				Redirect string `json:"redirect"`
			}
			err := c.CallAsInternalUser(context.Background(), tt.op, map[string]string{"realm": "saml1"}, &out)
			require.NoError(t, err)
			assert.Equal(t, "req-1", out.ID)
			assert.Equal(t, "https://idp.example.com", out.Redirect)
		})
	}
}

func TestCallAsInternalUser_UnknownOperation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	assert.Error(t, c.CallAsInternalUser(context.Background(), "nope", nil, nil))
}

func TestAuthenticateUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/_security/_authenticate", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="security"`)
			w.Header().Add("WWW-Authenticate", `Basic realm="security"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"type":"security_exception","reason":"token expired"},"status":401}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"username":"alice",
			"roles":["viewer"],
			"full_name":"Alice",
			"email":"alice@example.com",
			"metadata":{"saml_nameid":"alice"},
			"enabled":true,
			"authentication_realm":{"name":"saml1","type":"saml"},
			"lookup_realm":{"name":"saml1","type":"saml"}
		}`))
	})

	u, err := c.AuthenticateUser(context.Background(), "Bearer good")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, []string{"viewer"}, u.Roles)
	assert.Equal(t, saml.Realm{Name: "saml1", Type: "saml"}, u.AuthenticationRealm)
	assert.Equal(t, "alice", u.Metadata["saml_nameid"])

	_, err = c.AuthenticateUser(context.Background(), "Bearer expired")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, http.StatusUnauthorized, saml.StatusCode(err))

	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "security_exception", be.Type)
	assert.Equal(t, "token expired", be.Reason)
	assert.Equal(t, []string{`Bearer realm="security"`, `Basic realm="security"`},
		be.ResponseHeaders().Values("WWW-Authenticate"))
}

func TestInvalidateToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/_security/oauth2/token", r.URL.Path)

		var body InvalidateTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, InvalidateTokenRequest{RefreshToken: "rt"}, body)

		_, _ = w.Write([]byte(`{"invalidated_tokens":1,"previously_invalidated_tokens":0}`))
	})

	resp, err := c.InvalidateToken(context.Background(), InvalidateTokenRequest{RefreshToken: "rt"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.InvalidatedTokens)
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantType   string
		wantReason string
	}{
		{name: "structured", status: 400, body: `{"error":{"type":"illegal_argument_exception","reason":"bad ids"}}`, wantType: "illegal_argument_exception", wantReason: "bad ids"},
		{name: "plain string", status: 404, body: `{"error":"not found","status":404}`, wantReason: "not found"},
		{name: "empty body", status: 503, body: "", wantReason: "Service Unavailable"},
		{name: "not json", status: 502, body: "<html>", wantReason: "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.CallAsInternalUser(context.Background(), saml.OpSAMLLogout, map[string]string{}, nil)
			var be *Error
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.status, be.StatusCode())
			assert.Equal(t, tt.wantType, be.Type)
			assert.Equal(t, tt.wantReason, be.Reason)
			assert.Nil(t, be.ResponseHeaders())
		})
	}
}
