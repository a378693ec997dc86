package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasePathRouting(t *testing.T) {
	startSAMLFront(t, writeTestConfig(t, buildTestConfig(withBasePath("/kibana"))))
	waitForSAMLFront(t)

	client := newBrowser(t)

	t.Run("health at root", func(t *testing.T) {
		resp, err := client.Get(samlFrontURL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("nothing outside the base path", func(t *testing.T) {
		resp, err := client.Get(samlFrontURL + "/discover")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("logged out page under base path", func(t *testing.T) {
		resp, err := client.Get(samlFrontURL + "/kibana/logged_out")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	})

	t.Run("handshake remembers the full path", func(t *testing.T) {
		resp, err := client.Get(samlFrontURL + "/kibana/app/dashboards?id=1")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusFound, resp.StatusCode)
		id, err := requestIDFromRedirect(resp.Header.Get("Location"))
		require.NoError(t, err)

		resp = postAssertion(t, client, samlFrontURL+"/kibana", "assertion:frank:"+id)
		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/kibana/app/dashboards?id=1", resp.Header.Get("Location"))

		var echo upstreamEcho
		resp = getJSON(t, client, samlFrontURL+"/kibana/app/dashboards?id=1", nil, &echo)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/kibana/app/dashboards", echo.Path)
	})
}

func TestRealmSelectedByACS(t *testing.T) {
	startSAMLFront(t, writeTestConfig(t, buildTestConfig(withBasePath("/app"), withoutRealm())))
	waitForSAMLFront(t)

	resp, err := newBrowser(t).Get(appURL + "/discover")
	require.NoError(t, err)
	defer resp.Body.Close()

	// prepare is rejected unless exactly one of realm or acs is sent
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), fakeIdPURL+"/sso"))
}
