package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddHeaders(t *testing.T) {
	dst := http.Header{"Www-Authenticate": []string{`Basic realm="a"`}}
	addHeaders(dst, http.Header{"Www-Authenticate": []string{`Bearer realm="b"`}})

	assert.Equal(t, []string{`Basic realm="a"`, `Bearer realm="b"`}, dst.Values("WWW-Authenticate"))

	addHeaders(dst, nil)
	assert.Len(t, dst, 1)
}

func TestReplaceHeaders(t *testing.T) {
	t.Run("overwrites existing values", func(t *testing.T) {
		dst := http.Header{}
		dst.Set("Authorization", "Bearer stale")
		dst.Set("Accept", "text/html")

		replaceHeaders(dst, http.Header{"Authorization": []string{"Bearer fresh"}})

		assert.Equal(t, []string{"Bearer fresh"}, dst.Values("Authorization"))
		assert.Equal(t, "text/html", dst.Get("Accept"))
	})

	t.Run("skips hop-by-hop headers", func(t *testing.T) {
		dst := http.Header{}
		dst.Set("Connection", "keep-alive")

		replaceHeaders(dst, http.Header{
			"Connection": []string{"close"},
			"Upgrade":    []string{"websocket"},
		})

		assert.Equal(t, "keep-alive", dst.Get("Connection"))
		assert.Empty(t, dst.Get("Upgrade"))
	})
}
