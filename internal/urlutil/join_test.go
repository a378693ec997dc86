package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		paths []string
		want  string
	}{
		{
			name:  "simple join",
			base:  "https://dash.example.com",
			paths: []string{"api", "security", "v1", "saml"},
			want:  "https://dash.example.com/api/security/v1/saml",
		},
		{
			name:  "base with path",
			base:  "https://dash.example.com/tenant",
			paths: []string{"/dash", "/api/security/v1/saml"},
			want:  "https://dash.example.com/tenant/dash/api/security/v1/saml",
		},
		{
			name:  "trailing slash preserved",
			base:  "https://dash.example.com",
			paths: []string{"app/"},
			want:  "https://dash.example.com/app/",
		},
		{
			name:  "empty paths",
			base:  "https://dash.example.com",
			paths: []string{},
			want:  "https://dash.example.com",
		},
		{
			name:  "empty base path segment",
			base:  "https://dash.example.com/",
			paths: []string{"", "/api/security/v1/saml"},
			want:  "https://dash.example.com/api/security/v1/saml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinPath(tt.base, tt.paths...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinPath_InvalidBase(t *testing.T) {
	_, err := JoinPath("://missing-scheme", "api")
	assert.Error(t, err)
}

func TestNormalizeBasePath(t *testing.T) {
	assert.Equal(t, "", NormalizeBasePath(""))
	assert.Equal(t, "", NormalizeBasePath("/"))
	assert.Equal(t, "/dash", NormalizeBasePath("dash/"))
	assert.Equal(t, "/dash", NormalizeBasePath("/dash"))
	assert.Equal(t, "/a/b", NormalizeBasePath("/a/b//"))
}

func TestWithBasePath(t *testing.T) {
	assert.Equal(t, "/logged_out", WithBasePath("", "/logged_out"))
	assert.Equal(t, "/dash/logged_out", WithBasePath("/dash/", "logged_out"))
	assert.Equal(t, "/dash/", WithBasePath("/dash", "/"))
}
