package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name   string
		secret Secret
		want   string
	}{
		{name: "non-empty secret", secret: Secret("super-secret-password"), want: "***"},
		{name: "empty secret", secret: Secret(""), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.secret.String())
			assert.Equal(t, "value: "+tt.want, fmt.Sprintf("value: %s", tt.secret))

			data, err := json.Marshal(tt.secret)
			require.NoError(t, err)
			assert.Equal(t, `"`+tt.want+`"`, string(data))
		})
	}
}

func TestSecretRedactionInConfig(t *testing.T) {
	cfg := validResolvedConfig()

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "changeme")
	assert.NotContains(t, string(data), "test-encryption-key-32-bytes-ok!")
}

func TestParseConfigValue(t *testing.T) {
	t.Setenv("SAML_FRONT_TEST_VALUE", `"double"`)

	v, err := ParseConfigValue(json.RawMessage(`"plain"`))
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	v, err = ParseConfigValue(json.RawMessage(`{"$env": "SAML_FRONT_TEST_VALUE"}`))
	require.NoError(t, err)
	assert.Equal(t, "double", v)

	_, err = ParseConfigValue(json.RawMessage(`{"$userToken": "x"}`))
	assert.ErrorContains(t, err, "unknown reference type")

	_, err = ParseConfigValue(json.RawMessage(`42`))
	assert.ErrorContains(t, err, "must be string or reference object")
}
