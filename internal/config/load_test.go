package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
  "version": "v1",
  "proxy": {
    "baseURL": "https://kibana.example.com",
    "addr": ":8080",
    "basePath": "/app",
    "upstreamURL": {"$env": "UPSTREAM_URL"},
    "allowedOrigins": ["https://kibana.example.com"]
  },
  "saml": {
    "realm": "saml1",
    "ajaxHeaders": ["X-Requested-With"]
  },
  "backend": {
    "url": "https://es.internal:9200",
    "username": "kibana_system",
    "password": {"$env": "BACKEND_PASSWORD"},
    "timeout": "10s"
  },
  "session": {
    "encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"},
    "ttl": "8h"
  },
  "storage": {
    "kind": "redis",
    "redisAddr": "127.0.0.1:6379",
    "redisPassword": {"$env": "REDIS_PASSWORD"},
    "retention": "720h",
    "cleanupInterval": "1h"
  }
}`

func setValidEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://127.0.0.1:5601")
	t.Setenv("BACKEND_PASSWORD", "changeme")
	t.Setenv("SESSION_ENCRYPTION_KEY", "test-encryption-key-32-bytes-ok!")
	t.Setenv("REDIS_PASSWORD", "'quoted'")
}

func TestLoad(t *testing.T) {
	setValidEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "saml-front", cfg.Proxy.Name)
	assert.Equal(t, "/app", cfg.Proxy.BasePath)
	assert.Equal(t, "http://127.0.0.1:5601", cfg.Proxy.UpstreamURL)
	assert.Equal(t, "saml1", cfg.SAML.Realm)
	assert.Equal(t, []string{"X-Requested-With"}, cfg.SAML.AJAXHeaders)
	assert.Equal(t, Secret("changeme"), cfg.Backend.Password)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 8*time.Hour, cfg.Session.TTL)
	assert.Equal(t, StorageKindRedis, cfg.Storage.Kind)
	assert.Equal(t, Secret("quoted"), cfg.Storage.RedisPassword)
	assert.Equal(t, 720*time.Hour, cfg.Storage.Retention)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name        string
		config      string
		expectError string
	}{
		{
			name:        "invalid json",
			config:      `{`,
			expectError: "parsing config JSON",
		},
		{
			name:        "missing version",
			config:      `{"proxy": {}}`,
			expectError: "config version is required",
		},
		{
			name:        "unsupported version",
			config:      `{"version": "v0"}`,
			expectError: "unsupported config version",
		},
		{
			name:        "plaintext password",
			config:      `{"version": "v1", "backend": {"password": "hunter2"}}`,
			expectError: "backend.password must use environment variable reference",
		},
		{
			name:        "plaintext encryption key",
			config:      `{"version": "v1", "session": {"encryptionKey": {"$file": "/key"}}}`,
			expectError: "session.encryptionKey must use {\"$env\": \"VAR_NAME\"} format",
		},
		{
			name:        "unset env var",
			config:      `{"version": "v1", "backend": {"password": {"$env": "SAML_FRONT_UNSET_VAR"}}}`,
			expectError: "environment variable SAML_FRONT_UNSET_VAR not set",
		},
		{
			name:        "bad duration",
			config:      `{"version": "v1", "session": {"ttl": "forever"}}`,
			expectError: "parsing ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func validResolvedConfig() *Config {
	return &Config{
		Version: Version,
		Proxy: ProxyConfig{
			BaseURL:     "https://kibana.example.com",
			Addr:        ":8080",
			UpstreamURL: "http://127.0.0.1:5601",
		},
		SAML: SAMLConfig{Realm: "saml1"},
		Backend: BackendConfig{
			URL:      "https://es.internal:9200",
			Username: "kibana_system",
			Password: "changeme",
		},
		Session: SessionConfig{EncryptionKey: "test-encryption-key-32-bytes-ok!"},
		Storage: StorageConfig{Kind: StorageKindMemory},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing baseURL", mutate: func(c *Config) { c.Proxy.BaseURL = "" }, expectError: "proxy.baseURL is required"},
		{name: "relative baseURL", mutate: func(c *Config) { c.Proxy.BaseURL = "/kibana" }, expectError: "proxy.baseURL"},
		{name: "missing addr", mutate: func(c *Config) { c.Proxy.Addr = "" }, expectError: "proxy.addr is required"},
		{name: "missing upstream", mutate: func(c *Config) { c.Proxy.UpstreamURL = "" }, expectError: "proxy.upstreamURL is required"},
		{name: "missing backend url", mutate: func(c *Config) { c.Backend.URL = "" }, expectError: "backend.url is required"},
		{name: "missing backend username", mutate: func(c *Config) { c.Backend.Username = "" }, expectError: "backend.username is required"},
		{name: "missing backend password", mutate: func(c *Config) { c.Backend.Password = "" }, expectError: "backend.password is required"},
		{name: "short encryption key", mutate: func(c *Config) { c.Session.EncryptionKey = "short" }, expectError: "exactly 32 characters"},
		{name: "lax cookie opt-in", mutate: func(c *Config) { c.Session.SameSite = "lax" }},
		{name: "unknown sameSite", mutate: func(c *Config) { c.Session.SameSite = "loose" }, expectError: "session.sameSite"},
		{name: "no realm is allowed", mutate: func(c *Config) { c.SAML.Realm = "" }},
		{name: "firestore without project", mutate: func(c *Config) { c.Storage.Kind = StorageKindFirestore }, expectError: "storage.gcpProject is required"},
		{name: "redis without addr", mutate: func(c *Config) { c.Storage.Kind = StorageKindRedis }, expectError: "storage.redisAddr is required"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Kind = "sqlite" }, expectError: "storage.kind must be one of"},
		{name: "retention without interval", mutate: func(c *Config) { c.Storage.Retention = time.Hour }, expectError: "storage.cleanupInterval is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validResolvedConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}
