package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Version is the config format understood by this build
const Version = "v1"

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the user tracking backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
	StorageKindRedis     StorageKind = "redis"
)

// ProxyConfig describes the listening side and the upstream application
type ProxyConfig struct {
	BaseURL        string   `json:"baseURL"`
	Addr           string   `json:"addr"`
	BasePath       string   `json:"basePath,omitempty"`
	Name           string   `json:"name"`
	UpstreamURL    string   `json:"upstreamURL"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// SAMLConfig configures the SAML provider
type SAMLConfig struct {
	// Realm is the backing store SAML realm. When empty the realm is
	// selected by assertion consumer service URL.
	Realm string `json:"realm,omitempty"`

	// APIPrefixes are relative to proxy.basePath: "/api/" matches "/kibana/api/"
	APIPrefixes []string `json:"apiPrefixes,omitempty"`
	AJAXHeaders []string `json:"ajaxHeaders,omitempty"`
}

// BackendConfig configures the backing store client
type BackendConfig struct {
	URL       string        `json:"url"`
	Username  string        `json:"username"`
	Password  Secret        `json:"password"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	TokenPath string        `json:"tokenPath,omitempty"`
}

// SessionConfig configures the encrypted state cookie
type SessionConfig struct {
	EncryptionKey Secret        `json:"encryptionKey"`
	CookieName    string        `json:"cookieName,omitempty"`
	TTL           time.Duration `json:"ttl,omitempty"`

	// SameSite is none, lax or strict. Empty means none, which the SAML
	// HTTP-POST binding needs.
	SameSite string `json:"sameSite,omitempty"`
}

// StorageConfig configures user tracking
type StorageConfig struct {
	Kind StorageKind `json:"kind"`

	// Firestore
	GCPProject          string `json:"gcpProject,omitempty"`
	FirestoreDatabase   string `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string `json:"firestoreCollection,omitempty"`

	// Redis
	RedisAddr      string `json:"redisAddr,omitempty"`
	RedisUsername  string `json:"redisUsername,omitempty"`
	RedisPassword  Secret `json:"redisPassword,omitempty"`
	RedisDB        int    `json:"redisDB,omitempty"`
	RedisKeyPrefix string `json:"redisKeyPrefix,omitempty"`

	// Users not seen for Retention are pruned every CleanupInterval. Zero disables pruning.
	Retention       time.Duration `json:"retention,omitempty"`
	CleanupInterval time.Duration `json:"cleanupInterval,omitempty"`
}

// Config represents the config structure with resolved values.
//
// Environment variable references using {"$env": "VAR_NAME"} syntax are
// resolved at load time. Secrets must always use this syntax so they never
// live in the config file itself.
type Config struct {
	Version string        `json:"version"`
	Proxy   ProxyConfig   `json:"proxy"`
	SAML    SAMLConfig    `json:"saml"`
	Backend BackendConfig `json:"backend"`
	Session SessionConfig `json:"session"`
	Storage StorageConfig `json:"storage"`
}

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR"} reference
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}
