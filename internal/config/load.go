package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/dgellow/saml-front/internal/cookie"
	"github.com/dgellow/saml-front/internal/log"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse processes raw config JSON
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if version != Version {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// secretFields lists "section.field" values that must be env references
var secretFields = [][2]string{
	{"backend", "password"},
	{"session", "encryptionKey"},
	{"storage", "redisPassword"},
}

// validateRawConfig validates the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	for _, f := range secretFields {
		section, ok := rawConfig[f[0]].(map[string]any)
		if !ok {
			continue
		}
		value, exists := section[f[1]]
		if !exists {
			continue
		}
		if _, isString := value.(string); isString {
			return fmt.Errorf("%s.%s must use environment variable reference for security", f[0], f[1])
		}
		refMap, isMap := value.(map[string]any)
		if !isMap {
			return fmt.Errorf("%s.%s must use {\"$env\": \"VAR_NAME\"} format", f[0], f[1])
		}
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("%s.%s must use {\"$env\": \"VAR_NAME\"} format", f[0], f[1])
		}
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.Proxy.Name == "" {
		config.Proxy.Name = "saml-front"
	}
	if config.Storage.Kind == "" {
		config.Storage.Kind = StorageKindMemory
	}
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Proxy.BaseURL == "" {
		return fmt.Errorf("proxy.baseURL is required")
	}
	if err := validateAbsoluteURL(config.Proxy.BaseURL); err != nil {
		return fmt.Errorf("proxy.baseURL: %w", err)
	}
	if config.Proxy.Addr == "" {
		return fmt.Errorf("proxy.addr is required")
	}
	if config.Proxy.UpstreamURL == "" {
		return fmt.Errorf("proxy.upstreamURL is required")
	}
	if err := validateAbsoluteURL(config.Proxy.UpstreamURL); err != nil {
		return fmt.Errorf("proxy.upstreamURL: %w", err)
	}

	if config.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if err := validateAbsoluteURL(config.Backend.URL); err != nil {
		return fmt.Errorf("backend.url: %w", err)
	}
	if config.Backend.Username == "" {
		return fmt.Errorf("backend.username is required")
	}
	if config.Backend.Password == "" {
		return fmt.Errorf("backend.password is required")
	}
	if config.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout cannot be negative")
	}

	if len(config.Session.EncryptionKey) != 32 {
		return fmt.Errorf("session.encryptionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(config.Session.EncryptionKey))
	}
	if config.Session.TTL < 0 {
		return fmt.Errorf("session.ttl cannot be negative")
	}
	if _, err := cookie.ParseSameSite(config.Session.SameSite); err != nil {
		return fmt.Errorf("session.sameSite: %w", err)
	}

	if config.SAML.Realm == "" {
		log.LogWarn("saml.realm is not set, the realm will be selected by assertion consumer service URL")
	}

	return validateStorage(&config.Storage)
}

func validateStorage(s *StorageConfig) error {
	switch s.Kind {
	case StorageKindMemory:
	case StorageKindFirestore:
		if s.GCPProject == "" {
			return fmt.Errorf("storage.gcpProject is required when using firestore storage")
		}
	case StorageKindRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("storage.redisAddr is required when using redis storage")
		}
		if s.RedisDB < 0 {
			return fmt.Errorf("storage.redisDB cannot be negative")
		}
	default:
		return fmt.Errorf("storage.kind must be one of memory, firestore or redis (got %q)", s.Kind)
	}

	if s.Retention < 0 || s.CleanupInterval < 0 {
		return fmt.Errorf("storage.retention and storage.cleanupInterval cannot be negative")
	}
	if s.Retention > 0 && s.CleanupInterval == 0 {
		return fmt.Errorf("storage.cleanupInterval is required when storage.retention is set")
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
