package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// parseString resolves an optional string-or-reference field
func parseString(raw json.RawMessage, field string, dst *string) error {
	if raw == nil {
		return nil
	}
	value, err := ParseConfigValue(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", field, err)
	}
	*dst = value
	return nil
}

func parseSecret(raw json.RawMessage, field string, dst *Secret) error {
	var value string
	if err := parseString(raw, field, &value); err != nil {
		return err
	}
	*dst = Secret(value)
	return nil
}

func parseDuration(raw string, field string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", field, err)
	}
	*dst = d
	return nil
}

// UnmarshalJSON implements custom unmarshaling for ProxyConfig
func (p *ProxyConfig) UnmarshalJSON(data []byte) error {
	type rawProxy struct {
		BaseURL        json.RawMessage `json:"baseURL"`
		Addr           json.RawMessage `json:"addr"`
		BasePath       string          `json:"basePath"`
		Name           string          `json:"name"`
		UpstreamURL    json.RawMessage `json:"upstreamURL"`
		AllowedOrigins []string        `json:"allowedOrigins"`
	}

	var raw rawProxy
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.BasePath = raw.BasePath
	p.Name = raw.Name
	p.AllowedOrigins = raw.AllowedOrigins

	if err := parseString(raw.BaseURL, "baseURL", &p.BaseURL); err != nil {
		return err
	}
	if err := parseString(raw.Addr, "addr", &p.Addr); err != nil {
		return err
	}
	return parseString(raw.UpstreamURL, "upstreamURL", &p.UpstreamURL)
}

// UnmarshalJSON implements custom unmarshaling for BackendConfig
func (b *BackendConfig) UnmarshalJSON(data []byte) error {
	type rawBackend struct {
		URL       json.RawMessage `json:"url"`
		Username  json.RawMessage `json:"username"`
		Password  json.RawMessage `json:"password"`
		Timeout   string          `json:"timeout"`
		TokenPath string          `json:"tokenPath"`
	}

	var raw rawBackend
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.TokenPath = raw.TokenPath
	if err := parseDuration(raw.Timeout, "timeout", &b.Timeout); err != nil {
		return err
	}
	if err := parseString(raw.URL, "url", &b.URL); err != nil {
		return err
	}
	if err := parseString(raw.Username, "username", &b.Username); err != nil {
		return err
	}
	return parseSecret(raw.Password, "password", &b.Password)
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	type rawSession struct {
		EncryptionKey json.RawMessage `json:"encryptionKey"`
		CookieName    string          `json:"cookieName"`
		SameSite      string          `json:"sameSite"`
		TTL           string          `json:"ttl"`
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.CookieName = raw.CookieName
	s.SameSite = raw.SameSite
	if err := parseDuration(raw.TTL, "ttl", &s.TTL); err != nil {
		return err
	}
	if err := parseSecret(raw.EncryptionKey, "encryptionKey", &s.EncryptionKey); err != nil {
		return err
	}

	if s.EncryptionKey != "" && len(s.EncryptionKey) != 32 {
		return fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(s.EncryptionKey))
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type rawStorage struct {
		Kind                StorageKind     `json:"kind"`
		GCPProject          json.RawMessage `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
		RedisAddr           json.RawMessage `json:"redisAddr"`
		RedisUsername       json.RawMessage `json:"redisUsername"`
		RedisPassword       json.RawMessage `json:"redisPassword"`
		RedisDB             int             `json:"redisDB"`
		RedisKeyPrefix      string          `json:"redisKeyPrefix"`
		Retention           string          `json:"retention"`
		CleanupInterval     string          `json:"cleanupInterval"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Kind = raw.Kind
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.FirestoreCollection = raw.FirestoreCollection
	s.RedisDB = raw.RedisDB
	s.RedisKeyPrefix = raw.RedisKeyPrefix

	if err := parseDuration(raw.Retention, "retention", &s.Retention); err != nil {
		return err
	}
	if err := parseDuration(raw.CleanupInterval, "cleanupInterval", &s.CleanupInterval); err != nil {
		return err
	}
	if err := parseString(raw.GCPProject, "gcpProject", &s.GCPProject); err != nil {
		return err
	}
	if err := parseString(raw.RedisAddr, "redisAddr", &s.RedisAddr); err != nil {
		return err
	}
	if err := parseString(raw.RedisUsername, "redisUsername", &s.RedisUsername); err != nil {
		return err
	}
	if err := parseSecret(raw.RedisPassword, "redisPassword", &s.RedisPassword); err != nil {
		return err
	}

	// Apply defaults for Firestore configuration
	if s.Kind == StorageKindFirestore && s.FirestoreDatabase == "" {
		s.FirestoreDatabase = "(default)"
	}
	return nil
}
