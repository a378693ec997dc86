package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes validates config JSON structure without requiring env vars
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", Version)
	} else if version != Version {
		result.addError("version", "unsupported version '%s' - use '%s'", version, Version)
	}

	validateProxyStructure(rawConfig, result)
	validateSAMLStructure(rawConfig, result)
	validateBackendStructure(rawConfig, result)
	validateSessionStructure(rawConfig, result)
	validateStorageStructure(rawConfig, result)

	return result
}

func requireSection(rawConfig map[string]any, name string, result *ValidationResult) (map[string]any, bool) {
	section, ok := rawConfig[name].(map[string]any)
	if !ok {
		result.addError(name, "%s field is required and must be an object", name)
		return nil, false
	}
	return section, true
}

func requireField(section map[string]any, path, field, example string, result *ValidationResult) {
	if _, ok := section[field]; !ok {
		result.addError(path+"."+field, "%s is required. Example: %s", field, example)
	}
}

func validateProxyStructure(rawConfig map[string]any, result *ValidationResult) {
	proxy, ok := requireSection(rawConfig, "proxy", result)
	if !ok {
		return
	}

	requireField(proxy, "proxy", "baseURL", `"https://kibana.example.com"`, result)
	requireField(proxy, "proxy", "addr", `":8080" or "0.0.0.0:8080"`, result)
	requireField(proxy, "proxy", "upstreamURL", `"http://127.0.0.1:5601"`, result)

	if basePath, ok := proxy["basePath"].(string); ok && basePath != "" {
		if !strings.HasPrefix(basePath, "/") {
			result.addError("proxy.basePath", "basePath must start with '/' (got %q)", basePath)
		}
		if strings.HasSuffix(basePath, "/") && basePath != "/" {
			result.addWarning("proxy.basePath", "trailing '/' in basePath %q is ignored", basePath)
		}
	}

	if origins, ok := proxy["allowedOrigins"]; ok {
		if _, isList := origins.([]any); !isList {
			result.addError("proxy.allowedOrigins", "allowedOrigins must be an array of origins")
		}
	} else {
		result.addWarning("proxy.allowedOrigins", "no allowedOrigins configured - CORS will allow any origin")
	}
}

func validateSAMLStructure(rawConfig map[string]any, result *ValidationResult) {
	samlSection, ok := rawConfig["saml"].(map[string]any)
	if !ok {
		result.addWarning("saml", "no saml section - the realm will be selected by assertion consumer service URL")
		return
	}
	if realm, ok := samlSection["realm"].(string); !ok || realm == "" {
		result.addWarning("saml.realm", "no realm configured - the realm will be selected by assertion consumer service URL")
	}
	for _, field := range []string{"apiPrefixes", "ajaxHeaders"} {
		if value, ok := samlSection[field]; ok {
			if _, isList := value.([]any); !isList {
				result.addError("saml."+field, "%s must be an array of strings", field)
			}
		}
	}
}

func validateBackendStructure(rawConfig map[string]any, result *ValidationResult) {
	backend, ok := requireSection(rawConfig, "backend", result)
	if !ok {
		return
	}

	requireField(backend, "backend", "url", `"https://elasticsearch.internal:9200"`, result)
	requireField(backend, "backend", "username", `"kibana_system"`, result)
	validateSecretField(backend, "backend", "password", true, result)
	validateDurationField(backend, "backend", "timeout", result)
}

func validateSessionStructure(rawConfig map[string]any, result *ValidationResult) {
	session, ok := requireSection(rawConfig, "session", result)
	if !ok {
		return
	}

	validateSecretField(session, "session", "encryptionKey", true, result)
	validateDurationField(session, "session", "ttl", result)
}

func validateStorageStructure(rawConfig map[string]any, result *ValidationResult) {
	storage, ok := rawConfig["storage"].(map[string]any)
	if !ok {
		return
	}

	kind, _ := storage["kind"].(string)
	switch StorageKind(kind) {
	case "", StorageKindMemory:
		if kind == "" {
			result.addWarning("storage.kind", "no storage kind configured - defaulting to memory")
		}
	case StorageKindFirestore:
		requireField(storage, "storage", "gcpProject", `"my-project"`, result)
	case StorageKindRedis:
		requireField(storage, "storage", "redisAddr", `"127.0.0.1:6379"`, result)
	default:
		result.addError("storage.kind", "invalid storage kind %q - use memory, firestore or redis", kind)
	}

	validateSecretField(storage, "storage", "redisPassword", false, result)
	validateDurationField(storage, "storage", "retention", result)
	validateDurationField(storage, "storage", "cleanupInterval", result)
}

// validateSecretField requires secrets to be {"$env": ...} references
func validateSecretField(section map[string]any, path, field string, required bool, result *ValidationResult) {
	value, exists := section[field]
	if !exists {
		if required {
			result.addError(path+"."+field, "%s is required. Example: {\"$env\": \"%s\"}", field, envVarName(path, field))
		}
		return
	}

	refMap, isMap := value.(map[string]any)
	if !isMap {
		result.addError(path+"."+field, "%s must use environment variable reference for security. Hint: {\"$env\": \"%s\"}", field, envVarName(path, field))
		return
	}
	if _, hasEnv := refMap["$env"]; !hasEnv {
		result.addError(path+"."+field, "%s must use {\"$env\": \"VAR_NAME\"} format", field)
	}
}

func validateDurationField(section map[string]any, path, field string, result *ValidationResult) {
	value, exists := section[field]
	if !exists {
		return
	}
	s, ok := value.(string)
	if !ok {
		result.addError(path+"."+field, "%s must be a duration string like \"30s\" or \"8h\"", field)
		return
	}
	var d time.Duration
	if err := parseDuration(s, field, &d); err != nil {
		result.addError(path+"."+field, "%v", err)
	}
}

// envVarName suggests an environment variable for a secret field
func envVarName(path, field string) string {
	snake := regexp.MustCompile(`([a-z0-9])([A-Z])`).ReplaceAllString(field, "${1}_${2}")
	return strings.ToUpper(path + "_" + snake)
}

// checkBashStyleSyntax warns about $VAR and ${VAR} strings, which are not expanded
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	bashStyleRegex := regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI and ensures unambiguous parsing", match, varName)
		}
	case map[string]any:
		// Skip if this is already an env ref
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
