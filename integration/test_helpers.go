package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"
)

const samlFrontURL = "http://localhost:8080"

const samlFrontBinary = "../cmd/saml-front/saml-front"

// configOption customizes a generated test config
type configOption func(map[string]any)

func withBasePath(basePath string) configOption {
	return func(cfg map[string]any) {
		cfg["proxy"].(map[string]any)["basePath"] = basePath
	}
}

func withoutRealm() configOption {
	return func(cfg map[string]any) {
		delete(cfg["saml"].(map[string]any), "realm")
	}
}

// buildTestConfig builds a complete saml-front config map
func buildTestConfig(opts ...configOption) map[string]any {
	cfg := map[string]any{
		"version": "v1",
		"proxy": map[string]any{
			"baseURL":     samlFrontURL,
			"addr":        ":8080",
			"name":        "saml-front-test",
			"upstreamURL": "http://localhost:" + fakeUpstreamPort,
		},
		"saml": map[string]any{
			"realm": "saml1",
		},
		"backend": map[string]any{
			"url":      "http://localhost:" + fakeSecurityPort,
			"username": internalUsername,
			"password": map[string]string{"$env": "BACKEND_PASSWORD"},
			"timeout":  "5s",
		},
		"session": map[string]any{
			"encryptionKey": map[string]string{"$env": "SESSION_ENCRYPTION_KEY"},
			"ttl":           "1h",
		},
		"storage": map[string]any{
			"kind": "memory",
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// writeTestConfig writes a config map to a temporary JSON file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTestConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close temp config: %v", err)
	}
	return f.Name()
}

// trace logs a message if TRACE environment variable is set
func trace(t *testing.T, format string, args ...any) {
	if os.Getenv("TRACE") == "1" {
		t.Logf("TRACE: "+format, args...)
	}
}

// startSAMLFront starts the saml-front server with the given config
func startSAMLFront(t *testing.T, configPath string, extraEnv ...string) {
	cmd := exec.Command(samlFrontBinary, "-config", configPath)

	cmd.Env = append(os.Environ(),
		"BACKEND_PASSWORD="+internalPassword,
		"SESSION_ENCRYPTION_KEY=integration-test-key-32-bytes-ok",
		// Plain HTTP in tests, the state cookie must not be Secure
		"SAML_FRONT_ENV=development",
	)
	cmd.Env = append(cmd.Env, extraEnv...)

	if logFile := os.Getenv("SAML_FRONT_LOG_FILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			cmd.Stderr = f
			cmd.Stdout = f
			t.Cleanup(func() { f.Close() })
		}
	}

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start saml-front: %v", err)
	}

	t.Cleanup(func() {
		stopSAMLFront(cmd)
	})
}

// stopSAMLFront stops the saml-front server gracefully
func stopSAMLFront(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-done:
		return
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}

// waitForSAMLFront waits for the saml-front server to be ready
func waitForSAMLFront(t *testing.T) {
	t.Helper()
	for range 20 {
		resp, err := http.Get(samlFrontURL + "/health")
		if err == nil && resp.StatusCode == 200 {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatal("saml-front failed to become ready after 10 seconds")
}

// newBrowser returns a client that keeps cookies and does not follow redirects
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// requestIDFromRedirect extracts the SAML request id the fake IdP was sent
func requestIDFromRedirect(location string) (string, error) {
	_, id, ok := strings.Cut(location, "SAMLRequest=")
	if !ok || id == "" {
		return "", fmt.Errorf("no SAMLRequest in %q", location)
	}
	return id, nil
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
