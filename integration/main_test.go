package integration

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

// TestMain provides package-level setup and teardown for all integration tests
func TestMain(m *testing.M) {
	flag.Parse()

	fmt.Println("Building saml-front binary...")
	buildCmd := exec.Command("go", "build", "-o", samlFrontBinary, "../cmd/saml-front")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		fmt.Printf("Failed to build saml-front: %v\n", err)
		os.Exit(1)
	}

	logFile := "saml-front-test.log"
	os.Setenv("SAML_FRONT_LOG_FILE", logFile)

	var exitCode int
	defer func() {
		if exitCode != 0 {
			showTestFailureDiagnostics(logFile)
		}
		os.Exit(exitCode)
	}()

	securityAPI = NewFakeSecurityAPI(fakeSecurityPort)
	if err := securityAPI.Start(); err != nil {
		fmt.Printf("Failed to start fake security API: %v\n", err)
		exitCode = 1
		return
	}
	defer func() {
		_ = securityAPI.Stop()
	}()

	upstream := NewFakeUpstream(fakeUpstreamPort)
	if err := upstream.Start(); err != nil {
		fmt.Printf("Failed to start fake upstream: %v\n", err)
		exitCode = 1
		return
	}
	defer func() {
		_ = upstream.Stop()
	}()

	exitCode = m.Run()
}

// securityAPI is shared by all tests in the package
var securityAPI *FakeSecurityAPI

// showTestFailureDiagnostics displays saml-front logs when tests fail
func showTestFailureDiagnostics(logFile string) {
	fmt.Println("\n========== TEST FAILURE DIAGNOSTICS ==========")

	data, err := os.ReadFile(logFile)
	if err != nil {
		fmt.Printf("No saml-front logs available: %v\n", err)
		return
	}

	lines := splitLines(string(data))
	if len(lines) > 50 {
		lines = lines[len(lines)-50:]
	}
	fmt.Println("\nsaml-front logs (last 50 lines):")
	fmt.Println("----------------------------------------------")
	for _, line := range lines {
		fmt.Println(line)
	}
	fmt.Println("==============================================")
}
