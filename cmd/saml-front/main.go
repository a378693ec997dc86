package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dgellow/saml-front/internal"
	"github.com/dgellow/saml-front/internal/config"
	"github.com/dgellow/saml-front/internal/log"
)

var BuildVersion = "dev"

func defaultConfig() map[string]any {
	return map[string]any{
		"version": config.Version,
		"proxy": map[string]any{
			"baseURL":        "https://kibana.yourcompany.com",
			"addr":           ":8080",
			"name":           "saml-front",
			"upstreamURL":    "http://127.0.0.1:5601",
			"allowedOrigins": []string{"https://kibana.yourcompany.com"},
		},
		"saml": map[string]any{
			"realm": "saml1",
		},
		"backend": map[string]any{
			"url":      "https://elasticsearch.yourcompany.com:9200",
			"username": "kibana_system",
			"password": map[string]string{"$env": "BACKEND_PASSWORD"},
			"timeout":  "30s",
		},
		"session": map[string]any{
			"encryptionKey": map[string]string{"$env": "SESSION_ENCRYPTION_KEY"},
			"ttl":           "8h",
		},
		"storage": map[string]any{
			"kind":            "memory",
			"retention":       "720h",
			"cleanupInterval": "1h",
		},
	}
}

func generateDefaultConfig(path string) error {
	data, err := json.MarshalIndent(defaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func printIssues(out io.Writer, title string, issues []config.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(issues))
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(out, "  - %s\n", issue.Message)
		}
	}
}

func validateConfig(out io.Writer, path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Fprintf(out, "Validating: %s\n", path)
	printIssues(out, "Errors", result.Errors)
	printIssues(out, "Warnings", result.Warnings)

	fmt.Fprintln(out)
	switch {
	case len(result.Errors) > 0:
		fmt.Fprintln(out, "Result: FAIL")
	case len(result.Warnings) > 0:
		fmt.Fprintln(out, "Result: FAIL (warnings present)")
	default:
		fmt.Fprintln(out, "Result: PASS")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

// run parses args and executes one command, returning the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("saml-front", flag.ContinueOnError)
	fs.SetOutput(stderr)
	conf := fs.String("config", "", "path to config file (required)")
	version := fs.Bool("version", false, "print version and exit")
	configInit := fs.String("config-init", "", "generate default config file at specified path")
	validate := fs.Bool("validate", false, "validate config file and exit")
	logLevel := fs.String("log-level", "", "override LOG_LEVEL (error, warn, info, debug, trace)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *logLevel != "" {
		if err := log.SetLogLevel(*logLevel); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	switch {
	case *version:
		fmt.Fprintln(stdout, BuildVersion)
		return 0

	case *configInit != "":
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			return 1
		}
		fmt.Fprintf(stdout, "Generated default config at: %s\n", *configInit)
		return 0

	case *conf == "":
		fmt.Fprintf(stderr, "Error: -config flag is required\n")
		fmt.Fprintf(stderr, "Run with -help for usage information\n")
		return 2

	case *validate:
		if err := validateConfig(stdout, *conf); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		return 1
	}

	log.LogInfoWithFields("main", "Starting saml-front", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	app, err := internal.NewSAMLFront(context.Background(), cfg)
	if err != nil {
		log.LogError("Failed to create SAML proxy: %v", err)
		return 1
	}

	if err := app.Run(); err != nil {
		log.LogError("Server stopped with error: %v", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
