// ABOUTME: Interactive init command that writes a starter inbox config
// ABOUTME: Generates a random JWT secret and a log channel for local testing

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// initAnswers collects everything runInit asks for.
type initAnswers struct {
	HTTPAddr  string
	DBPath    string
	JWTSecret string
	Provider  string
	Tailscale bool
	Hostname  string
	Funnel    bool
	LogLevel  string
	LogFormat string
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("coven-inbox configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !isYes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	answers := initAnswers{JWTSecret: secret}

	fmt.Println("\n--- Server ---")
	answers.HTTPAddr = prompt(reader, "HTTP address", "localhost:8080")
	answers.DBPath = prompt(reader, "SQLite database path", filepath.Join(getDataPath(), "inbox.db"))

	fmt.Println("\n--- Agent ---")
	answers.Provider = prompt(reader, "Reply agent (rules/gemini)", "rules")

	fmt.Println("\n--- Tailscale ---")
	answers.Tailscale = isYes(prompt(reader, "Enable Tailscale?", "no"))
	if answers.Tailscale {
		answers.Hostname = prompt(reader, "Tailscale hostname", "coven-inbox")
		answers.Funnel = isYes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging ---")
	answers.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	answers.LogFormat = prompt(reader, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(answers)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(answers.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  coven-inbox seed                   # optional demo data")
	fmt.Println("  coven-inbox token --subject you    # API token")
	fmt.Println("  coven-inbox serve")

	return nil
}

// renderConfig produces the YAML config file for a set of answers.
func renderConfig(a initAnswers) string {
	var b strings.Builder
	b.WriteString("# coven-inbox configuration\n")
	b.WriteString("# Generated by coven-inbox init\n\n")

	fmt.Fprintf(&b, "server:\n  http_addr: %q\n\n", a.HTTPAddr)
	fmt.Fprintf(&b, "database:\n  path: %q\n\n", a.DBPath)
	fmt.Fprintf(&b, "auth:\n  jwt_secret: %q\n\n", a.JWTSecret)

	b.WriteString("tailscale:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.Tailscale)
	if a.Tailscale {
		fmt.Fprintf(&b, "  hostname: %q\n", a.Hostname)
		b.WriteString("  auth_key: \"${TS_AUTHKEY}\"\n")
		fmt.Fprintf(&b, "  funnel: %t\n", a.Funnel)
	}
	b.WriteString("\n")

	b.WriteString("agent:\n")
	fmt.Fprintf(&b, "  provider: %q\n", a.Provider)
	if a.Provider == "gemini" {
		b.WriteString("  api_key: \"${GEMINI_API_KEY}\"\n")
	}
	b.WriteString("\n")

	b.WriteString("pipeline:\n  agent_timeout: \"20s\"\n  delivery_timeout: \"15s\"\n\n")
	b.WriteString("metrics:\n  due_soon_window: \"24h\"\n\n")

	b.WriteString("# Replace the log channels with webhook, graph or matrix adapters.\n")
	b.WriteString("channels:\n")
	for _, name := range []string{"website", "instagram", "facebook", "messenger"} {
		fmt.Fprintf(&b, "  %s:\n    type: log\n", name)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "logging:\n  level: %q\n  format: %q\n\n", a.LogLevel, a.LogFormat)
	b.WriteString("watch_config: true\n")

	return b.String()
}

func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
