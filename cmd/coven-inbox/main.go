// ABOUTME: Entry point for the coven-inbox server and its admin commands
// ABOUTME: Dispatches serve, init, seed, token and health subcommands

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-inbox/internal/config"
	"github.com/2389/coven-inbox/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                       _       _
  ___ _____   _____ _ __        (_)_ __ | |__   _____  __
 / __/ _ \ \ / / _ \ '_ \ _____| | '_ \| '_ \ / _ \ \/ /
| (_| (_) \ V /  __/ | | |_____| | | | | |_) | (_) >  <
 \___\___/ \_/ \___|_| |_|     |_|_| |_|_.__/ \___/_/\_\
`

// getConfigPath returns the path to the inbox config file.
// Priority: COVEN_INBOX_CONFIG env var > XDG_CONFIG_HOME/coven/inbox.yaml > ~/.config/coven/inbox.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_INBOX_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "inbox.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "inbox.yaml")
}

// getDataPath returns the path to the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}

func usage() {
	fmt.Println("Usage: coven-inbox <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                    Start the inbox server")
	fmt.Println("  init                     Create a new config file interactively")
	fmt.Println("  seed                     Load demo contacts, threads, deals, calls and tasks")
	fmt.Println("  token --subject NAME     Mint an API token for an operator")
	fmt.Println("  health                   Check server health")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "seed":
		err = runSeed(ctx)
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Agent:     %s\n", cfg.Agent.Provider)
	green.Print("    ▶ ")
	fmt.Printf("Channels:  %d\n", len(cfg.Channels))

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! auth disabled (no auth.jwt_secret)")
	}

	fmt.Println()

	logger.Info("starting coven-inbox",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"watch_config", cfg.WatchConfig,
	)

	gw, err := gateway.New(ctx, cfg, configPath, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
