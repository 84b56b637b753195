// ABOUTME: Configuration loading and parsing for coven-inbox
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Channel adapter types
const (
	ChannelTypeWebhook = "webhook"
	ChannelTypeGraph   = "graph"
	ChannelTypeMatrix  = "matrix"
	ChannelTypeLog     = "log"
)

// Agent providers
const (
	ProviderRules  = "rules"
	ProviderGemini = "gemini"
)

// Defaults applied when a field is left empty
const (
	DefaultAgentTimeout    = 20 * time.Second
	DefaultDeliveryTimeout = 15 * time.Second
	DefaultDueSoonWindow   = 24 * time.Hour
	DefaultDedupeTTL       = 10 * time.Minute
	DefaultDedupeEntries   = 10000
	DefaultGeminiModel     = "gemini-2.5-flash"
)

// Config represents the complete coven-inbox configuration
type Config struct {
	Server      ServerConfig             `yaml:"server" toml:"server"`
	Tailscale   TailscaleConfig          `yaml:"tailscale" toml:"tailscale"`
	Database    DatabaseConfig           `yaml:"database" toml:"database"`
	Auth        AuthConfig               `yaml:"auth" toml:"auth"`
	Agent       AgentConfig              `yaml:"agent" toml:"agent"`
	Pipeline    PipelineConfig           `yaml:"pipeline" toml:"pipeline"`
	Metrics     MetricsConfig            `yaml:"metrics" toml:"metrics"`
	Dedupe      DedupeConfig             `yaml:"dedupe" toml:"dedupe"`
	Channels    map[string]ChannelConfig `yaml:"channels" toml:"channels"`
	Logging     LoggingConfig            `yaml:"logging" toml:"logging"`
	WatchConfig bool                     `yaml:"watch_config" toml:"watch_config"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration.
// An empty secret disables bearer authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// AgentConfig selects and configures the reply drafting agent
type AgentConfig struct {
	Provider string `yaml:"provider" toml:"provider"`
	Model    string `yaml:"model" toml:"model"`
	APIKey   string `yaml:"api_key" toml:"api_key"`
	Project  string `yaml:"project" toml:"project"`   // Vertex AI project; used when api_key is empty
	Location string `yaml:"location" toml:"location"` // Vertex AI location
}

// PipelineConfig holds reply pipeline timeouts and defaults
type PipelineConfig struct {
	AgentTimeout    time.Duration `yaml:"-" toml:"-"`
	DeliveryTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	AgentTimeoutRaw    string `yaml:"agent_timeout" toml:"agent_timeout"`
	DeliveryTimeoutRaw string `yaml:"delivery_timeout" toml:"delivery_timeout"`

	OutboundSentiment string `yaml:"outbound_sentiment" toml:"outbound_sentiment"`
}

// MetricsConfig holds dashboard metric settings
type MetricsConfig struct {
	DueSoonWindow    time.Duration `yaml:"-" toml:"-"`
	DueSoonWindowRaw string        `yaml:"due_soon_window" toml:"due_soon_window"`
}

// DedupeConfig bounds the inbound external-id dedupe cache
type DedupeConfig struct {
	TTL        time.Duration `yaml:"-" toml:"-"`
	TTLRaw     string        `yaml:"ttl" toml:"ttl"`
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`
}

// ChannelConfig configures one outbound channel adapter
type ChannelConfig struct {
	Type        string `yaml:"type" toml:"type"`
	Endpoint    string `yaml:"endpoint" toml:"endpoint"`         // webhook URL, or Graph base URL override
	AccessToken string `yaml:"access_token" toml:"access_token"` // bearer token for webhook, graph and matrix
	PageID      string `yaml:"page_id" toml:"page_id"`
	APIVersion  string `yaml:"api_version" toml:"api_version"`
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	MaxAttempts int    `yaml:"max_attempts" toml:"max_attempts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.HasSuffix(strings.ToLower(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets the environment win over the file for deployment-specific values
func (c *Config) applyEnvOverrides() {
	if dbPath := os.Getenv("COVEN_INBOX_DB_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
}

func (c *Config) applyDefaults() {
	if c.Agent.Provider == "" {
		c.Agent.Provider = ProviderRules
	}
	if c.Agent.Provider == ProviderGemini && c.Agent.Model == "" {
		c.Agent.Model = DefaultGeminiModel
	}
	if c.Pipeline.AgentTimeout == 0 {
		c.Pipeline.AgentTimeout = DefaultAgentTimeout
	}
	if c.Pipeline.DeliveryTimeout == 0 {
		c.Pipeline.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if c.Pipeline.OutboundSentiment == "" {
		c.Pipeline.OutboundSentiment = "positive"
	}
	if c.Metrics.DueSoonWindow == 0 {
		c.Metrics.DueSoonWindow = DefaultDueSoonWindow
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = DefaultDedupeTTL
	}
	if c.Dedupe.MaxEntries == 0 {
		c.Dedupe.MaxEntries = DefaultDedupeEntries
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Agent.Provider {
	case "", ProviderRules:
	case ProviderGemini:
		if c.Agent.APIKey == "" && c.Agent.Project == "" {
			return fmt.Errorf("agent.api_key or agent.project is required for the gemini provider")
		}
	default:
		return fmt.Errorf("agent.provider %q is not one of rules, gemini", c.Agent.Provider)
	}

	switch c.Pipeline.OutboundSentiment {
	case "", "positive", "neutral", "negative":
	default:
		return fmt.Errorf("pipeline.outbound_sentiment %q is not one of positive, neutral, negative", c.Pipeline.OutboundSentiment)
	}

	if c.Dedupe.MaxEntries < 0 {
		return fmt.Errorf("dedupe.max_entries must not be negative")
	}

	for name, ch := range c.Channels {
		if err := ch.validate(); err != nil {
			return fmt.Errorf("channels.%s: %w", name, err)
		}
	}

	return nil
}

func (ch ChannelConfig) validate() error {
	switch ch.Type {
	case ChannelTypeWebhook:
		if ch.Endpoint == "" {
			return fmt.Errorf("endpoint is required for webhook channels")
		}
		u, err := url.Parse(ch.Endpoint)
		if err != nil {
			return fmt.Errorf("endpoint is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("endpoint must use http or https scheme")
		}
	case ChannelTypeGraph:
		if ch.PageID == "" {
			return fmt.Errorf("page_id is required for graph channels")
		}
		if ch.AccessToken == "" {
			return fmt.Errorf("access_token is required for graph channels")
		}
	case ChannelTypeMatrix:
		if ch.Homeserver == "" || ch.UserID == "" || ch.AccessToken == "" {
			return fmt.Errorf("homeserver, user_id and access_token are required for matrix channels")
		}
	case ChannelTypeLog:
	default:
		return fmt.Errorf("type %q is not one of webhook, graph, matrix, log", ch.Type)
	}

	if ch.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"pipeline.agent_timeout", cfg.Pipeline.AgentTimeoutRaw, &cfg.Pipeline.AgentTimeout},
		{"pipeline.delivery_timeout", cfg.Pipeline.DeliveryTimeoutRaw, &cfg.Pipeline.DeliveryTimeout},
		{"metrics.due_soon_window", cfg.Metrics.DueSoonWindowRaw, &cfg.Metrics.DueSoonWindow},
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
