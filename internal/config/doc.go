// Package config handles configuration loading for coven-inbox.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_INBOX_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/inbox.yaml
//  3. ~/.config/coven/inbox.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML. Both
// formats share the same keys.
//
// # Environment Variable Expansion
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	auth:
//	  jwt_secret: "${COVEN_INBOX_JWT_SECRET}"
//
// Unset variables expand to the empty string. COVEN_INBOX_DB_PATH, when
// set, replaces database.path after parsing.
//
// # Duration Parsing
//
// Durations use time.ParseDuration syntax and must be positive:
//
//	pipeline:
//	  agent_timeout: "20s"
//	  delivery_timeout: "15s"
//	metrics:
//	  due_soon_window: "24h"
//
// # Channels
//
// Each entry under channels names an outbound channel and selects an adapter
// type: webhook, graph, matrix or log.
//
//	channels:
//	  website:
//	    type: webhook
//	    endpoint: "https://widget.example.com/api/reply"
//	  instagram:
//	    type: graph
//	    page_id: "1234"
//	    access_token: "${IG_TOKEN}"
//	    max_attempts: 3
package config
