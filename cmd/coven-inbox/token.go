// ABOUTME: token command that mints operator API tokens
// ABOUTME: Signs with the configured jwt_secret; supports --subject and --ttl

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2389/coven-inbox/internal/auth"
	"github.com/2389/coven-inbox/internal/config"
)

const defaultTokenTTL = 30 * 24 * time.Hour

type tokenArgs struct {
	subject string
	ttl     time.Duration
}

// parseTokenArgs accepts "--flag value" and "--flag=value" forms.
func parseTokenArgs(args []string) (*tokenArgs, error) {
	out := &tokenArgs{ttl: defaultTokenTTL}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")

		switch name {
		case "--subject", "-s", "--ttl":
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}

		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", name)
			}
			value = args[i+1]
			i++
		}

		if name == "--ttl" {
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("--ttl must be a positive duration, got %q", value)
			}
			out.ttl = d
			continue
		}
		out.subject = strings.TrimSpace(value)
	}

	if out.subject == "" {
		return nil, errors.New("--subject flag is required")
	}
	if len(out.subject) > 100 {
		return nil, errors.New("subject exceeds maximum length of 100 characters")
	}
	return out, nil
}

func runToken(args []string) error {
	parsed, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s", configPath)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(parsed.subject, parsed.ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}
