// ABOUTME: Selects the configured Drafter implementation

package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/coven-inbox/internal/config"
)

// New builds the Drafter named by cfg.Provider.
func New(ctx context.Context, cfg config.AgentConfig, logger *slog.Logger) (Drafter, error) {
	switch cfg.Provider {
	case "", config.ProviderRules:
		return NewRuleDrafter(), nil
	case config.ProviderGemini:
		return NewGeminiDrafter(ctx, GeminiConfig{
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			Project:  cfg.Project,
			Location: cfg.Location,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}
}
