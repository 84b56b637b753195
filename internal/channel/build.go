// ABOUTME: Builds channel adapters from configuration
// ABOUTME: Maps each configured channel type to its Deliverer implementation

package channel

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/2389/coven-inbox/internal/config"
)

// Build constructs one adapter per configured channel. A single invalid entry
// fails the whole build so a reload never leaves a partial registry.
func Build(channels map[string]config.ChannelConfig, client *http.Client, logger *slog.Logger) (map[string]Deliverer, error) {
	adapters := make(map[string]Deliverer, len(channels))

	for name, ch := range channels {
		var (
			d   Deliverer
			err error
		)

		switch ch.Type {
		case config.ChannelTypeWebhook:
			d, err = NewWebhookAdapter(name, ch.Endpoint, ch.AccessToken, client, logger)
		case config.ChannelTypeGraph:
			d, err = NewGraphAdapter(GraphConfig{
				Channel:     name,
				BaseURL:     ch.Endpoint,
				APIVersion:  ch.APIVersion,
				PageID:      ch.PageID,
				AccessToken: ch.AccessToken,
				MaxAttempts: ch.MaxAttempts,
			}, client, logger)
		case config.ChannelTypeMatrix:
			d, err = NewMatrixAdapter(name, ch.Homeserver, ch.UserID, ch.AccessToken, logger)
		case config.ChannelTypeLog:
			d = NewLogAdapter(name, logger)
		default:
			err = fmt.Errorf("unsupported channel type %q", ch.Type)
		}

		if err != nil {
			return nil, fmt.Errorf("building channel %s: %w", name, err)
		}
		adapters[name] = d
	}

	return adapters, nil
}
