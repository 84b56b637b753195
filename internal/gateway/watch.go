// ABOUTME: Config file watcher that hot-reloads channel adapters
// ABOUTME: Uses fsnotify on the config directory with a short debounce

package gateway

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/2389/coven-inbox/internal/channel"
	"github.com/2389/coven-inbox/internal/config"
)

// reloadDebounce coalesces the bursts of events editors produce on save.
const reloadDebounce = 250 * time.Millisecond

// watchConfig reloads channel adapters whenever the config file changes.
// It watches the parent directory so atomic rename-on-save is seen.
func (g *Gateway) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(g.configPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching config dir: %w", err)
	}

	log := g.logger.With("component", "config-watcher", "path", target)
	log.Info("watching config for channel changes")

	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			debounce.Reset(reloadDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "error", err)

		case <-debounce.C:
			if err := g.reloadChannels(); err != nil {
				log.Error("config reload failed, keeping previous channels", "error", err)
			}
		}
	}
}

// reloadChannels re-reads the config file and swaps in freshly built adapters.
// On any error the current registry is left untouched.
func (g *Gateway) reloadChannels() error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}

	adapters, err := channel.Build(cfg.Channels, g.httpClient, g.logger)
	if err != nil {
		return err
	}

	g.channels.Replace(adapters)
	return nil
}
