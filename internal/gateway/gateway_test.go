// ABOUTME: Tests for gateway construction, lifecycle and config hot reload
// ABOUTME: Uses injected deps, a temp SQLite store and temp config files

package gateway

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-inbox/internal/agent"
	"github.com/2389/coven-inbox/internal/channel"
	"github.com/2389/coven-inbox/internal/config"
	"github.com/2389/coven-inbox/internal/store"
)

// fakeDeliverer records deliveries and optionally fails them.
type fakeDeliverer struct {
	mu    sync.Mutex
	calls []delivery
	err   error
}

type delivery struct {
	recipientID string
	body        string
}

func (f *fakeDeliverer) Deliver(ctx context.Context, recipientID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, delivery{recipientID: recipientID, body: body})
	return f.err
}

func (f *fakeDeliverer) Calls() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.calls...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "inbox.db")},
		Agent:    config.AgentConfig{Provider: config.ProviderRules},
		Pipeline: config.PipelineConfig{
			AgentTimeout:      2 * time.Second,
			DeliveryTimeout:   2 * time.Second,
			OutboundSentiment: "positive",
		},
		Metrics: config.MetricsConfig{DueSoonWindow: 24 * time.Hour},
		Dedupe:  config.DedupeConfig{TTL: time.Minute, MaxEntries: 100},
	}
}

// newTestGateway builds a gateway on a temp SQLite store with a stub
// drafter and a fake website adapter.
func newTestGateway(t *testing.T, cfg *config.Config, drafter agent.Drafter) (*Gateway, *fakeDeliverer) {
	t.Helper()

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)

	website := &fakeDeliverer{}
	gw, err := NewWithDeps(context.Background(), cfg, "", Deps{
		Store:    s,
		Drafter:  drafter,
		Adapters: map[string]channel.Deliverer{"website": website},
	}, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})
	return gw, website
}

func TestNew_BuildsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Channels = map[string]config.ChannelConfig{
		"website": {Type: config.ChannelTypeWebhook, Endpoint: "https://example.com/reply"},
		"audit":   {Type: config.ChannelTypeLog},
	}

	gw, err := New(context.Background(), cfg, "", nil)
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	assert.Equal(t, []string{"audit", "website"}, gw.channels.Names())
	assert.Nil(t, gw.verifier, "no secret means no auth")
}

func TestNew_WeakJWTSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	_, err := New(context.Background(), cfg, "", nil)
	assert.Error(t, err)
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	cfg := testConfig(t)

	// Reserve a free port, then hand it to the gateway.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	cfg.Server.HTTPAddr = addr

	gw, err := New(context.Background(), cfg, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}


func writeConfig(t *testing.T, path, dbPath, channels string) {
	t.Helper()
	content := "server:\n  http_addr: \"127.0.0.1:0\"\ndatabase:\n  path: \"" + dbPath + "\"\n" + channels
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestReloadChannels(t *testing.T) {
	cfg := testConfig(t)
	gw, _ := newTestGateway(t, cfg, nil)

	path := filepath.Join(t.TempDir(), "inbox.yaml")
	gw.configPath = path

	writeConfig(t, path, cfg.Database.Path, "channels:\n  audit:\n    type: log\n  matrix-ops:\n    type: log\n")
	require.NoError(t, gw.reloadChannels())
	assert.Equal(t, []string{"audit", "matrix-ops"}, gw.channels.Names())

	// A broken file leaves the current adapters in place.
	writeConfig(t, path, cfg.Database.Path, "channels:\n  bad:\n    type: carrier-pigeon\n")
	assert.Error(t, gw.reloadChannels())
	assert.Equal(t, []string{"audit", "matrix-ops"}, gw.channels.Names())
}

func TestWatchConfig_ReloadsOnWrite(t *testing.T) {
	cfg := testConfig(t)
	gw, _ := newTestGateway(t, cfg, nil)

	path := filepath.Join(t.TempDir(), "inbox.yaml")
	writeConfig(t, path, cfg.Database.Path, "channels:\n  audit:\n    type: log\n")
	gw.configPath = path

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.watchConfig(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	updated := "server:\n  http_addr: \"127.0.0.1:0\"\ndatabase:\n  path: \"" + cfg.Database.Path + "\"\n" +
		"channels:\n  audit:\n    type: log\n  support:\n    type: log\n"

	// Rewrite on each tick until the watcher is registered and picks it up.
	// The tick is longer than the reload debounce so a reload can land between writes.
	require.Eventually(t, func() bool {
		names := gw.channels.Names()
		if len(names) == 2 && names[1] == "support" {
			return true
		}
		_ = os.WriteFile(path, []byte(updated), 0o600)
		return false
	}, 10*time.Second, 500*time.Millisecond)
}
