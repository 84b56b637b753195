// ABOUTME: Tests for CLI helpers: config paths, token flags, init output, seeding and logging
// ABOUTME: Exercises the command internals without starting a server

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-inbox/internal/config"
	"github.com/2389/coven-inbox/internal/inbox"
	"github.com/2389/coven-inbox/internal/metrics"
	"github.com/2389/coven-inbox/internal/store"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("COVEN_INBOX_CONFIG", "/etc/coven/inbox.toml")
	assert.Equal(t, "/etc/coven/inbox.toml", getConfigPath())

	t.Setenv("COVEN_INBOX_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "coven", "inbox.yaml"), getConfigPath())
}

func TestParseTokenArgs(t *testing.T) {
	got, err := parseTokenArgs([]string{"--subject", "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.subject)
	assert.Equal(t, defaultTokenTTL, got.ttl)

	got, err = parseTokenArgs([]string{"--subject=bob", "--ttl=2h"})
	require.NoError(t, err)
	assert.Equal(t, "bob", got.subject)
	assert.Equal(t, 2*time.Hour, got.ttl)

	for _, args := range [][]string{
		nil,
		{"--subject"},
		{"--subject", "   "},
		{"--ttl", "forever", "--subject", "x"},
		{"--name", "x"},
		{"alice"},
	} {
		_, err := parseTokenArgs(args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestRenderConfig_Loads(t *testing.T) {
	secret, err := generateSecret()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "inbox.yaml")
	content := renderConfig(initAnswers{
		HTTPAddr:  "localhost:8080",
		DBPath:    filepath.Join(dir, "inbox.db"),
		JWTSecret: secret,
		Provider:  "rules",
		LogLevel:  "debug",
		LogFormat: "json",
	})
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, secret, cfg.Auth.JWTSecret)
	assert.Len(t, cfg.Channels, 4)
	assert.Equal(t, config.ChannelTypeLog, cfg.Channels["website"].Type)
	assert.True(t, cfg.WatchConfig)
	assert.Equal(t, 20*time.Second, cfg.Pipeline.AgentTimeout)
}

func TestSeedDemo(t *testing.T) {
	s := store.NewMockStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	counts, err := seedDemo(ctx, s, now)
	require.NoError(t, err)
	assert.Equal(t, seedCounts{contacts: 4, messages: 9, deals: 3, calls: 2, tasks: 3}, counts)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)

	threads := inbox.BuildThreads(snap.Messages, snap.Contacts)
	require.Len(t, threads, 4)
	assert.Equal(t, "t1", threads[0].ThreadID, "most recent thread first")

	m := metrics.Compute(snap, now, metrics.Options{})
	assert.Equal(t, 3, m.OpenConversations, "t3 is resolved")
	assert.Len(t, m.TasksDueSoon, 1)

	_, err = seedDemo(ctx, s, now)
	assert.ErrorIs(t, err, errAlreadySeeded)
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.With("component", "gateway").WithGroup("req").Info("served", "status", 200)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "served")
	assert.Contains(t, out, " component=")
	assert.NotContains(t, out, "req.component=")
	assert.Contains(t, out, "req.status=")
	assert.Contains(t, out, "200")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
