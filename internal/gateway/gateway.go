// ABOUTME: Gateway orchestrator that wires the inbox components behind an HTTP server
// ABOUTME: Manages store, channel registry, conversation service and listener lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/coven-inbox/internal/agent"
	"github.com/2389/coven-inbox/internal/auth"
	"github.com/2389/coven-inbox/internal/channel"
	"github.com/2389/coven-inbox/internal/config"
	"github.com/2389/coven-inbox/internal/conversation"
	"github.com/2389/coven-inbox/internal/dedupe"
	"github.com/2389/coven-inbox/internal/store"
	"github.com/2389/coven-inbox/internal/tasks"
)

// Gateway owns every long-lived inbox component and serves the HTTP API.
type Gateway struct {
	config     *config.Config
	configPath string
	logger     *slog.Logger

	store        store.Store
	channels     *channel.Registry
	conversation *conversation.Service
	tasks        *tasks.Ledger
	broadcaster  *conversation.EventBroadcaster
	dedupe       *dedupe.Cache
	verifier     *auth.JWTVerifier

	// httpClient is shared by the HTTP channel adapters, including after reloads
	httpClient *http.Client

	httpServer  *http.Server
	tsnetServer *tsnet.Server

	now func() time.Time
}

// Deps are the collaborators New would otherwise build from config.
// Tests inject fakes here; nil fields are built from config.
type Deps struct {
	Store    store.Store
	Drafter  agent.Drafter
	Adapters map[string]channel.Deliverer
}

// New builds a Gateway from cfg. configPath is watched for channel changes
// when cfg.WatchConfig is set.
func New(ctx context.Context, cfg *config.Config, configPath string, logger *slog.Logger) (*Gateway, error) {
	return NewWithDeps(ctx, cfg, configPath, Deps{}, logger)
}

// NewWithDeps builds a Gateway, using deps where provided.
func NewWithDeps(ctx context.Context, cfg *config.Config, configPath string, deps Deps, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config:     cfg,
		configPath: configPath,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Pipeline.DeliveryTimeout},
		now:        time.Now,
	}

	s := deps.Store
	if s == nil {
		var err error
		s, err = initStore(cfg)
		if err != nil {
			return nil, err
		}
	}
	gw.store = s

	drafter := deps.Drafter
	if drafter == nil {
		var err error
		drafter, err = agent.New(ctx, cfg.Agent, logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("creating agent: %w", err)
		}
	}

	adapters := deps.Adapters
	if adapters == nil {
		var err error
		adapters, err = channel.Build(cfg.Channels, gw.httpClient, logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("building channels: %w", err)
		}
	}
	gw.channels = channel.NewRegistry(logger)
	gw.channels.Replace(adapters)

	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		gw.verifier = verifier
	} else {
		logger.Warn("auth disabled - no jwt_secret configured")
	}

	gw.broadcaster = conversation.NewEventBroadcaster(logger)
	gw.dedupe = dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxEntries, cfg.Dedupe.TTL/2)
	gw.conversation = conversation.New(s, gw.channels, drafter, conversation.Options{
		AgentTimeout:       cfg.Pipeline.AgentTimeout,
		DeliveryTimeout:    cfg.Pipeline.DeliveryTimeout,
		OutboundClassifier: conversation.FixedClassifier{Sentiment: store.Sentiment(cfg.Pipeline.OutboundSentiment)},
		Broadcaster:        gw.broadcaster,
		Dedupe:             gw.dedupe,
		Now:                func() time.Time { return gw.now() },
	}, logger)
	gw.tasks = tasks.New(s, logger)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("gateway initialized", "channels", gw.channels.Names(), "agent", cfg.Agent.Provider)
	return gw, nil
}

// initStore opens the SQLite store named by config.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// Handler returns the HTTP API with access logging and, when configured,
// bearer authentication on everything but /health.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/dashboard", g.handleDashboard)
	mux.HandleFunc("/messages", g.handleMessages)
	mux.HandleFunc("/tasks", g.handleTasks)
	mux.HandleFunc("/threads", g.handleThreads)
	mux.HandleFunc("/inbound", g.handleInbound)
	mux.HandleFunc("/events", g.handleEvents)

	var h http.Handler = mux
	if g.verifier != nil {
		h = auth.HTTPAuthMiddleware(g.verifier, g.logger, "/health")(h)
	}
	return accessLog(g.logger)(h)
}

// Run starts the HTTP server and, when enabled, the config watcher. It blocks
// until ctx is canceled or a component fails, then shuts everything down.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if g.config.WatchConfig && g.configPath != "" {
		grp.Go(func() error {
			return g.watchConfig(gctx)
		})
	}

	grp.Go(func() error {
		<-gctx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return grp.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The run context is already canceled by the time this is called.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// setupListener creates the HTTP listener on the tailnet or a TCP address.
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "coven-inbox", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80, or on :443
// through Funnel when public access is enabled.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	var ln net.Listener
	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err = g.tsnetServer.ListenFunnel("tcp", ":443")
	} else {
		ln, err = g.tsnetServer.Listen("tcp", ":80")
	}
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases every component.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	// Event streams never go idle on their own; ending them first lets the
	// HTTP server drain.
	g.broadcaster.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	g.dedupe.Close()
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
