// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the companion server's components into a single
// runnable process: config, event bus, session/connection/queue managers,
// the security policy, the broadcaster, and the orchestrator that ties them
// together behind the HTTP/WebSocket surface.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/aicompanion/internal/api"
	"github.com/wingedpig/aicompanion/internal/broadcast"
	"github.com/wingedpig/aicompanion/internal/config"
	"github.com/wingedpig/aicompanion/internal/connection"
	"github.com/wingedpig/aicompanion/internal/events"
	"github.com/wingedpig/aicompanion/internal/orchestrator"
	"github.com/wingedpig/aicompanion/internal/push"
	"github.com/wingedpig/aicompanion/internal/queue"
	"github.com/wingedpig/aicompanion/internal/runner"
	"github.com/wingedpig/aicompanion/internal/security"
	"github.com/wingedpig/aicompanion/internal/session"
	"github.com/wingedpig/aicompanion/internal/watcher"
)

// App is the main application container.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	eventBus    events.EventBus
	sessions    *session.Manager
	connections *connection.Manager
	queues      *queue.Manager
	policy      *security.Policy
	broadcaster *broadcast.Broadcaster
	orch        *orchestrator.Orchestrator
	apiServer   *api.Server
	cfgWatcher  *watcher.ConfigWatcher

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string
}

// New creates a new App instance, loading configuration but not yet
// starting any components.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		done:       make(chan struct{}),
	}

	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	app.config = cfg
	return app, nil
}

// Initialize sets up all components from the loaded configuration.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.HistoryMaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.HistoryMaxAge, time.Hour),
	})

	app.sessions = session.NewManager(session.Config{
		SafeRoot:                   cfg.Worktree.SafeRoot,
		MaxSessions:                cfg.Sessions.MaxSessions,
		SessionTimeout:             config.ParseDuration(cfg.Sessions.SessionTimeout, 30*time.Minute),
		BackgroundedSessionTimeout: config.ParseDuration(cfg.Sessions.BackgroundedSessionTimeout, 24*time.Hour),
		SessionWarningTime:         config.ParseDuration(cfg.Sessions.SessionWarningTime, 5*time.Minute),
		MinTimeoutCheckInterval:    config.ParseDuration(cfg.Sessions.MinTimeoutCheckInterval, 30*time.Second),
	}, app.eventBus)

	app.connections = connection.NewManager(connection.Config{
		HealthCheckInterval: config.ParseDuration(cfg.Connection.HealthCheckInterval, 30*time.Second),
		ReconnectionWindow:  config.ParseDuration(cfg.Connection.ReconnectionWindow, 2*time.Minute),
	})

	app.queues = queue.NewManager(queue.Config{
		MaxEntries: 256,
		MaxAge:     time.Hour,
	})

	var notifier push.Notifier = push.LoggingNotifier{}
	app.broadcaster = broadcast.New(app.connections, app.queues, notifier)

	queues := app.queues
	conns := app.connections
	app.eventBus.Subscribe(events.EventSessionClosed, func(ctx context.Context, ev events.Event) error {
		queues.Evict(ev.Session)
		conns.UnsubscribeAll(ev.Session)
		return nil
	})
	app.eventBus.Subscribe(events.EventSessionCleaned, func(ctx context.Context, ev events.Event) error {
		queues.Evict(ev.Session)
		conns.UnsubscribeAll(ev.Session)
		return nil
	})

	app.policy = security.New(security.NewConfig(cfg.Security.Preset, security.Config{
		SafeDirectories:     cfg.Security.SafeDirectories,
		BlockedCommands:     cfg.Security.BlockedCommands,
		ReadOnlyMode:        cfg.Security.ReadOnlyMode,
		RequireConfirmation: cfg.Security.RequireConfirmation,
		EnableAudit:         cfg.Security.EnableAudit,
		MaxFileSize:         cfg.Security.MaxFileSizeBytes,
		AuditCapacity:        cfg.Security.AuditCapacity,
	}))

	app.orch = orchestrator.New(app.policy, app.sessions, app.broadcaster, orchestrator.AssistantConfig{
		Binary:          cfg.Assistant.Binary,
		PermissionMode:  cfg.Assistant.PermissionMode,
		AllowedTools:    cfg.Assistant.AllowedTools,
		DisallowedTools: cfg.Assistant.DisallowedTools,
		SkipPermissions: cfg.Assistant.SkipPermissions,
		UsePTY:          cfg.Assistant.UsePTY,
	})

	app.apiServer = api.NewServer(api.ServerConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		TLSCert: cfg.Server.TLSCert,
		TLSKey:  cfg.Server.TLSKey,
	}, api.Dependencies{
		EventBus:     app.eventBus,
		Sessions:     app.sessions,
		Connections:  app.connections,
		Broadcaster:  app.broadcaster,
		Orchestrator: app.orch,
		Version:      app.version,
	})

	if app.configPath != "" {
		cw, err := watcher.NewConfigWatcher(app.configPath, app.policy, cfg)
		if err != nil {
			log.Printf("warning: config watcher disabled: %v", err)
		} else {
			app.cfgWatcher = cw
		}
	}

	return nil
}

// Start starts all components.
func (app *App) Start(ctx context.Context) error {
	if err := runner.CheckAvailability(ctx, app.config.Assistant.Binary); err != nil {
		log.Printf("warning: assistant binary unavailable: %v", err)
	}

	go func() {
		log.Printf("starting companion server on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("companion API server error: %v", err)
		}
	}()

	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("context cancelled, shutting down...")
	case <-app.done:
		log.Printf("shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down API server: %v", err)
		}
	}
	if app.cfgWatcher != nil {
		app.cfgWatcher.Close()
	}
	if app.sessions != nil {
		app.sessions.Shutdown()
	}
	if app.connections != nil {
		app.connections.Shutdown()
	}
	if app.eventBus != nil {
		app.eventBus.Close()
	}

	return nil
}

// Stop requests a graceful shutdown from outside the run loop.
func (app *App) Stop() {
	app.stopOnce.Do(func() { close(app.done) })
}
