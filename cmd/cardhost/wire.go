// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sigil-dev/cardhost/internal/config"
	"github.com/sigil-dev/cardhost/internal/discovery"
	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/mcpbridge"
	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/registry"
	"github.com/sigil-dev/cardhost/internal/secrets"
	"github.com/sigil-dev/cardhost/internal/server"
	"github.com/sigil-dev/cardhost/internal/store"
	_ "github.com/sigil-dev/cardhost/internal/store/sqlite" // register sqlite backend
	"github.com/sigil-dev/cardhost/internal/tools/apikeys"
	"github.com/sigil-dev/cardhost/internal/tools/google"
	"github.com/sigil-dev/cardhost/internal/tools/system"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server        *server.Server
	GatewayStore  store.GatewayStore
	PluginManager *plugin.Manager
	Registry      *registry.Registry
	Discovery     *discovery.Service
	Dispatcher    *dispatch.Dispatcher
	Watcher       *discovery.Watcher // nil when plugins.watch is off
}

// builtinTools returns the compiled-in plugins.
func builtinTools(cfg *config.Config, gs store.GatewayStore, sec secrets.Store, mgr *plugin.Manager) []plugin.Plugin {
	probe := func() (loaded, failed int) {
		for _, inst := range mgr.List() {
			switch inst.State() {
			case plugin.StateRunning:
				loaded++
			case plugin.StateError:
				failed++
			}
		}
		return loaded, failed
	}

	return []plugin.Plugin{
		google.New(google.Config{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  cfg.OAuth.Google.RedirectURL,
			Scopes:       cfg.OAuth.Google.Scopes,
		}, gs.Tokens()),
		apikeys.New(sec),
		system.New(probe),
	}
}

// WireGateway creates all subsystems and wires them together.
func WireGateway(ctx context.Context, cfg *config.Config, sec secrets.Store) (*Gateway, error) {
	// Ensure the data directory exists.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, cherr.Errorf(cherr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Gateway store (execution log, OAuth tokens).
	gs, err := store.NewGatewayStore(&store.StorageConfig{Backend: cfg.Storage.Backend}, cfg.DataDir)
	if err != nil {
		return nil, cherr.Errorf(cherr.CodeCLISetupFailure, "creating gateway store: %w", err)
	}
	if cfg.Storage.Backend == "" || cfg.Storage.Backend == "sqlite" {
		// The database holds OAuth refresh tokens.
		config.WarnInsecureFile(filepath.Join(cfg.DataDir, "gateway.db"), "gateway database")
	}

	gw := &Gateway{
		GatewayStore:  gs,
		PluginManager: plugin.NewManager(),
		Registry:      registry.New(),
	}
	fail := func(err error) (*Gateway, error) {
		_ = gw.Close()
		return nil, err
	}

	// 2. Compiled-in tools. A tool that fails to load is reported and skipped.
	for _, p := range builtinTools(cfg, gs, sec, gw.PluginManager) {
		if _, err := gw.PluginManager.Load(ctx, p); err != nil {
			slog.Error("plugin failed to load", "plugin", p.Name(), "error", err)
		}
	}

	// 3. Card discovery and the initial registry snapshot.
	gw.Discovery, err = discovery.New(discovery.Config{
		PluginsDir: cfg.PluginsDir(),
		Manager:    gw.PluginManager,
		Registry:   gw.Registry,
	})
	if err != nil {
		return fail(cherr.Errorf(cherr.CodeCLISetupFailure, "creating discovery service: %w", err))
	}
	report, err := gw.Discovery.Rebuild(ctx)
	if err != nil {
		return fail(cherr.Errorf(cherr.CodeCLISetupFailure, "discovering cards: %w", err))
	}
	for _, res := range report.Plugins {
		if res.Err != nil {
			slog.Warn("plugin cards rejected", "plugin", res.Plugin, "path", res.Path, "error", res.Err)
		}
	}
	if cfg.Plugins.Watch {
		gw.Watcher = discovery.NewWatcher(cfg.PluginsDir(), cfg.Plugins.WatchDebounce, gw.Discovery)
	}

	// 4. Dispatcher.
	gw.Dispatcher, err = dispatch.New(dispatch.Config{
		Tools:      gw.PluginManager,
		Cards:      gw.Registry,
		Executions: gs.Executions(),
	})
	if err != nil {
		return fail(cherr.Errorf(cherr.CodeCLISetupFailure, "creating dispatcher: %w", err))
	}

	// 5. HTTP server, with the MCP bridge mounted when enabled.
	srvCfg := server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
	}
	if cfg.MCP.Enabled {
		srvCfg.MCPHandler = mcpbridge.New(gw.Registry, gw.Dispatcher, version).Handler()
	}
	gw.Server, err = server.New(srvCfg)
	if err != nil {
		return fail(cherr.Errorf(cherr.CodeCLISetupFailure, "creating server: %w", err))
	}
	services, err := server.NewServices(gw.Dispatcher, gw.Registry, gw.PluginManager, gw.Discovery, gs.Executions())
	if err != nil {
		return fail(cherr.Errorf(cherr.CodeCLISetupFailure, "creating services: %w", err))
	}
	gw.Server.RegisterServices(services)

	return gw, nil
}

// Start runs the watcher and HTTP server and blocks until the context is
// cancelled.
func (gw *Gateway) Start(ctx context.Context) error {
	if gw.Watcher != nil {
		if err := gw.Watcher.Start(ctx); err != nil {
			// Hot reload is a convenience; the gateway still serves.
			slog.Warn("plugin watcher unavailable", "error", err)
		}
	}
	return gw.Server.Start(ctx)
}

// Close releases all resources held by the gateway.
func (gw *Gateway) Close() error {
	var errs []error
	if gw.Watcher != nil {
		errs = append(errs, gw.Watcher.Stop())
	}
	if gw.PluginManager != nil {
		errs = append(errs, gw.PluginManager.Close())
	}
	if gw.GatewayStore != nil {
		errs = append(errs, gw.GatewayStore.Close())
	}
	return errors.Join(errs...)
}
