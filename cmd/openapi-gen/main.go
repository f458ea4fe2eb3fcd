// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/cardhost/internal/discovery"
	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/registry"
	"github.com/sigil-dev/cardhost/internal/server"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	// Empty catalog and plugin manager plus no-op dispatch stubs so every
	// route is registered. Handlers are never invoked during spec generation.
	svc, err := server.NewServices(stubDispatcher{}, registry.New(), plugin.NewManager(), stubDiscoverer{}, nil)
	if err != nil {
		return nil, cherr.Errorf(cherr.CodeCLISetupFailure, "creating services: %w", err)
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, cherr.Errorf(cherr.CodeCLISetupFailure, "creating server: %w", err)
	}
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op service stubs for spec generation. Methods are never called.

type stubDispatcher struct{}

func (stubDispatcher) Execute(context.Context, dispatch.Request, plugin.Caller) dispatch.Result {
	return dispatch.Result{}
}

func (stubDispatcher) SaveCard(context.Context, string, map[string]any, plugin.Caller) dispatch.Result {
	return dispatch.Result{}
}

func (stubDispatcher) RunCardAction(context.Context, string, string, map[string]any, plugin.Caller) dispatch.Result {
	return dispatch.Result{}
}

func (stubDispatcher) RefreshCard(context.Context, string, plugin.Caller) dispatch.Result {
	return dispatch.Result{}
}

type stubDiscoverer struct{}

func (stubDiscoverer) Rebuild(context.Context) (*discovery.Report, error) { return nil, nil }
func (stubDiscoverer) ReloadPlugin(context.Context, string) (*discovery.PluginResult, error) {
	return nil, nil
}
