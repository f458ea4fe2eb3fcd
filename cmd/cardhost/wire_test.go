// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/cardhost/internal/config"
	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/secrets"
	"github.com/sigil-dev/cardhost/pkg/card"
)

func testGatewayConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Networking: config.NetworkingConfig{Listen: "127.0.0.1:0"},
		DataDir:    t.TempDir(),
		Storage:    config.StorageConfig{Backend: "memory"},
		MCP:        config.MCPConfig{Enabled: true},
	}
}

func wireTestGateway(t *testing.T) *Gateway {
	t.Helper()
	gw, err := WireGateway(context.Background(), testGatewayConfig(t), secrets.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func TestWireGateway(t *testing.T) {
	gw := wireTestGateway(t)

	assert.NotNil(t, gw.Server)
	assert.NotNil(t, gw.GatewayStore)
	assert.NotNil(t, gw.PluginManager)
	assert.NotNil(t, gw.Registry)
	assert.NotNil(t, gw.Discovery)
	assert.NotNil(t, gw.Dispatcher)
	assert.Nil(t, gw.Watcher)
	assert.Len(t, gw.PluginManager.List(), 3)
	assert.Positive(t, gw.Registry.Snapshot().Len())
}

func TestWireGateway_ServesCards(t *testing.T) {
	gw := wireTestGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cards?category=api_keys", nil)
	w := httptest.NewRecorder()
	gw.Server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Cards []card.Card `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	ids := make([]string, 0, len(body.Cards))
	for _, c := range body.Cards {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "openai_api_key")
}

func TestWireGateway_ValueCardSave(t *testing.T) {
	gw := wireTestGateway(t)

	post := func(values string) dispatch.Result {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cards/openai_api_key/save",
			strings.NewReader(`{"values":`+values+`}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		gw.Server.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res dispatch.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		return res
	}

	res := post(`{}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "api_key is required")

	res = post(`{"api_key":"sk-validlongkey"}`)
	assert.True(t, res.Success, res.Error)
}

func TestWireGateway_MCPMounted(t *testing.T) {
	gw := wireTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	w := httptest.NewRecorder()
	gw.Server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cardhost")
}

func TestWireGateway_UnknownStorageBackend(t *testing.T) {
	cfg := testGatewayConfig(t)
	cfg.Storage.Backend = "cassandra"
	_, err := WireGateway(context.Background(), cfg, secrets.NewMemoryStore())
	assert.Error(t, err)
}

func TestGateway_GracefulShutdown(t *testing.T) {
	gw := wireTestGateway(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, gw.Start(ctx))
}
