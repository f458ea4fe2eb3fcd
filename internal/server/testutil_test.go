// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sigil-dev/cardhost/internal/discovery"
	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/registry"
	"github.com/sigil-dev/cardhost/internal/secrets"
	"github.com/sigil-dev/cardhost/internal/server"
	"github.com/sigil-dev/cardhost/internal/store"
	"github.com/sigil-dev/cardhost/internal/tools/apikeys"
	"github.com/sigil-dev/cardhost/internal/tools/google"
	"github.com/sigil-dev/cardhost/internal/tools/system"
)

// stack is a fully wired gateway backed by in-memory stores.
type stack struct {
	srv       *server.Server
	mgr       *plugin.Manager
	reg       *registry.Registry
	gw        *store.MemoryGatewayStore
	disc      *discovery.Service
	pluginDir string
}

func newFakeTokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	tokenSrv := newFakeTokenEndpoint(t)

	st := &stack{
		mgr:       plugin.NewManager(),
		reg:       registry.New(),
		gw:        store.NewMemoryGatewayStore(),
		pluginDir: t.TempDir(),
	}
	t.Cleanup(func() { _ = st.mgr.Close() })

	tools := []plugin.Plugin{
		google.New(google.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://127.0.0.1:18790/api/v1/oauth/google_tool/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: tokenSrv.URL + "/token",
			},
			HTTPClient: tokenSrv.Client(),
		}, st.gw.Tokens()),
		apikeys.New(secrets.NewMemoryStore()),
		system.New(func() (int, int) { return 3, 0 }),
	}
	for _, p := range tools {
		_, err := st.mgr.Load(ctx, p)
		require.NoError(t, err)
	}

	disc, err := discovery.New(discovery.Config{PluginsDir: st.pluginDir, Manager: st.mgr, Registry: st.reg})
	require.NoError(t, err)
	st.disc = disc
	_, err = disc.Rebuild(ctx)
	require.NoError(t, err)

	d, err := dispatch.New(dispatch.Config{Tools: st.mgr, Cards: st.reg, Executions: st.gw.Executions()})
	require.NoError(t, err)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	svc, err := server.NewServices(d, st.reg, st.mgr, disc, st.gw.Executions())
	require.NoError(t, err)
	srv.RegisterServices(svc)
	st.srv = srv
	return st
}

func (st *stack) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	st.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
