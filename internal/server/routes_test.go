// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/discovery"
	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/registry"
	"github.com/sigil-dev/cardhost/internal/server"
	"github.com/sigil-dev/cardhost/internal/store"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

type cardsBody struct {
	Success bool        `json:"success"`
	Cards   []card.Card `json:"cards"`
}

func cardIDs(cards []card.Card) []string {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestRoutes_ListCards(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/cards", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[cardsBody](t, w)
	assert.True(t, body.Success)
	ids := cardIDs(body.Cards)
	assert.Equal(t, "google_oauth", ids[0])
	assert.Contains(t, ids, "openai_api_key")
	assert.Contains(t, ids, "system_management")
}

func TestRoutes_ListCards_ByCategory(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/cards?category=api_keys", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[cardsBody](t, w)
	assert.Equal(t, []string{"openai_api_key", "openai_api_key_status", "openai_api_key_manage"}, cardIDs(body.Cards))
}

func TestRoutes_ListCards_UnknownCategoryIsEmpty(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/cards?category=nope", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cards":[]`)
}

func TestRoutes_Categories(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/cards/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Success    bool            `json:"success"`
		Categories []card.Category `json:"categories"`
	}](t, w)
	assert.True(t, body.Success)
	require.GreaterOrEqual(t, len(body.Categories), 2)
	assert.Equal(t, card.Category{ID: "authentication", Name: "Authentication", Icon: "🔐"}, body.Categories[0])
	assert.Equal(t, "api_keys", body.Categories[1].ID)
	assert.Equal(t, "🔑", body.Categories[1].Icon)
}

func TestRoutes_GetCard(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/cards/google_oauth", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Success bool      `json:"success"`
		Card    card.Card `json:"card"`
	}](t, w)
	assert.Equal(t, "google_oauth", body.Card.ID)
	assert.Equal(t, card.TypeAction, body.Card.Type)
	for _, a := range body.Card.Actions {
		assert.Equal(t, "google_tool", a.ToolCall.ToolName, "tool name defaults to the owning plugin")
	}
}

func TestRoutes_GetCard_NotFound(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/cards/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `card \"ghost\" not found`)
}

func TestRoutes_ViewCard(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/cards/google_oauth/view?status=authorized", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		View card.View `json:"view"`
	}](t, w)
	assert.Equal(t, card.ViewButtons, body.View.Kind)
	visible := map[string]bool{}
	for _, b := range body.View.Buttons {
		visible[b.ID] = b.Visible
	}
	assert.False(t, visible["authorize"], "authorize is hidden once authorized")
	assert.True(t, visible["revoke"])
}

func TestRoutes_ViewCard_ValueForm(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/cards/openai_api_key/view", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		View card.View `json:"view"`
	}](t, w)
	assert.Equal(t, card.ViewForm, body.View.Kind)
	require.NotNil(t, body.View.Form)
	assert.Equal(t, "api_key_management", body.View.Form.Submit.Capability)
}

func TestRoutes_ExecuteAuthorize(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/tools/execute", map[string]any{
		"tool_name":  "google_tool",
		"capability": "oauth2_management",
		"action":     "authorize",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[dispatch.Result](t, w)
	assert.True(t, res.Success, res.Error)
	authURL, ok := res.Data["auth_url"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(authURL, "https://"), authURL)
}

func TestRoutes_ExecuteFailuresAreEnvelopes(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		wantErr string
	}{
		{
			name:    "unknown capability",
			body:    map[string]any{"tool_name": "google_tool", "capability": "nonexistent", "action": "authorize"},
			wantErr: "capability not found",
		},
		{
			name:    "unknown tool",
			body:    map[string]any{"tool_name": "ghost", "capability": "x", "action": "y"},
			wantErr: "tool not found",
		},
		{
			name:    "empty request",
			body:    map[string]any{},
			wantErr: "tool not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStack(t)
			w := st.do(t, http.MethodPost, "/api/v1/tools/execute", tt.body)
			require.Equal(t, http.StatusOK, w.Code)

			res := decode[dispatch.Result](t, w)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestRoutes_SaveCard(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/cards/openai_api_key/save", map[string]any{"values": map[string]any{}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[dispatch.Result](t, w)
	assert.False(t, res.Success)
	assert.Equal(t, "api_key is required", res.Error)

	w = st.do(t, http.MethodPost, "/api/v1/cards/openai_api_key/save",
		map[string]any{"values": map[string]any{"api_key": "sk-validlongkey"}})
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[dispatch.Result](t, w)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "openai_tool", res.ToolName)
}

func TestRoutes_SaveCard_UnknownCard(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/cards/ghost/save", map[string]any{"values": map[string]any{"a": 1}})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dispatch.Result](t, w)
	assert.False(t, res.Success)
	assert.Equal(t, "card not found", res.Error)
}

func TestRoutes_CardAction(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/cards/google_oauth/actions/authorize", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dispatch.Result](t, w)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "authorize", res.Action)

	w = st.do(t, http.MethodPost, "/api/v1/cards/google_oauth/actions/ghost", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[dispatch.Result](t, w)
	assert.Equal(t, "action not found", res.Error)
}

func TestRoutes_CardBodiesCarryIDs(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/cards/openai_api_key/save", map[string]any{
		"card_id":         "openai_api_key",
		"values":          map[string]any{"api_key": "sk-validlongkey"},
		"caller_identity": "alice",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[dispatch.Result](t, w)
	assert.True(t, res.Success, res.Error)

	w = st.do(t, http.MethodPost, "/api/v1/cards/google_oauth/actions/authorize", map[string]any{
		"card_id":         "google_oauth",
		"action_id":       "authorize",
		"caller_identity": "alice",
		"parameters":      map[string]any{},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decode[dispatch.Result](t, w)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "authorize", res.Action)
}

func TestRoutes_CardBodyIDMismatch(t *testing.T) {
	st := newStack(t)

	tests := []struct {
		name string
		path string
		body map[string]any
		want string
	}{
		{"save card_id", "/api/v1/cards/openai_api_key/save",
			map[string]any{"card_id": "other", "values": map[string]any{"api_key": "sk-validlongkey"}}, "card_id"},
		{"action card_id", "/api/v1/cards/google_oauth/actions/authorize",
			map[string]any{"card_id": "other"}, "card_id"},
		{"action action_id", "/api/v1/cards/google_oauth/actions/authorize",
			map[string]any{"card_id": "google_oauth", "action_id": "revoke"}, "action_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := st.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			res := decode[dispatch.Result](t, w)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.want)
			assert.Contains(t, res.Error, "does not match")
			assert.Equal(t, string(cherr.CodeServerRequestInvalid), res.ErrorCode)
		})
	}
}

func TestRoutes_RefreshCard(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/cards/google_oauth/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[dispatch.Result](t, w)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "not_authorized", res.Data["status"])
}

func TestRoutes_CallerIdentity(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		headers []string
		want    string
	}{
		{"body wins", map[string]any{"caller_identity": "alice"}, []string{server.CallerHeader, "bob"}, "alice"},
		{"header", map[string]any{}, []string{server.CallerHeader, "bob"}, "bob"},
		{"anonymous", map[string]any{}, nil, "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStack(t)
			body := map[string]any{"tool_name": "system", "capability": "health_check", "action": "ping"}
			for k, v := range tt.body {
				body[k] = v
			}
			w := st.do(t, http.MethodPost, "/api/v1/tools/execute", body, tt.headers...)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			recs, err := st.gw.Executions().Query(context.Background(), store.ExecutionFilter{Tool: "system"})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.want, recs[0].Caller)
		})
	}
}

func TestRoutes_OAuthCallback(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/tools/execute", map[string]any{
		"tool_name": "google_tool", "capability": "oauth2_management", "action": "authorize",
		"caller_identity": "alice",
	})
	res := decode[dispatch.Result](t, w)
	require.True(t, res.Success, res.Error)
	state := res.Data["state"].(string)

	q := url.Values{"code": {"good-code"}, "state": {state}}
	w = st.do(t, http.MethodGet, "/api/v1/oauth/google_tool/callback?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decode[dispatch.Result](t, w)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "authorized", res.Data["status"])
	assert.Equal(t, "alice", res.Data["subject"])

	_, err := st.gw.Tokens().Get(context.Background(), "google_tool", "alice")
	assert.NoError(t, err)
}

func TestRoutes_OAuthCallback_Denied(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodGet, "/api/v1/oauth/google_tool/callback?error=access_denied", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dispatch.Result](t, w)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "access_denied")
	assert.Equal(t, string(cherr.CodeToolAuthForbidden), res.ErrorCode)
}

func TestRoutes_ListPlugins(t *testing.T) {
	st := newStack(t)
	dir := filepath.Join(st.pluginDir, "weather")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"),
		[]byte("name: weather\nversion: 1.0.0\ncapabilities:\n  - name: status_check\n"), 0o644))
	_, err := st.disc.Rebuild(context.Background())
	require.NoError(t, err)

	w := st.do(t, http.MethodGet, "/api/v1/plugins", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[struct {
		Plugins []server.PluginSummary `json:"plugins"`
	}](t, w)
	byName := map[string]server.PluginSummary{}
	for _, p := range body.Plugins {
		byName[p.Name] = p
	}
	assert.Equal(t, "running", byName["google_tool"].State)
	assert.Equal(t, 1, byName["google_tool"].Cards)
	assert.Equal(t, []string{"oauth2_management"}, byName["google_tool"].Capabilities)
	assert.Equal(t, 3, byName["openai_tool"].Cards)
	assert.Equal(t, server.StateUnloaded, byName["weather"].State)
	assert.Equal(t, 2, byName["weather"].Cards)
}

func TestRoutes_RebuildAndReload(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/plugins/reload", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rebuilt := decode[struct {
		Registered int                   `json:"registered"`
		Plugins    []server.PluginReport `json:"plugins"`
	}](t, w)
	assert.Equal(t, st.reg.Snapshot().Len(), rebuilt.Registered)
	assert.Len(t, rebuilt.Plugins, 3)

	w = st.do(t, http.MethodPost, "/api/v1/plugins/openai_tool/reload", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[server.PluginReport](t, w)
	assert.Equal(t, "embedded", report.Source)
	assert.Len(t, report.Cards, 3)
	assert.Empty(t, report.Error)
}

func TestRoutes_ReloadPlugin_Rejected(t *testing.T) {
	st := newStack(t)
	dir := filepath.Join(st.pluginDir, "openai_tool")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cards.yaml"),
		[]byte("cards:\n  - card_id: broken\n"), 0o644))

	w := st.do(t, http.MethodPost, "/api/v1/plugins/openai_tool/reload", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[server.PluginReport](t, w)
	assert.Equal(t, "file", report.Source)
	assert.NotEmpty(t, report.Error)
	assert.Empty(t, report.Cards)
	assert.Empty(t, st.reg.List("api_keys"), "rejected declaration registers nothing")
}

func TestRoutes_ReloadPlugin_NotFound(t *testing.T) {
	st := newStack(t)

	w := st.do(t, http.MethodPost, "/api/v1/plugins/ghost/reload", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_ListExecutions(t *testing.T) {
	st := newStack(t)
	for _, action := range []string{"ping", "check"} {
		st.do(t, http.MethodPost, "/api/v1/tools/execute", map[string]any{
			"tool_name": "system", "capability": "health_check", "action": action,
		})
	}
	st.do(t, http.MethodPost, "/api/v1/tools/execute", map[string]any{
		"tool_name": "google_tool", "capability": "oauth2_management", "action": "check_status",
	})

	w := st.do(t, http.MethodGet, "/api/v1/executions?tool=system&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Executions []store.ExecutionRecord `json:"executions"`
	}](t, w)
	require.Len(t, body.Executions, 2)
	assert.Equal(t, "check", body.Executions[0].Action, "newest first")

	w = st.do(t, http.MethodGet, "/api/v1/executions?limit=1", nil)
	body = decode[struct {
		Executions []store.ExecutionRecord `json:"executions"`
	}](t, w)
	assert.Len(t, body.Executions, 1)
}

func TestRoutes_ListExecutions_NotConfigured(t *testing.T) {
	mgr := plugin.NewManager()
	reg := registry.New()
	disc, err := discovery.New(discovery.Config{Manager: mgr, Registry: reg})
	require.NoError(t, err)
	d, err := dispatch.New(dispatch.Config{Tools: mgr, Cards: reg})
	require.NoError(t, err)
	svc, err := server.NewServices(d, reg, mgr, disc, nil)
	require.NoError(t, err)
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	srv.RegisterServices(svc)

	st := &stack{srv: srv}
	w := st.do(t, http.MethodGet, "/api/v1/executions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewServices_RequiresDependencies(t *testing.T) {
	mgr := plugin.NewManager()
	reg := registry.New()
	disc, err := discovery.New(discovery.Config{Manager: mgr, Registry: reg})
	require.NoError(t, err)
	d, err := dispatch.New(dispatch.Config{Tools: mgr, Cards: reg})
	require.NoError(t, err)

	tests := []struct {
		name    string
		build   func() (*server.Services, error)
		wantErr string
	}{
		{"dispatcher", func() (*server.Services, error) { return server.NewServices(nil, reg, mgr, disc, nil) }, "dispatcher"},
		{"cards", func() (*server.Services, error) { return server.NewServices(d, nil, mgr, disc, nil) }, "card catalog"},
		{"plugins", func() (*server.Services, error) { return server.NewServices(d, reg, nil, disc, nil) }, "plugin lister"},
		{"discovery", func() (*server.Services, error) { return server.NewServices(d, reg, mgr, nil, nil) }, "discovery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			require.Error(t, err)
			assert.True(t, cherr.HasCode(err, cherr.CodeServerConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
