// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/store"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

func apiKeyCard() card.Card {
	return card.Card{
		ID:       "openai_api_key",
		Type:     card.TypeValue,
		Category: card.CategoryAPIKeys,
		Title:    "OpenAI API Key",
		FormSchema: []card.Field{{
			Name:     "api_key",
			Type:     card.FieldPassword,
			Required: true,
			Validation: card.Validation{
				Pattern:   "^sk-",
				MinLength: card.Length(10),
			},
		}},
		SaveAction: &card.ToolCall{
			Capability: "api_key_management",
			Action:     "save",
			Parameters: map[string]any{"provider": "openai"},
		},
	}
}

func oauthCard() card.Card {
	return card.Card{
		ID:       "google_oauth",
		Type:     card.TypeAction,
		Category: card.CategoryAuthentication,
		Title:    "Google",
		Actions: []card.Action{{
			ID:        "authorize",
			Label:     "Connect",
			Condition: `ne .status "authorized"`,
			ToolCall: card.ToolCall{
				ToolName:   "google_tool",
				Capability: "oauth2_management",
				Action:     "authorize",
				Parameters: map[string]any{"scope": "email", "prompt": "consent"},
			},
		}},
		DataSource: &card.ToolCall{ToolName: "google_tool", Capability: "oauth2_management", Action: "check_status"},
	}
}

func TestSaveCard_ValueCardScenario(t *testing.T) {
	h := newHarness(t)
	h.load(t, "openai_tool", plugin.NewHandlerTable().Handle("api_key_management", "save", echo))
	require.NoError(t, h.reg.Register("openai_tool", apiKeyCard()))

	res := h.disp.SaveCard(context.Background(), "openai_api_key", map[string]any{}, plugin.AnonymousCaller)
	assert.False(t, res.Success)
	assert.Equal(t, "api_key is required", res.Error)
	assert.Equal(t, string(cherr.CodeCardFormMissingField), res.ErrorCode)

	res = h.disp.SaveCard(context.Background(), "openai_api_key", map[string]any{"api_key": "sk-validlongkey"}, plugin.Caller{Identity: "alice"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "openai_tool", res.ToolName)
	assert.Equal(t, "api_key_management", res.Capability)
	assert.Equal(t, "save", res.Action)
	assert.Equal(t, "sk-validlongkey", res.Data["api_key"])
	assert.Equal(t, "openai", res.Data["provider"])
	assert.Equal(t, "alice", res.Data["caller"])
}

func TestSaveCard_ConstraintViolation(t *testing.T) {
	h := newHarness(t)
	h.load(t, "openai_tool", plugin.NewHandlerTable().Handle("api_key_management", "save", echo))
	require.NoError(t, h.reg.Register("openai_tool", apiKeyCard()))

	res := h.disp.SaveCard(context.Background(), "openai_api_key", map[string]any{"api_key": "pk-validlongkey"}, plugin.AnonymousCaller)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "api_key")
	assert.Contains(t, res.Error, card.RulePattern)
}

func TestSaveCard_RecordsFormFailures(t *testing.T) {
	h := newHarness(t)
	h.load(t, "openai_tool", plugin.NewHandlerTable().Handle("api_key_management", "save", echo))
	require.NoError(t, h.reg.Register("openai_tool", apiKeyCard()))

	res := h.disp.SaveCard(context.Background(), "openai_api_key", map[string]any{"api_key": "pk-short"}, plugin.Caller{Identity: "bob"})
	require.False(t, res.Success)

	recs, err := h.gw.Executions().Query(context.Background(), store.ExecutionFilter{Tool: "openai_tool"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.False(t, r.Success)
	assert.Equal(t, "bob", r.Caller)
	assert.Equal(t, "api_key_management", r.Capability)
	assert.Equal(t, "save", r.Action)
	assert.Equal(t, res.ErrorCode, r.ErrorCode)
	assert.Equal(t, "openai_api_key", r.Details["card_id"])
	assert.Equal(t, "save", r.Details["route"])
}

func TestSaveCard_Rejections(t *testing.T) {
	h := newHarness(t)
	h.load(t, "google_tool", plugin.NewHandlerTable().Handle("oauth2_management", "authorize", echo))
	require.NoError(t, h.reg.Register("google_tool", oauthCard()))

	res := h.disp.SaveCard(context.Background(), "missing", nil, plugin.AnonymousCaller)
	assert.Equal(t, "card not found", res.Error)

	res = h.disp.SaveCard(context.Background(), "google_oauth", map[string]any{"x": 1}, plugin.AnonymousCaller)
	assert.False(t, res.Success)
	assert.Equal(t, string(cherr.CodeDispatchCardNotSavable), res.ErrorCode)
}

func TestRunCardAction(t *testing.T) {
	h := newHarness(t)
	h.load(t, "google_tool", plugin.NewHandlerTable().
		Handle("oauth2_management", "authorize", echo).
		Handle("oauth2_management", "check_status", echo))
	require.NoError(t, h.reg.Register("google_tool", oauthCard()))

	res := h.disp.RunCardAction(context.Background(), "google_oauth", "authorize",
		map[string]any{"prompt": "select_account"}, plugin.AnonymousCaller)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "email", res.Data["scope"], "static parameter")
	assert.Equal(t, "select_account", res.Data["prompt"], "caller wins")

	res = h.disp.RunCardAction(context.Background(), "google_oauth", "teleport", nil, plugin.AnonymousCaller)
	assert.False(t, res.Success)
	assert.Equal(t, "action not found", res.Error)

	res = h.disp.RunCardAction(context.Background(), "nope", "authorize", nil, plugin.AnonymousCaller)
	assert.Equal(t, "card not found", res.Error)
}

func TestRunCardAction_IgnoresCondition(t *testing.T) {
	h := newHarness(t)
	h.load(t, "google_tool", plugin.NewHandlerTable().Handle("oauth2_management", "authorize", echo))
	c := oauthCard()
	c.Status = "authorized"
	require.NoError(t, h.reg.Register("google_tool", c))

	res := h.disp.RunCardAction(context.Background(), "google_oauth", "authorize", nil, plugin.AnonymousCaller)
	assert.True(t, res.Success)
}

func TestRunCardAction_DefaultsToOwningPlugin(t *testing.T) {
	h := newHarness(t)
	h.load(t, "openai_tool", plugin.NewHandlerTable().Handle("api_key_management", "delete", echo))
	c := card.Card{
		ID: "openai_manage", Type: card.TypeAction, Category: card.CategoryTools, Title: "Manage",
		Actions: []card.Action{{ID: "delete", Label: "Delete", ToolCall: card.ToolCall{Capability: "api_key_management", Action: "delete"}}},
	}
	require.NoError(t, h.reg.Register("openai_tool", c))

	res := h.disp.RunCardAction(context.Background(), "openai_manage", "delete", nil, plugin.AnonymousCaller)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "openai_tool", res.ToolName)
}

func TestRefreshCard(t *testing.T) {
	h := newHarness(t)
	h.load(t, "google_tool", plugin.NewHandlerTable().
		Handle("oauth2_management", "check_status", func(context.Context, plugin.Call) (map[string]any, error) {
			return map[string]any{"status": "not_authorized"}, nil
		}))
	require.NoError(t, h.reg.Register("google_tool", oauthCard()))
	require.NoError(t, h.reg.Register("openai_tool", apiKeyCard()))

	res := h.disp.RefreshCard(context.Background(), "google_oauth", plugin.AnonymousCaller)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "not_authorized", res.Data["status"])

	res = h.disp.RefreshCard(context.Background(), "openai_api_key", plugin.AnonymousCaller)
	assert.False(t, res.Success)
	assert.Equal(t, "action not found", res.Error)
}
