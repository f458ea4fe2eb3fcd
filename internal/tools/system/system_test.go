// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package system_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/cardhost/internal/discovery"
	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/registry"
	"github.com/sigil-dev/cardhost/internal/tools/system"
	"github.com/sigil-dev/cardhost/pkg/card"
)

func TestSynthesizedCardsAreBound(t *testing.T) {
	tool := system.New(nil)
	_, declares := any(tool).(plugin.CardDeclarer)
	require.False(t, declares)

	cards := discovery.Synthesize(system.Name, tool.Handlers().Capabilities())

	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
		require.NoError(t, card.ValidateCard(c))
		for _, tc := range c.ToolCalls() {
			assert.True(t, tool.Handlers().Has(tc.Capability, tc.Action), "%s: %s.%s", c.ID, tc.Capability, tc.Action)
		}
	}
	assert.ElementsMatch(t, []string{"system_config", "system_health", "system_management"}, ids)
}

func TestHandlers(t *testing.T) {
	loaded, failed := 3, 0
	tool := system.New(func() (int, int) { return loaded, failed })

	mgr := plugin.NewManager()
	_, err := mgr.Load(context.Background(), tool)
	require.NoError(t, err)
	reg := registry.New()
	for _, c := range discovery.Synthesize(system.Name, tool.Handlers().Capabilities()) {
		require.NoError(t, reg.Register(system.Name, c))
	}
	d, err := dispatch.New(dispatch.Config{Tools: mgr, Cards: reg})
	require.NoError(t, err)
	ctx := context.Background()

	res := d.RefreshCard(ctx, "system_health", plugin.AnonymousCaller)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, system.StatusHealthy, res.Data["status"])
	assert.Equal(t, 3, res.Data["plugins_loaded"])

	failed = 1
	res = d.RefreshCard(ctx, "system_health", plugin.AnonymousCaller)
	assert.Equal(t, system.StatusDegraded, res.Data["status"])

	res = d.Execute(ctx, dispatch.Request{ToolName: system.Name, Capability: system.CapabilityHealth, Action: "ping"}, plugin.AnonymousCaller)
	assert.Equal(t, true, res.Data["pong"])

	res = d.SaveCard(ctx, "system_config", map[string]any{"enabled": "off"}, plugin.AnonymousCaller)
	require.True(t, res.Success, res.Error)
	assert.False(t, tool.Enabled())

	res = d.Execute(ctx, dispatch.Request{ToolName: system.Name, Capability: system.CapabilitySettings, Action: "get"}, plugin.AnonymousCaller)
	assert.Equal(t, false, res.Data["enabled"])
}
