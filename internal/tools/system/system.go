// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package system implements the built-in system tool. It declares no cards,
// so its settings surface is synthesized from its capability names.
package system

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/pkg/card"
)

const Name = "system"

const (
	CapabilityHealth   = "health_check"
	CapabilitySettings = "settings"
)

// Health states reported by health_check.check.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Probe reports the number of loaded and failed plugins.
type Probe func() (loaded, failed int)

// Tool is the system plugin.
type Tool struct {
	started time.Time
	probe   Probe
	table   *plugin.HandlerTable

	mu      sync.RWMutex
	enabled bool
}

// New creates the tool. probe may be nil.
func New(probe Probe) *Tool {
	t := &Tool{started: time.Now(), probe: probe, enabled: true}
	t.table = plugin.NewHandlerTable().
		Handle(CapabilityHealth, "check", t.check).
		Handle(CapabilityHealth, "ping", t.ping).
		Handle(CapabilitySettings, "get", t.getSettings).
		Handle(CapabilitySettings, "update", t.updateSettings,
			plugin.WithSchema(card.Field{Name: "enabled", Type: card.FieldCheckbox, Default: true}))
	return t
}

func (t *Tool) Name() string                   { return Name }
func (t *Tool) Handlers() *plugin.HandlerTable { return t.table }

// Enabled reports the current value of the enabled setting.
func (t *Tool) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func (t *Tool) check(context.Context, plugin.Call) (map[string]any, error) {
	status := StatusHealthy
	out := map[string]any{
		"uptime_seconds": int64(time.Since(t.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	}
	if t.probe != nil {
		loaded, failed := t.probe()
		out["plugins_loaded"] = loaded
		out["plugins_failed"] = failed
		if failed > 0 {
			status = StatusDegraded
		}
	}
	out["status"] = status
	return out, nil
}

func (t *Tool) ping(context.Context, plugin.Call) (map[string]any, error) {
	return map[string]any{"pong": true, "time": time.Now().UTC().Format(time.RFC3339)}, nil
}

func (t *Tool) getSettings(context.Context, plugin.Call) (map[string]any, error) {
	return map[string]any{"enabled": t.Enabled()}, nil
}

func (t *Tool) updateSettings(_ context.Context, call plugin.Call) (map[string]any, error) {
	enabled, _ := call.Params["enabled"].(bool)
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
	return map[string]any{"enabled": enabled}, nil
}
