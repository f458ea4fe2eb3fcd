// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package dispatch routes card-driven requests to plugin handlers and wraps
// every outcome in a uniform result envelope.
package dispatch

import (
	"context"
	"log/slog"
	"maps"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/redact"
	"github.com/sigil-dev/cardhost/internal/store"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// Request names a (tool, capability, action) triple plus caller parameters.
type Request struct {
	ToolName   string         `json:"tool_name"`
	Capability string         `json:"capability"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Result is the uniform execution envelope.
type Result struct {
	Success    bool           `json:"success"`
	ToolName   string         `json:"tool_name"`
	Capability string         `json:"capability"`
	Action     string         `json:"action"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
}

// Tools resolves currently loaded plugins. *plugin.Manager satisfies it.
type Tools interface {
	Running(name string) (*plugin.Instance, bool)
}

// Cards resolves registered cards. *registry.Registry satisfies it.
type Cards interface {
	Get(cardID string) (card.Card, error)
	Owner(cardID string) (string, bool)
}

// Config holds dependencies for a Dispatcher.
type Config struct {
	Tools Tools
	Cards Cards
	// Executions is optional. When set every call is appended to it.
	Executions store.ExecutionLog
	Logger     *slog.Logger
}

// Dispatcher executes capability calls. It holds no per-call state and is
// safe for concurrent use.
type Dispatcher struct {
	tools      Tools
	cards      Cards
	executions store.ExecutionLog
	log        *slog.Logger

	// auditFailCount counts consecutive execution-log failures.
	auditFailCount atomic.Int64
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Tools == nil {
		return nil, cherr.New(cherr.CodeDispatchRequestInvalid, "Tools is required")
	}
	if cfg.Cards == nil {
		return nil, cherr.New(cherr.CodeDispatchRequestInvalid, "Cards is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		tools:      cfg.Tools,
		cards:      cfg.Cards,
		executions: cfg.Executions,
		log:        log,
	}, nil
}

// Execute resolves the tool and handler, merges parameters beneath the
// caller's, validates them against the handler schema and invokes it.
// It never returns a Go error: every failure is reported in the envelope.
func (d *Dispatcher) Execute(ctx context.Context, req Request, caller plugin.Caller) Result {
	return d.execute(ctx, req, nil, caller, nil)
}

// execute runs the resolution pipeline. static holds parameters declared on
// the card that routed the call; they sit between handler defaults and the
// caller's parameters.
func (d *Dispatcher) execute(ctx context.Context, req Request, static map[string]any, caller plugin.Caller, details map[string]any) Result {
	if caller.Identity == "" {
		caller = plugin.AnonymousCaller
	}
	start := time.Now()
	data, err := d.invoke(ctx, req, static, caller)
	res := envelope(req, data, err)
	d.record(ctx, req, caller, res, time.Since(start), details)
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, req Request, static map[string]any, caller plugin.Caller) (data map[string]any, err error) {
	inst, ok := d.tools.Running(req.ToolName)
	if !ok {
		return nil, &ToolNotFoundError{Tool: req.ToolName}
	}
	entry, ok := inst.Handlers().Lookup(req.Capability, req.Action)
	if !ok {
		return nil, &CapabilityNotFoundError{Tool: req.ToolName, Capability: req.Capability, Action: req.Action}
	}

	params := mergeParams(entry.Defaults, static, req.Parameters)
	if len(entry.Schema) > 0 {
		params, err = card.ValidateFormInput(params, entry.Schema)
		if err != nil {
			return nil, err
		}
	}

	call := plugin.Call{
		Caller:     caller,
		Tool:       req.ToolName,
		Capability: req.Capability,
		Action:     req.Action,
		Params:     params,
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panic recovered",
				"tool", req.ToolName,
				"capability", req.Capability,
				"action", req.Action,
				"panic", r,
				"stack", string(debug.Stack()))
			data, err = nil, panicError(req.ToolName, req.Capability, req.Action, r)
		}
	}()

	data, err = entry.Handler(plugin.WithCaller(ctx, caller), call)
	if err != nil {
		d.log.Warn("handler failed",
			"tool", req.ToolName,
			"capability", req.Capability,
			"action", req.Action,
			"error", err)
		return nil, &ToolExecutionError{
			Tool:       req.ToolName,
			Capability: req.Capability,
			Action:     req.Action,
			Message:    err.Error(),
			Err:        err,
		}
	}
	return data, nil
}

// mergeParams layers maps left to right; later layers win on collisions.
func mergeParams(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

func envelope(req Request, data map[string]any, err error) Result {
	res := Result{
		Success:    err == nil,
		ToolName:   req.ToolName,
		Capability: req.Capability,
		Action:     req.Action,
		Data:       data,
	}
	if err != nil {
		// Plugins echo request material into their errors.
		res.Error = redact.Default().String(err.Error())
		res.ErrorCode = string(cherr.CodeOf(err))
	}
	return res
}

func failure(req Request, err error) Result {
	return envelope(req, nil, err)
}
