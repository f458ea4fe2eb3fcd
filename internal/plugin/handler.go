// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package plugin

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/sigil-dev/cardhost/pkg/card"
)

// Caller identifies who asked for an execution. It carries identity only;
// handlers get no ambient authority from it.
type Caller struct {
	Identity string `json:"identity"`
}

// AnonymousCaller is used when a request names no caller.
var AnonymousCaller = Caller{Identity: "anonymous"}

// Call is the per-invocation context handed to a Handler.
type Call struct {
	Caller     Caller
	Tool       string
	Capability string
	Action     string
	Params     map[string]any
}

// Handler implements one (capability, action) pair.
type Handler func(ctx context.Context, call Call) (map[string]any, error)

// HandlerKey addresses an entry in a HandlerTable.
type HandlerKey struct {
	Capability string
	Action     string
}

func (k HandlerKey) String() string { return k.Capability + "." + k.Action }

// HandlerEntry binds a handler to its declared defaults and optional input schema.
// When Schema is non-empty the dispatcher sanitizes parameters against it and
// only declared fields reach the handler.
type HandlerEntry struct {
	Handler  Handler
	Defaults map[string]any
	Schema   []card.Field
}

// EntryOption configures a HandlerEntry at registration.
type EntryOption func(*HandlerEntry)

// WithDefaults sets static parameters merged beneath caller parameters.
func WithDefaults(defaults map[string]any) EntryOption {
	return func(e *HandlerEntry) { e.Defaults = maps.Clone(defaults) }
}

// WithSchema declares the input schema of the entry.
func WithSchema(fields ...card.Field) EntryOption {
	return func(e *HandlerEntry) { e.Schema = slices.Clone(fields) }
}

// HandlerTable maps (capability, action) pairs to handlers. Plugins build it
// once; the table is treated as immutable after the plugin is loaded.
type HandlerTable struct {
	entries map[HandlerKey]HandlerEntry
}

// NewHandlerTable returns an empty table.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{entries: make(map[HandlerKey]HandlerEntry)}
}

// Handle registers h for (capability, action) and returns the table so
// registrations can be chained. Registering the same pair twice panics.
func (t *HandlerTable) Handle(capability, action string, h Handler, opts ...EntryOption) *HandlerTable {
	key := HandlerKey{Capability: capability, Action: action}
	if _, exists := t.entries[key]; exists {
		panic(fmt.Sprintf("plugin: duplicate handler for %s", key))
	}
	if h == nil {
		panic(fmt.Sprintf("plugin: nil handler for %s", key))
	}
	entry := HandlerEntry{Handler: h}
	for _, opt := range opts {
		opt(&entry)
	}
	t.entries[key] = entry
	return t
}

// Lookup returns the entry for (capability, action).
func (t *HandlerTable) Lookup(capability, action string) (HandlerEntry, bool) {
	if t == nil {
		return HandlerEntry{}, false
	}
	e, ok := t.entries[HandlerKey{Capability: capability, Action: action}]
	return e, ok
}

// Has reports whether (capability, action) is bound.
func (t *HandlerTable) Has(capability, action string) bool {
	_, ok := t.Lookup(capability, action)
	return ok
}

// Capabilities returns the distinct capability names, sorted.
func (t *HandlerTable) Capabilities() []string {
	if t == nil {
		return nil
	}
	set := make(map[string]struct{}, len(t.entries))
	for k := range t.entries {
		set[k.Capability] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Actions returns the actions bound under capability, sorted.
func (t *HandlerTable) Actions(capability string) []string {
	if t == nil {
		return nil
	}
	var out []string
	for k := range t.entries {
		if k.Capability == capability {
			out = append(out, k.Action)
		}
	}
	slices.Sort(out)
	return out
}

// Len returns the number of bound pairs.
func (t *HandlerTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx, or AnonymousCaller.
func CallerFrom(ctx context.Context) Caller {
	if c, ok := ctx.Value(callerKey{}).(Caller); ok && c.Identity != "" {
		return c
	}
	return AnonymousCaller
}
