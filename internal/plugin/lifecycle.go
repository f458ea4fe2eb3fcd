// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package plugin

import (
	"sync"
	"time"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// PluginState represents the lifecycle state of a plugin instance.
type PluginState int

const (
	StateDiscovered PluginState = iota
	StateValidating
	StateLoading
	StateRunning
	StateDraining
	StateStopping
	StateStopped
	StateError
)

func (s PluginState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateValidating:
		return "validating"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions as an adjacency list.
var validTransitions = map[PluginState]map[PluginState]bool{
	StateDiscovered: {
		StateValidating: true,
	},
	StateValidating: {
		StateLoading: true,
		StateError:   true,
	},
	StateLoading: {
		StateRunning: true,
		StateError:   true,
	},
	StateRunning: {
		StateDraining: true,
		StateError:    true,
	},
	StateDraining: {
		StateStopping: true,
	},
	StateStopping: {
		StateStopped: true,
	},
	StateStopped: {},
	StateError:   {},
}

// ValidTransition returns true if transitioning from one state to another is allowed.
func ValidTransition(from, to PluginState) bool {
	allowed, exists := validTransitions[from][to]
	return exists && allowed
}

// MarshalText renders the state name in JSON and YAML output.
func (s PluginState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Instance represents a loaded plugin with lifecycle state management.
// The handler table is captured once at load and never changes afterwards.
type Instance struct {
	mu       sync.RWMutex
	name     string
	state    PluginState
	plugin   Plugin
	handlers *HandlerTable
	loadedAt time.Time
	lastErr  error
}

// NewInstance creates a new plugin instance with the given name and initial state.
func NewInstance(name string, state PluginState) *Instance {
	return &Instance{
		name:  name,
		state: state,
	}
}

func newPluginInstance(p Plugin) *Instance {
	inst := NewInstance(p.Name(), StateDiscovered)
	inst.plugin = p
	return inst
}

// Plugin returns the underlying plugin, or nil for bare instances.
func (i *Instance) Plugin() Plugin {
	return i.plugin
}

// Handlers returns the handler table captured at load.
func (i *Instance) Handlers() *HandlerTable {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.handlers
}

// LoadedAt returns when the instance reached the running state.
func (i *Instance) LoadedAt() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.loadedAt
}

// Err returns the error that moved the instance into StateError, if any.
func (i *Instance) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastErr
}

// Running reports whether the instance accepts dispatch.
func (i *Instance) Running() bool {
	return i.State() == StateRunning
}

func (i *Instance) fail(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if ValidTransition(i.state, StateError) {
		i.state = StateError
	}
	i.lastErr = err
}

// Name returns the plugin instance name.
func (i *Instance) Name() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.name
}

// State returns the current plugin state.
func (i *Instance) State() PluginState {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// TransitionTo attempts to transition to a new state. Returns an error if the
// transition is not valid.
func (i *Instance) TransitionTo(newState PluginState) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !ValidTransition(i.state, newState) {
		return cherr.Errorf(cherr.CodePluginLifecycleTransitionInvalid,
			"invalid state transition: %s -> %s", i.state, newState)
	}

	i.state = newState
	if newState == StateRunning {
		i.loadedAt = time.Now()
	}
	return nil
}
