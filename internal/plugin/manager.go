// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package plugin

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
	pkgplugin "github.com/sigil-dev/cardhost/pkg/plugin"
)

// Manager owns the set of loaded plugins. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]*Instance
}

func NewManager() *Manager {
	return &Manager{
		plugins: make(map[string]*Instance),
	}
}

// Load walks p through validating and loading into running. The handler table
// is captured here and never re-read.
func (m *Manager) Load(ctx context.Context, p Plugin) (*Instance, error) {
	if p == nil {
		return nil, cherr.New(cherr.CodePluginManifestValidateInvalid, "plugin must not be nil")
	}
	name := p.Name()
	if !pkgplugin.ValidName(name) {
		return nil, cherr.Errorf(cherr.CodePluginManifestValidateInvalid,
			"plugin name %q must be lowercase alphanumeric with '_' or '-'", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.plugins[name]; ok && existing.State() != StateError {
		return nil, cherr.Errorf(cherr.CodePluginRegisterConflict, "plugin %q already loaded", name)
	}

	inst := newPluginInstance(p)
	m.plugins[name] = inst

	if err := inst.TransitionTo(StateValidating); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		inst.fail(err)
		return inst, cherr.Wrap(err, cherr.CodePluginManifestValidateInvalid, "loading plugin", cherr.FieldPlugin(name))
	}
	if err := inst.TransitionTo(StateLoading); err != nil {
		return nil, err
	}

	handlers := p.Handlers()
	if handlers == nil {
		handlers = NewHandlerTable()
	}
	inst.mu.Lock()
	inst.handlers = handlers
	inst.mu.Unlock()

	if err := inst.TransitionTo(StateRunning); err != nil {
		return nil, err
	}

	slog.Debug("plugin loaded", "plugin", name, "handlers", handlers.Len())
	return inst, nil
}

// Unload drains and stops the named plugin and forgets it.
func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	inst, ok := m.plugins[name]
	if ok {
		delete(m.plugins, name)
	}
	m.mu.Unlock()

	if !ok {
		return cherr.Errorf(cherr.CodePluginNotFound, "plugin %q not found", name)
	}
	return stop(inst)
}

func stop(inst *Instance) error {
	if inst.State() == StateRunning {
		for _, s := range []PluginState{StateDraining, StateStopping} {
			if err := inst.TransitionTo(s); err != nil {
				return err
			}
		}
	}

	var closeErr error
	if c, ok := inst.Plugin().(Closer); ok {
		closeErr = c.Close()
	}
	if inst.State() == StateStopping {
		if err := inst.TransitionTo(StateStopped); err != nil {
			return err
		}
	}
	if closeErr != nil {
		return cherr.Wrap(closeErr, cherr.CodePluginCloseFailure, "closing plugin", cherr.FieldPlugin(inst.Name()))
	}
	return nil
}

func (m *Manager) Get(name string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.plugins[name]
	if !ok {
		return nil, cherr.Errorf(cherr.CodePluginNotFound, "plugin %q not found", name)
	}

	return inst, nil
}

// Running returns the named instance if it is currently loaded and running.
func (m *Manager) Running(name string) (*Instance, bool) {
	inst, err := m.Get(name)
	if err != nil || !inst.Running() {
		return nil, false
	}
	return inst, true
}

// List returns all instances ordered by name.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Instance, 0, len(m.plugins))
	for _, inst := range m.plugins {
		list = append(list, inst)
	}
	slices.SortFunc(list, func(a, b *Instance) int { return strings.Compare(a.Name(), b.Name()) })

	return list
}

// Close stops every plugin.
func (m *Manager) Close() error {
	m.mu.Lock()
	instances := make([]*Instance, 0, len(m.plugins))
	for _, inst := range m.plugins {
		instances = append(instances, inst)
	}
	m.plugins = make(map[string]*Instance)
	m.mu.Unlock()

	var errs []error
	for _, inst := range instances {
		if err := stop(inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
