// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"maps"
	"slices"
	"sync"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// MemoryStore keeps secrets in process memory. Used for tests and for hosts
// without a keyring daemon.
type MemoryStore struct {
	mu       sync.RWMutex
	services map[string]map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{services: make(map[string]map[string]string)}
}

func (m *MemoryStore) Set(service, key, value string) error {
	if err := checkInput("set", service, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.services[service] == nil {
		m.services[service] = make(map[string]string)
	}
	m.services[service][key] = value
	return nil
}

func (m *MemoryStore) Get(service, key string) (string, error) {
	if err := checkInput("get", service, key); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.services[service][key]
	if !ok {
		return "", cherr.Errorf(cherr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m *MemoryStore) Delete(service, key string) error {
	if err := checkInput("delete", service, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[service][key]; !ok {
		return cherr.Errorf(cherr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	delete(m.services[service], key)
	return nil
}

func (m *MemoryStore) List(service string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.services[service])), nil
}
