// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package registry holds the set of registered cards. Readers always see an
// immutable snapshot; writers build a new snapshot and publish it atomically.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// DuplicateCardIDError reports a card id already owned by another plugin.
type DuplicateCardIDError struct {
	CardID   string
	Owner    string
	Incoming string
}

func (e *DuplicateCardIDError) Error() string {
	return fmt.Sprintf("card id %q from plugin %q already registered by plugin %q", e.CardID, e.Incoming, e.Owner)
}

func (e *DuplicateCardIDError) ErrorCode() cherr.Code { return cherr.CodeRegistryCardConflict }

// Registry is the single source of truth for registered cards. All methods
// are safe for concurrent use. Writes are serialized; reads never block.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	r.current.Store(emptySnapshot())
	return r
}

// Snapshot returns the currently published snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Register adds c under pluginID. Re-registering an id from the same plugin
// replaces the prior entry; an id owned by another plugin is rejected with
// *DuplicateCardIDError.
func (r *Registry) Register(pluginID string, c card.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.current.Load().builder()
	if err := b.Add(pluginID, c); err != nil {
		return err
	}
	r.current.Store(b.Build())
	return nil
}

// UnregisterAll removes every card owned by pluginID and returns how many
// were removed.
func (r *Registry) UnregisterAll(pluginID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.current.Load().builder()
	n := b.RemovePlugin(pluginID)
	if n > 0 {
		r.current.Store(b.Build())
	}
	return n
}

// ReplacePlugin swaps all of pluginID's cards for cards in one step. Cards
// whose ids collide with another plugin are skipped and reported; the rest
// are published together.
func (r *Registry) ReplacePlugin(pluginID string, cards []card.Card) []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.current.Load().builder()
	b.RemovePlugin(pluginID)
	var errs []error
	for _, c := range cards {
		if err := b.Add(pluginID, c); err != nil {
			errs = append(errs, err)
		}
	}
	r.current.Store(b.Build())
	return errs
}

// Swap publishes s as the whole registry content, replacing everything.
func (r *Registry) Swap(s *Snapshot) {
	if s == nil {
		s = emptySnapshot()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Store(s)
}

// Get returns the card with the given id.
func (r *Registry) Get(cardID string) (card.Card, error) {
	return r.Snapshot().Get(cardID)
}

// List returns cards ordered by category (first-seen), order, then id.
// An empty category returns every card.
func (r *Registry) List(category string) []card.Card {
	return r.Snapshot().List(category)
}

// Categories returns the distinct categories in first-seen order.
func (r *Registry) Categories() []string {
	return r.Snapshot().Categories()
}

// Owner returns the plugin that registered cardID.
func (r *Registry) Owner(cardID string) (string, bool) {
	return r.Snapshot().Owner(cardID)
}
