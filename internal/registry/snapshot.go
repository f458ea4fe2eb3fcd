// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package registry

import (
	"cmp"
	"slices"

	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

type entry struct {
	plugin string
	card   card.Card
}

// Snapshot is an immutable view of the registry. The ordered card list is
// computed once at build time.
type Snapshot struct {
	byID       map[string]entry
	categories []string
	ordered    []card.Card
}

func emptySnapshot() *Snapshot {
	return &Snapshot{byID: map[string]entry{}}
}

// Len returns the number of cards.
func (s *Snapshot) Len() int { return len(s.byID) }

// Get returns a copy of the card with the given id.
func (s *Snapshot) Get(cardID string) (card.Card, error) {
	e, ok := s.byID[cardID]
	if !ok {
		return card.Card{}, cherr.New(cherr.CodeRegistryCardNotFound, "card not found", cherr.FieldCard(cardID))
	}
	return e.card.Clone(), nil
}

// Owner returns the plugin that registered cardID.
func (s *Snapshot) Owner(cardID string) (string, bool) {
	e, ok := s.byID[cardID]
	return e.plugin, ok
}

// List returns copies of the cards, optionally filtered by category.
func (s *Snapshot) List(category string) []card.Card {
	out := make([]card.Card, 0, len(s.ordered))
	for _, c := range s.ordered {
		if category != "" && c.Category != category {
			continue
		}
		out = append(out, c.Clone())
	}
	return out
}

// Categories returns the distinct categories in first-seen order.
func (s *Snapshot) Categories() []string {
	return slices.Clone(s.categories)
}

// Plugins returns the number of cards per owning plugin.
func (s *Snapshot) Plugins() map[string]int {
	out := make(map[string]int)
	for _, e := range s.byID {
		out[e.plugin]++
	}
	return out
}

func (s *Snapshot) builder() *Builder {
	b := NewBuilder()
	for _, cat := range s.categories {
		b.seenCategory(cat)
	}
	for id, e := range s.byID {
		b.byID[id] = e
	}
	return b
}

// Builder assembles a Snapshot off to the side. It is not safe for
// concurrent use.
type Builder struct {
	byID       map[string]entry
	categories []string
	seen       map[string]bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{byID: map[string]entry{}, seen: map[string]bool{}}
}

// Add registers c under pluginID with the same duplicate rules as Registry.Register.
func (b *Builder) Add(pluginID string, c card.Card) error {
	if existing, ok := b.byID[c.ID]; ok && existing.plugin != pluginID {
		return &DuplicateCardIDError{CardID: c.ID, Owner: existing.plugin, Incoming: pluginID}
	}
	b.byID[c.ID] = entry{plugin: pluginID, card: c.Clone()}
	b.seenCategory(c.Category)
	return nil
}

// RemovePlugin drops every card owned by pluginID.
func (b *Builder) RemovePlugin(pluginID string) int {
	n := 0
	for id, e := range b.byID {
		if e.plugin == pluginID {
			delete(b.byID, id)
			n++
		}
	}
	return n
}

func (b *Builder) seenCategory(cat string) {
	if b.seen[cat] {
		return
	}
	b.seen[cat] = true
	b.categories = append(b.categories, cat)
}

// Build freezes the builder into a Snapshot. Categories no longer backed by
// any card are dropped; survivors keep their first-seen position.
func (b *Builder) Build() *Snapshot {
	live := make(map[string]bool)
	for _, e := range b.byID {
		live[e.card.Category] = true
	}
	rank := make(map[string]int, len(b.categories))
	categories := make([]string, 0, len(b.categories))
	for _, cat := range b.categories {
		if live[cat] {
			rank[cat] = len(categories)
			categories = append(categories, cat)
		}
	}

	byID := make(map[string]entry, len(b.byID))
	ordered := make([]card.Card, 0, len(b.byID))
	for id, e := range b.byID {
		byID[id] = e
		ordered = append(ordered, e.card)
	}
	slices.SortFunc(ordered, func(x, y card.Card) int {
		return cmp.Or(
			cmp.Compare(rank[x.Category], rank[y.Category]),
			cmp.Compare(x.Order, y.Order),
			cmp.Compare(x.ID, y.ID),
		)
	})

	return &Snapshot{byID: byID, categories: categories, ordered: ordered}
}
