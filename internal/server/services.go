// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"time"

	"github.com/sigil-dev/cardhost/internal/discovery"
	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/registry"
	"github.com/sigil-dev/cardhost/internal/store"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be replaced in tests.
// Use NewServices constructor to ensure all required services are provided.
type Services struct {
	dispatcher Dispatcher
	cards      CardCatalog
	plugins    PluginLister
	discovery  Discoverer
	executions store.ExecutionLog // optional; nil = execution log endpoint unavailable
}

// NewServices creates a Services instance with validation.
// Returns an error if any required service is nil. executions may be nil.
func NewServices(d Dispatcher, cards CardCatalog, plugins PluginLister, disc Discoverer, executions store.ExecutionLog) (*Services, error) {
	if d == nil {
		return nil, cherr.New(cherr.CodeServerConfigInvalid, "dispatcher is required")
	}
	if cards == nil {
		return nil, cherr.New(cherr.CodeServerConfigInvalid, "card catalog is required")
	}
	if plugins == nil {
		return nil, cherr.New(cherr.CodeServerConfigInvalid, "plugin lister is required")
	}
	if disc == nil {
		return nil, cherr.New(cherr.CodeServerConfigInvalid, "discovery service is required")
	}
	return &Services{
		dispatcher: d,
		cards:      cards,
		plugins:    plugins,
		discovery:  disc,
		executions: executions,
	}, nil
}

// Dispatcher executes capability calls. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Execute(ctx context.Context, req dispatch.Request, caller plugin.Caller) dispatch.Result
	SaveCard(ctx context.Context, cardID string, values map[string]any, caller plugin.Caller) dispatch.Result
	RunCardAction(ctx context.Context, cardID, actionID string, params map[string]any, caller plugin.Caller) dispatch.Result
	RefreshCard(ctx context.Context, cardID string, caller plugin.Caller) dispatch.Result
}

// CardCatalog reads registered cards. *registry.Registry satisfies it.
type CardCatalog interface {
	Get(cardID string) (card.Card, error)
	List(category string) []card.Card
	Categories() []string
	Snapshot() *registry.Snapshot
}

// PluginLister lists loaded plugins. *plugin.Manager satisfies it.
type PluginLister interface {
	List() []*plugin.Instance
}

// Discoverer rebuilds or reloads card declarations. *discovery.Service satisfies it.
type Discoverer interface {
	Rebuild(ctx context.Context) (*discovery.Report, error)
	ReloadPlugin(ctx context.Context, pluginID string) (*discovery.PluginResult, error)
}

// PluginSummary is the REST representation of a plugin in list results.
type PluginSummary struct {
	Name         string    `json:"name" doc:"Plugin name"`
	State        string    `json:"state" doc:"Lifecycle state, or unloaded for directory-only plugins"`
	Capabilities []string  `json:"capabilities,omitempty" doc:"Capabilities in the handler table"`
	Cards        int       `json:"cards" doc:"Registered card count"`
	LoadedAt     time.Time `json:"loaded_at,omitzero" doc:"When the plugin reached running"`
	Error        string    `json:"error,omitempty" doc:"Last lifecycle error"`
}

// StateUnloaded marks plugins that only exist as a directory with cards.
const StateUnloaded = "unloaded"

// PluginReport is the REST representation of one plugin's discovery outcome.
type PluginReport struct {
	Plugin   string   `json:"plugin" doc:"Plugin name"`
	Source   string   `json:"source,omitempty" doc:"file, embedded or generated"`
	Path     string   `json:"path,omitempty" doc:"Declaration path"`
	Cards    []string `json:"cards" doc:"Registered card ids"`
	Warnings []string `json:"warnings,omitempty" doc:"Unbound capabilities and skipped duplicates"`
	Error    string   `json:"error,omitempty" doc:"Why the declaration was rejected"`
}

func pluginReport(res *discovery.PluginResult) PluginReport {
	r := PluginReport{
		Plugin: res.Plugin,
		Source: string(res.Source),
		Path:   res.Path,
		Cards:  make([]string, 0, len(res.Cards)),
	}
	if res.Err == nil {
		for _, c := range res.Cards {
			r.Cards = append(r.Cards, c.ID)
		}
	} else {
		r.Error = res.Err.Error()
	}
	for _, w := range res.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	return r
}
