// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package discovery loads card declarations for every plugin and publishes
// them to the card registry.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/registry"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
	pkgplugin "github.com/sigil-dev/cardhost/pkg/plugin"
)

// CardFileNames are tried in order inside a plugin directory.
var CardFileNames = []string{"cards.yaml", "cards.yml", "cards.json"}

// Source records where a plugin's cards came from.
type Source string

const (
	SourceFile      Source = "file"
	SourceEmbedded  Source = "embedded"
	SourceGenerated Source = "generated"
)

// UnboundCapabilityError is a load-time warning: a card references a
// (capability, action) that no loaded handler table provides.
type UnboundCapabilityError struct {
	CardID     string
	Tool       string
	Capability string
	Action     string
}

func (e *UnboundCapabilityError) Error() string {
	return fmt.Sprintf("card %q references %s.%s on tool %q, which has no such handler",
		e.CardID, e.Capability, e.Action, e.Tool)
}

func (e *UnboundCapabilityError) ErrorCode() cherr.Code { return cherr.CodeDiscoveryCapabilityUnbound }

// PluginResult is the outcome of discovering one plugin.
type PluginResult struct {
	Plugin   string
	Source   Source
	Path     string
	Cards    []card.Card
	Warnings []error
	// Err is set when the plugin's declaration was rejected as a whole.
	Err error
	// Removed is set when the plugin no longer exists on disk or in the manager.
	Removed bool
}

// Report summarizes a full rebuild.
type Report struct {
	Plugins    []*PluginResult
	Registered int
}

// Config holds dependencies for Service.
type Config struct {
	PluginsDir  string
	Manager     *plugin.Manager
	Registry    *registry.Registry
	Concurrency int
}

// Service discovers cards for loaded plugins and plugin directories. Rebuilds
// and reloads are serialized; the registry is only ever replaced atomically.
type Service struct {
	pluginsDir  string
	manager     *plugin.Manager
	registry    *registry.Registry
	concurrency int

	mu sync.Mutex
}

// New creates a Service. Returns an error if required fields are nil.
func New(cfg Config) (*Service, error) {
	if cfg.Manager == nil {
		return nil, cherr.New(cherr.CodeDiscoveryPluginFailure, "Manager is required")
	}
	if cfg.Registry == nil {
		return nil, cherr.New(cherr.CodeDiscoveryPluginFailure, "Registry is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Service{
		pluginsDir:  cfg.PluginsDir,
		manager:     cfg.Manager,
		registry:    cfg.Registry,
		concurrency: cfg.Concurrency,
	}, nil
}

// PluginsDir returns the directory scanned for plugin folders.
func (s *Service) PluginsDir() string { return s.pluginsDir }

// Candidates returns the sorted union of loaded plugin names and plugin
// directory names.
func (s *Service) Candidates() ([]string, error) {
	set := make(map[string]struct{})
	for _, inst := range s.manager.List() {
		if inst.Running() {
			set[inst.Name()] = struct{}{}
		}
	}

	if s.pluginsDir != "" {
		entries, err := os.ReadDir(s.pluginsDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, cherr.Wrap(err, cherr.CodeDiscoveryPluginFailure, "reading plugins directory",
				cherr.Field("path", s.pluginsDir))
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if !pkgplugin.ValidName(entry.Name()) {
				slog.Warn("skipping plugin directory: invalid name",
					"path", filepath.Join(s.pluginsDir, entry.Name()))
				continue
			}
			set[entry.Name()] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

// DiscoverPlugin resolves the cards of one plugin without touching the
// registry. Sources, in order: a card file in the plugin directory, cards
// embedded in the compiled plugin, then auto-generation. A declaration with
// any invalid card is rejected whole and the returned error explains why.
func (s *Service) DiscoverPlugin(ctx context.Context, pluginID string) (*PluginResult, error) {
	res := &PluginResult{Plugin: pluginID}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res, err
	}

	inst, loaded := s.manager.Running(pluginID)
	dir := s.pluginDir(pluginID)

	data, path, err := readCardFile(dir)
	if err != nil {
		res.Err = err
		return res, err
	}

	switch {
	case data != nil:
		res.Source, res.Path = SourceFile, path
	case loaded && declares(inst):
		data = inst.Plugin().(plugin.CardDeclarer).CardFile()
		res.Source, res.Path = SourceEmbedded, "embedded:"+pluginID
	}

	if res.Source != "" {
		cards, err := parseDeclaration(pluginID, res.Path, data)
		if err != nil {
			res.Err = err
			return res, err
		}
		res.Cards = cards
	} else {
		caps, exists, err := s.capabilities(pluginID, inst, loaded, dir)
		if err != nil {
			res.Err = err
			return res, err
		}
		if !exists {
			res.Removed = true
			return res, nil
		}
		res.Source = SourceGenerated
		res.Cards = Synthesize(pluginID, caps)
	}

	for i := range res.Cards {
		res.Cards[i] = res.Cards[i].WithToolName(pluginID)
	}
	res.Warnings = s.unbound(res.Cards)
	for _, w := range res.Warnings {
		slog.Warn("card references unbound capability", "plugin", pluginID, "error", w)
	}
	return res, nil
}

// Rebuild discovers every candidate plugin concurrently, builds a fresh
// snapshot and swaps it in. A failing plugin contributes no cards and never
// affects the others. On error the registry is left unchanged.
func (s *Service) Rebuild(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.Candidates()
	if err != nil {
		return nil, err
	}

	results := make([]*PluginResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, name := range names {
		g.Go(func() error {
			// Per-plugin failures are recorded on the result, not returned.
			results[i], _ = s.DiscoverPlugin(gctx, name)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, cherr.Wrap(err, cherr.CodeDiscoveryPluginFailure, "rebuild cancelled")
	}

	b := registry.NewBuilder()
	report := &Report{}
	for _, res := range results {
		if res.Err == nil {
			res.Cards = addAll(b, res)
			report.Registered += len(res.Cards)
		}
		if !res.Removed {
			report.Plugins = append(report.Plugins, res)
		}
	}
	s.registry.Swap(b.Build())

	slog.Info("card registry rebuilt", "plugins", len(report.Plugins), "cards", report.Registered)
	return report, nil
}

// ReloadPlugin re-discovers a single plugin and replaces its cards in one
// step. A rejected declaration leaves the plugin with no cards, matching what
// a full rebuild would publish.
func (s *Service) ReloadPlugin(ctx context.Context, pluginID string) (*PluginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.DiscoverPlugin(ctx, pluginID)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		s.registry.ReplacePlugin(pluginID, nil)
		return res, err
	}

	var kept []card.Card
	errs := s.registry.ReplacePlugin(pluginID, res.Cards)
	for _, c := range res.Cards {
		if !rejected(errs, c.ID) {
			kept = append(kept, c)
		}
	}
	for _, e := range errs {
		slog.Warn("skipping card: duplicate id", "plugin", pluginID, "error", e)
		res.Warnings = append(res.Warnings, e)
	}
	res.Cards = kept
	slog.Info("plugin cards reloaded", "plugin", pluginID, "source", res.Source, "cards", len(kept))
	return res, nil
}

func addAll(b *registry.Builder, res *PluginResult) []card.Card {
	kept := make([]card.Card, 0, len(res.Cards))
	for _, c := range res.Cards {
		if err := b.Add(res.Plugin, c); err != nil {
			slog.Warn("skipping card: duplicate id", "plugin", res.Plugin, "error", err)
			res.Warnings = append(res.Warnings, err)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func rejected(errs []error, cardID string) bool {
	for _, err := range errs {
		var dup *registry.DuplicateCardIDError
		if errors.As(err, &dup) && dup.CardID == cardID {
			return true
		}
	}
	return false
}

func (s *Service) pluginDir(pluginID string) string {
	if s.pluginsDir == "" {
		return ""
	}
	return filepath.Join(s.pluginsDir, pluginID)
}

// capabilities returns the names fed to auto-generation: the handler table of
// a loaded plugin, else the manifest in its directory. exists is false when
// neither the plugin nor its directory is present.
func (s *Service) capabilities(pluginID string, inst *plugin.Instance, loaded bool, dir string) ([]string, bool, error) {
	if loaded {
		return inst.Handlers().Capabilities(), true, nil
	}
	if dir == "" {
		return nil, false, nil
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, cherr.Wrap(err, cherr.CodeDiscoveryPluginFailure, "reading plugin directory",
			cherr.FieldPlugin(pluginID))
	}
	m, err := plugin.ReadManifest(dir)
	if err != nil {
		slog.Warn("skipping plugin: invalid manifest", "plugin", pluginID, "error", err)
		return nil, false, err
	}
	if m == nil {
		return nil, true, nil
	}
	return m.CapabilityNames(), true, nil
}

// unbound reports every tool call that no running plugin can serve.
func (s *Service) unbound(cards []card.Card) []error {
	var warnings []error
	for _, c := range cards {
		for _, tc := range c.ToolCalls() {
			inst, ok := s.manager.Running(tc.ToolName)
			if ok && inst.Handlers().Has(tc.Capability, tc.Action) {
				continue
			}
			warnings = append(warnings, &UnboundCapabilityError{
				CardID: c.ID, Tool: tc.ToolName, Capability: tc.Capability, Action: tc.Action,
			})
		}
	}
	return warnings
}

func declares(inst *plugin.Instance) bool {
	_, ok := inst.Plugin().(plugin.CardDeclarer)
	return ok
}

func readCardFile(dir string) ([]byte, string, error) {
	if dir == "" {
		return nil, "", nil
	}
	for _, name := range CardFileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, path, cherr.Wrap(err, cherr.CodeDiscoveryPluginFailure, "reading card file",
				cherr.Field("path", path))
		}
	}
	return nil, "", nil
}

// parseDeclaration parses and validates a card file. Every invalid card is
// logged; any failure rejects the whole declaration.
func parseDeclaration(pluginID, path string, data []byte) ([]card.Card, error) {
	f, err := card.ParseFile(data)
	if err != nil {
		slog.Warn("rejecting card file: parse failure", "plugin", pluginID, "path", path, "error", err)
		return nil, cherr.With(err, cherr.FieldPlugin(pluginID), cherr.Field("path", path))
	}

	errs := card.ValidateAll(f.Cards)
	seen := make(map[string]bool, len(f.Cards))
	for _, c := range f.Cards {
		if c.ID != "" && seen[c.ID] {
			errs = append(errs, &card.SchemaValidationError{
				CardID:   c.ID,
				Problems: []string{"card_id declared more than once in " + filepath.Base(path)},
			})
		}
		seen[c.ID] = true
	}
	for _, err := range errs {
		slog.Warn("rejecting card file: invalid card", "plugin", pluginID, "path", path, "error", err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f.Cards, nil
}
