// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package discovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
	pkgplugin "github.com/sigil-dev/cardhost/pkg/plugin"
)

// Reloader re-discovers one plugin. *Service implements it.
type Reloader interface {
	ReloadPlugin(ctx context.Context, pluginID string) (*PluginResult, error)
}

// Watcher reloads a plugin's cards when its directory changes. Bursts of
// events for the same plugin are coalesced into a single reload.
type Watcher struct {
	mu sync.Mutex

	dir      string
	debounce time.Duration
	reloader Reloader

	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	stopCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for the plugins directory dir.
func NewWatcher(dir string, debounce time.Duration, reloader Reloader) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		reloader: reloader,
		pending:  make(map[string]*time.Timer),
	}
}

// Start begins watching. The plugins directory is created if missing.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.mu.Unlock()
		return cherr.Wrap(err, cherr.CodeDiscoveryWatchFailure, "creating plugins directory")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return cherr.Wrap(err, cherr.CodeDiscoveryWatchFailure, "creating watcher")
	}
	w.watcher = fw
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	if err := fw.Add(w.dir); err != nil {
		_ = w.Stop()
		return cherr.Wrap(err, cherr.CodeDiscoveryWatchFailure, "watching plugins directory",
			cherr.Field("path", w.dir))
	}
	entries, _ := os.ReadDir(w.dir)
	for _, e := range entries {
		if e.IsDir() {
			addPluginDir(fw, filepath.Join(w.dir, e.Name()))
		}
	}

	go w.processEvents(ctx, fw, w.stopCh)

	slog.Info("watching plugins directory", "path", w.dir)
	return nil
}

func addPluginDir(fw *fsnotify.Watcher, path string) {
	if err := fw.Add(path); err != nil {
		slog.Warn("cannot watch plugin directory", "path", path, "error", err)
	}
}

func (w *Watcher) processEvents(ctx context.Context, fw *fsnotify.Watcher, stopCh chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return
		case <-stopCh:
			w.cancelPending()
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("plugin watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	pluginID, file, ok := w.parse(event.Name)
	if !ok {
		return
	}

	if file == "" {
		// The plugin directory itself appeared or went away.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				addPluginDir(fw, event.Name)
			}
		}
	} else if !relevantFile(file) {
		return
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.schedule(ctx, pluginID)
}

// parse splits path into the plugin id and the file inside its directory.
func (w *Watcher) parse(path string) (pluginID, file string, ok bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if !pkgplugin.ValidName(parts[0]) {
		return "", "", false
	}
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func relevantFile(name string) bool {
	return name == pkgplugin.ManifestFile || slices.Contains(CardFileNames, name)
}

func (w *Watcher) schedule(ctx context.Context, pluginID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[pluginID]; ok {
		t.Stop()
	}
	w.pending[pluginID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, pluginID)
		running := w.running
		w.mu.Unlock()
		if !running || ctx.Err() != nil {
			return
		}

		if _, err := w.reloader.ReloadPlugin(ctx, pluginID); err != nil {
			slog.Warn("plugin reload failed", "plugin", pluginID, "error", err)
		}
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = make(map[string]*time.Timer)
}

// Stop stops watching. Pending reloads are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
		w.watcher = nil
	}
	return err
}
