// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

//go:embed cardhost.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/cardhost/cardhost.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cherr.Errorf(cherr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cardhost", "cardhost.yaml"), nil
}

// BootstrapConfig writes the default commented config to path if it does not
// already exist. Returns the path written, or "" if nothing was written.
// Failures are logged and skipped.
func BootstrapConfig(path string) string {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			slog.Debug("skipping config bootstrap", "error", err)
			return ""
		}
	}

	if _, err := os.Stat(path); err == nil {
		return ""
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
