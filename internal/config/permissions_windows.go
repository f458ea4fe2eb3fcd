// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions never warns on Windows, which uses ACLs.
func WarnInsecurePermissions(path string) bool {
	return WarnInsecureFile(path, "config file")
}

// WarnInsecureFile never warns on Windows, which uses ACLs.
func WarnInsecureFile(path, kind string) bool {
	if path != "" {
		slog.Debug("permission check not implemented on Windows", "kind", kind, "path", path)
	}
	return false
}
