// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// exposedBits are the group and other permission bits that make a file
// readable or writable by someone other than its owner.
const exposedBits fs.FileMode = 0o066

// WarnInsecurePermissions logs a warning when the config file is group- or
// world-accessible. The file may hold OAuth client secrets.
func WarnInsecurePermissions(path string) bool {
	return WarnInsecureFile(path, "config file")
}

// WarnInsecureFile logs a warning naming kind when the file at path is
// accessible to users other than its owner, and reports whether it did.
// Missing files and stat errors are logged at debug and never fail startup.
func WarnInsecureFile(path, kind string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("permission check skipped", "kind", kind, "path", path, "error", err)
		return false
	}

	mode := info.Mode()
	if mode.Perm()&exposedBits == 0 {
		return false
	}
	slog.Warn(kind+" has insecure permissions, secrets may be exposed to other users",
		"path", path,
		"mode", mode,
		"recommended", "0600",
	)
	return true
}
