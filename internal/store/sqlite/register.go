// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/cardhost/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newGatewayStore)
}

func newGatewayStore(dataPath string) (store.GatewayStore, error) {
	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return NewGatewayStore(filepath.Join(dataPath, "gateway.db"))
}
