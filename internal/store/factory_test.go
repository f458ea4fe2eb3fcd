// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/cardhost/internal/store"
	_ "github.com/sigil-dev/cardhost/internal/store/sqlite" // register sqlite backend
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

func TestNewGatewayStore_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := &store.StorageConfig{
		Backend: "sqlite",
	}

	gs, err := store.NewGatewayStore(cfg, dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gs.Close() })
	assert.NotNil(t, gs.Executions())
	assert.NotNil(t, gs.Tokens())
}

func TestNewGatewayStore_DefaultBackend(t *testing.T) {
	gs, err := store.NewGatewayStore(nil, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gs.Close() })
	assert.NotNil(t, gs)
}

func TestNewGatewayStore_Memory(t *testing.T) {
	gs, err := store.NewGatewayStore(&store.StorageConfig{Backend: "memory"}, "")
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryGatewayStore{}, gs)
}

func TestNewGatewayStore_UnknownBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := &store.StorageConfig{
		Backend: "unknown",
	}

	_, err := store.NewGatewayStore(cfg, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
	assert.True(t, cherr.HasCode(err, cherr.CodeStoreBackendUnsupported))
}
