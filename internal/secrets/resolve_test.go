// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets_test

import (
	"testing"

	"github.com/sigil-dev/cardhost/internal/secrets"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsKeyringURI(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid URI", "keyring://cardhost/google-client-secret", true},
		{"valid URI with dashes", "keyring://my-svc/my-key", true},
		{"env var reference", "${GOOGLE_CLIENT_SECRET}", false},
		{"literal value", "sk-abc123", false},
		{"empty string", "", false},
		{"just scheme", "keyring://", true},
		{"other scheme", "vault://secret/key", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := secrets.IsKeyringURI(tt.value)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://cardhost/api-key", "cardhost", "api-key", false},
		{"dashes", "keyring://my-service/my-key-name", "my-service", "my-key-name", false},
		{"slashes in key", "keyring://cardhost/path/to/key", "cardhost", "path/to/key", false},
		{"not a keyring URI", "vault://secret/key", "", "", true},
		{"missing key", "keyring://cardhost/", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"missing both", "keyring://", "", "", true},
		{"no path", "keyring://cardhost", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, cherr.HasCode(err, cherr.CodeSecretInvalidInput))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantService, svc)
				assert.Equal(t, tt.wantKey, key)
			}
		})
	}
}

func TestResolveKeyringURI(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("cardhost", "test-key", "resolved-secret"))

	t.Run("resolves keyring URI", func(t *testing.T) {
		val, err := secrets.ResolveKeyringURI(ks, "keyring://cardhost/test-key")
		require.NoError(t, err)
		assert.Equal(t, "resolved-secret", val)
	})

	t.Run("passes through non-keyring values", func(t *testing.T) {
		val, err := secrets.ResolveKeyringURI(ks, "literal-value")
		require.NoError(t, err)
		assert.Equal(t, "literal-value", val)
	})

	t.Run("passes through env var references", func(t *testing.T) {
		val, err := secrets.ResolveKeyringURI(ks, "${ENV_VAR}")
		require.NoError(t, err)
		assert.Equal(t, "${ENV_VAR}", val)
	})

	t.Run("error on missing secret", func(t *testing.T) {
		_, err := secrets.ResolveKeyringURI(ks, "keyring://cardhost/nonexistent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resolving keyring URI")
	})

	t.Run("error on malformed URI", func(t *testing.T) {
		_, err := secrets.ResolveKeyringURI(ks, "keyring://bad")
		require.Error(t, err)
	})
}

func TestResolveViperSecrets(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Set("cardhost", "google-client-secret", "gcs-secret"))
	require.NoError(t, ks.Set("cardhost", "google-client-id", "gci-123.apps"))

	v := viper.New()
	v.Set("oauth.google.client_secret", "keyring://cardhost/google-client-secret")
	v.Set("oauth.google.client_id", "keyring://cardhost/google-client-id")
	v.Set("networking.listen", "127.0.0.1:18790") // non-keyring value
	v.Set("plugins.dir", "./plugins")

	require.NoError(t, secrets.ResolveViperSecrets(v, ks))

	assert.Equal(t, "gcs-secret", v.GetString("oauth.google.client_secret"))
	assert.Equal(t, "gci-123.apps", v.GetString("oauth.google.client_id"))
	assert.Equal(t, "127.0.0.1:18790", v.GetString("networking.listen"))
	assert.Equal(t, "./plugins", v.GetString("plugins.dir"))
}

func TestResolveViperSecrets_MissingSecretReturnsError(t *testing.T) {
	ks := secrets.NewKeyringStore()

	v := viper.New()
	v.Set("oauth.google.client_secret", "keyring://cardhost/nonexistent-key")

	err := secrets.ResolveViperSecrets(v, ks)

	// Should return an error with a clear message identifying the unresolved key.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth.google.client_secret")
	assert.Contains(t, err.Error(), "keyring://cardhost/nonexistent-key")
}
