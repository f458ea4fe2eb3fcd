// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"strings"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// ServicePrefix namespaces every keyring service the gateway writes.
const ServicePrefix = "cardhost"

// Store provides secure secret storage operations.
type Store interface {
	// Set saves a secret value under the given service and key.
	Set(service, key, value string) error

	// Get fetches the secret value for the given service and key.
	// Returns CodeSecretNotFound if the key does not exist.
	Get(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Returns CodeSecretNotFound if the key does not exist.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

// ServiceFor returns the keyring service that holds secrets for a tool.
func ServiceFor(tool string) string {
	return ServicePrefix + "/" + tool
}

// New returns the store for a configured backend: "keyring" or "memory".
func New(backend string) (Store, error) {
	switch backend {
	case "", "keyring":
		return NewKeyringStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, cherr.Errorf(cherr.CodeSecretUnsupported, "unsupported secrets backend: %q", backend)
	}
}

// Mask hides all but the last four characters of a secret.
func Mask(value string) string {
	r := []rune(value)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

func checkInput(op, service, key string) error {
	if service == "" {
		return cherr.Errorf(cherr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	}
	if key == "" {
		return cherr.Errorf(cherr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	}
	return nil
}
