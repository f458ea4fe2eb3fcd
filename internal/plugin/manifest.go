// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package plugin

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
	pkgplugin "github.com/sigil-dev/cardhost/pkg/plugin"
)

// ParseManifest parses YAML data into a Manifest and validates it.
func ParseManifest(data []byte) (*pkgplugin.Manifest, error) {
	var m pkgplugin.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, cherr.Errorf(cherr.CodePluginManifestValidateInvalid,
			"manifest parse: %s", err)
	}

	if err := m.Validate(); err != nil {
		return nil, cherr.Wrap(err, cherr.CodePluginManifestValidateInvalid, "invalid manifest")
	}

	return &m, nil
}

// ReadManifest loads plugin.yaml from dir. A missing manifest returns nil, nil.
func ReadManifest(dir string) (*pkgplugin.Manifest, error) {
	path := filepath.Join(dir, pkgplugin.ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cherr.Wrap(err, cherr.CodePluginManifestValidateInvalid, "reading manifest",
			cherr.Field("path", path))
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, cherr.With(err, cherr.Field("path", path))
	}
	return m, nil
}
