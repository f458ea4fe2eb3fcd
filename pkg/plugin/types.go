// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package plugin provides public types for plugin authors.
// These types define the plugin.yaml manifest that sits next to a plugin's
// card declaration file.
package plugin

// ManifestFile is the file name discovery looks for in each plugin directory.
const ManifestFile = "plugin.yaml"

// Manifest describes a plugin's identity and the capabilities it exposes.
// Capabilities listed here feed card auto-generation when the plugin ships
// no card file of its own.
type Manifest struct {
	Name         string       `yaml:"name"`
	Version      string       `yaml:"version"`
	Description  string       `yaml:"description,omitempty"`
	Capabilities []Capability `yaml:"capabilities,omitempty"`
}

// Capability is a named group of actions.
type Capability struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Actions     []string `yaml:"actions,omitempty"`
}

// CapabilityNames returns the capability names in declaration order.
func (m *Manifest) CapabilityNames() []string {
	names := make([]string, 0, len(m.Capabilities))
	for _, c := range m.Capabilities {
		names = append(names, c.Name)
	}
	return names
}
