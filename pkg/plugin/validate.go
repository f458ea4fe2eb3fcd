// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package plugin

import (
	"fmt"
	"regexp"
	"strings"
)

// semverRe matches strict semver (no "v" prefix): MAJOR.MINOR.PATCH[-prerelease][+build].
// Leading zeros on numeric segments are disallowed per semver spec.
var semverRe = regexp.MustCompile(
	`^(?:0|[1-9]\d*)\.(?:0|[1-9]\d*)\.(?:0|[1-9]\d*)` +
		`(?:-(?:[0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?` +
		`(?:\+(?:[0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`,
)

// nameRe matches plugin ids. They double as directory names and tool names.
var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

// identRe matches capability and action identifiers.
var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidName reports whether name is usable as a plugin id.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// Validate checks that the Manifest is well-formed. It returns an error
// describing the first validation failure encountered, or nil.
func (m *Manifest) Validate() error {
	if err := m.validateName(); err != nil {
		return err
	}
	if err := m.validateVersion(); err != nil {
		return err
	}
	return m.validateCapabilities()
}

func (m *Manifest) validateName() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest validation: name must not be empty")
	}
	if !ValidName(m.Name) {
		return fmt.Errorf("manifest validation: name %q must be lowercase alphanumeric with '_' or '-'", m.Name)
	}
	return nil
}

func (m *Manifest) validateVersion() error {
	if m.Version == "" {
		return fmt.Errorf("manifest validation: version must not be empty")
	}
	if !semverRe.MatchString(m.Version) {
		return fmt.Errorf("manifest validation: version must be valid semver (MAJOR.MINOR.PATCH), got %q", m.Version)
	}
	return nil
}

func (m *Manifest) validateCapabilities() error {
	seen := make(map[string]bool, len(m.Capabilities))
	for i, c := range m.Capabilities {
		if !identRe.MatchString(c.Name) {
			return fmt.Errorf("manifest validation: capabilities[%d]: name %q contains invalid characters", i, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("manifest validation: capabilities[%d]: duplicate capability %q", i, c.Name)
		}
		seen[c.Name] = true

		actions := make(map[string]bool, len(c.Actions))
		for _, a := range c.Actions {
			if !identRe.MatchString(a) {
				return fmt.Errorf("manifest validation: capabilities[%d]: action %q contains invalid characters", i, a)
			}
			if actions[a] {
				return fmt.Errorf("manifest validation: capabilities[%d]: duplicate action %q", i, a)
			}
			actions[a] = true
		}
	}
	return nil
}
