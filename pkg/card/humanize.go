// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package card

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Humanize turns an identifier such as "api_keys" or "google-tool" into a
// display name ("Api Keys", "Google Tool").
func Humanize(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(words, " "))
}
