// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package redact

import "regexp"

// DefaultRules returns the credential patterns for the providers the
// gateway talks to plus a few generic shapes.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "bearer_token", Pattern: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{20,}=*`)},
		{Name: "openai_api_key", Pattern: regexp.MustCompile(`sk-(?:proj-|svcacct-)?[A-Za-z0-9_-]{20,}`)},
		{Name: "anthropic_api_key", Pattern: regexp.MustCompile(`sk-ant-[a-z0-9]+-[A-Za-z0-9_-]{20,}`)},
		{Name: "google_access_token", Pattern: regexp.MustCompile(`ya29\.[A-Za-z0-9_-]{20,}`)},
		{Name: "google_refresh_token", Pattern: regexp.MustCompile(`1//[A-Za-z0-9_-]{20,}`)},
		{Name: "google_client_secret", Pattern: regexp.MustCompile(`GOCSPX-[A-Za-z0-9_-]{20,}`)},
		{Name: "google_api_key", Pattern: regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
		{Name: "aws_access_key", Pattern: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
		{Name: "github_token", Pattern: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`)},
		{Name: "keyring_uri", Pattern: regexp.MustCompile(`keyring://[^\s"']+`)},
		{Name: "url_credentials", Pattern: regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s:@/]+:[^\s@/]+@`)},
		{Name: "secret_assignment", Pattern: regexp.MustCompile(`(?i)(?:api[_-]?key|client[_-]?secret|access[_-]?token|refresh[_-]?token|password)["']?\s*[:=]\s*["']?[^\s"',;&]{8,}`)},
	}
}
