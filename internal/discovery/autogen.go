// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package discovery

import (
	"regexp"
	"slices"

	"github.com/sigil-dev/cardhost/pkg/card"
)

// Capability names are matched case-insensitively. Each rule fires at most
// once per plugin, bound to the first matching capability in sorted order.
var (
	oauthRe  = regexp.MustCompile(`(?i)oauth|authorize|token`)
	apiKeyRe = regexp.MustCompile(`(?i)api_key|secret|key`)
	configRe = regexp.MustCompile(`(?i)config|setting|preference`)
	healthRe = regexp.MustCompile(`(?i)health|status|ping|check`)
)

// Conventional action names the synthesized cards invoke.
const (
	actionAuthorize = "authorize"
	actionRevoke    = "revoke"
	actionStatus    = "status"
	actionSave      = "save"
	actionUpdate    = "update"
	actionCheck     = "check"
)

// Synthesize builds fallback cards for a plugin that declares none, from the
// names of its capabilities. It never fails; a plugin with no recognizable
// capability gets just the generic management card.
func Synthesize(pluginID string, capabilities []string) []card.Card {
	caps := slices.Clone(capabilities)
	slices.Sort(caps)
	caps = slices.Compact(caps)
	name := card.Humanize(pluginID)

	var cards []card.Card
	if capName, ok := firstMatch(caps, oauthRe); ok {
		cards = append(cards, oauthCard(pluginID, name, capName))
	}
	if capName, ok := firstMatch(caps, apiKeyRe); ok {
		cards = append(cards, apiKeyCard(pluginID, name, capName))
	}
	if capName, ok := firstMatch(caps, configRe); ok {
		cards = append(cards, configCard(pluginID, name, capName))
	}
	if capName, ok := firstMatch(caps, healthRe); ok {
		cards = append(cards, healthCard(pluginID, name, capName))
	}
	cards = append(cards, managementCard(pluginID, name))

	for i := range cards {
		cards[i] = cards[i].WithToolName(pluginID)
	}
	return cards
}

func firstMatch(caps []string, re *regexp.Regexp) (string, bool) {
	for _, c := range caps {
		if re.MatchString(c) {
			return c, true
		}
	}
	return "", false
}

func oauthCard(pluginID, name, capName string) card.Card {
	return card.Card{
		ID:          pluginID + "_oauth",
		Type:        card.TypeAction,
		Category:    card.CategoryAuthentication,
		Title:       name + " authorization",
		Description: "Connect or disconnect " + name + ".",
		Icon:        "🔐",
		Order:       10,
		Status:      "not_authorized",
		Actions: []card.Action{
			{
				ID:        actionAuthorize,
				Type:      card.ActionPrimary,
				Label:     "Authorize",
				Condition: `ne .status "authorized"`,
				ToolCall:  card.ToolCall{Capability: capName, Action: actionAuthorize},
			},
			{
				ID:             actionRevoke,
				Type:           card.ActionDanger,
				Label:          "Revoke",
				Condition:      `eq .status "authorized"`,
				ConfirmMessage: "Revoke access for " + name + "?",
				ToolCall:       card.ToolCall{Capability: capName, Action: actionRevoke},
			},
		},
		StatusDisplay: map[string]card.StatusDisplay{
			"authorized":     {Icon: "✅", Message: "Connected", Color: "green"},
			"not_authorized": {Icon: "⚪", Message: "Not connected", Color: "gray"},
		},
		DataSource: &card.ToolCall{Capability: capName, Action: actionStatus},
	}
}

func apiKeyCard(pluginID, name, capName string) card.Card {
	return card.Card{
		ID:          pluginID + "_api_key",
		Type:        card.TypeValue,
		Category:    card.CategoryAPIKeys,
		Title:       name + " API key",
		Description: "Credential used by " + name + ".",
		Icon:        "🔑",
		Order:       20,
		FormSchema: []card.Field{
			{Name: "api_key", Type: card.FieldPassword, Label: "API key", Required: true},
		},
		SaveAction: &card.ToolCall{Capability: capName, Action: actionSave},
	}
}

func configCard(pluginID, name, capName string) card.Card {
	return card.Card{
		ID:       pluginID + "_config",
		Type:     card.TypeValue,
		Category: card.CategoryTools,
		Title:    name + " settings",
		Icon:     "⚙️",
		Order:    30,
		FormSchema: []card.Field{
			{Name: "enabled", Type: card.FieldCheckbox, Label: "Enabled", Default: true},
		},
		SaveAction: &card.ToolCall{Capability: capName, Action: actionUpdate},
	}
}

func healthCard(pluginID, name, capName string) card.Card {
	return card.Card{
		ID:       pluginID + "_health",
		Type:     card.TypeStatus,
		Category: card.CategoryMonitoring,
		Title:    name + " health",
		Icon:     "📊",
		Order:    40,
		StatusDisplay: map[string]card.StatusDisplay{
			"healthy":   {Icon: "🟢", Message: "Healthy", Color: "green"},
			"degraded":  {Icon: "🟡", Message: "Degraded", Color: "yellow"},
			"unhealthy": {Icon: "🔴", Message: "Unhealthy", Color: "red"},
		},
		DataSource: &card.ToolCall{Capability: capName, Action: actionCheck},
	}
}

func managementCard(pluginID, name string) card.Card {
	return card.Card{
		ID:          pluginID + "_management",
		Type:        card.TypeStatus,
		Category:    card.CategoryTools,
		Title:       name,
		Description: "General management for " + name + ".",
		Icon:        "🛠️",
		Order:       100,
	}
}
