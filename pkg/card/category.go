// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package card

// Category is display metadata for a card category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

const defaultCategoryIcon = "📦"

var knownCategories = map[string]Category{
	"authentication": {ID: "authentication", Name: "Authentication", Icon: "🔐"},
	"api_keys":       {ID: "api_keys", Name: "API Keys", Icon: "🔑"},
	"tools":          {ID: "tools", Name: "Tools", Icon: "🛠️"},
	"monitoring":     {ID: "monitoring", Name: "Monitoring", Icon: "📊"},
	"integrations":   {ID: "integrations", Name: "Integrations", Icon: "🔌"},
	"notifications":  {ID: "notifications", Name: "Notifications", Icon: "🔔"},
	"general":        {ID: "general", Name: "General", Icon: "⚙️"},
}

// CategoryInfo returns display metadata for id. Unknown categories get a
// humanized name and a generic icon.
func CategoryInfo(id string) Category {
	if c, ok := knownCategories[id]; ok {
		return c
	}
	return Category{ID: id, Name: Humanize(id), Icon: defaultCategoryIcon}
}

// Categories maps ids to metadata, preserving order.
func Categories(ids []string) []Category {
	out := make([]Category, 0, len(ids))
	for _, id := range ids {
		out = append(out, CategoryInfo(id))
	}
	return out
}
