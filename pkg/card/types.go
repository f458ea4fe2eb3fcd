// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package card provides the public card schema that tool plugins declare to
// describe their settings surface, along with validation and rendering helpers.
package card

import "slices"

// Type tags the rendering behavior of a card.
type Type string

const (
	TypeAction    Type = "action"
	TypeValue     Type = "value"
	TypeStatus    Type = "status"
	TypeComposite Type = "composite"
)

// ActionType is the visual weight of an action button.
type ActionType string

const (
	ActionPrimary   ActionType = "primary"
	ActionDanger    ActionType = "danger"
	ActionSecondary ActionType = "secondary"
)

// FieldType identifies the input control and coercion rules of a form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldPassword FieldType = "password"
	FieldEmail    FieldType = "email"
	FieldURL      FieldType = "url"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldTextarea FieldType = "textarea"
)

// Well-known categories. Any other string is accepted.
const (
	CategoryAuthentication = "authentication"
	CategoryAPIKeys        = "api_keys"
	CategoryTools          = "tools"
	CategoryMonitoring     = "monitoring"
)

// Card is a declarative unit of settings UI owned by a single plugin.
type Card struct {
	ID            string                   `yaml:"card_id" json:"card_id"`
	Type          Type                     `yaml:"type" json:"type"`
	Category      string                   `yaml:"category" json:"category"`
	Title         string                   `yaml:"title" json:"title"`
	Description   string                   `yaml:"description,omitempty" json:"description,omitempty"`
	Icon          string                   `yaml:"icon,omitempty" json:"icon,omitempty"`
	Order         int                      `yaml:"order,omitempty" json:"order"`
	Status        string                   `yaml:"status,omitempty" json:"status,omitempty"`
	Actions       []Action                 `yaml:"actions,omitempty" json:"actions,omitempty"`
	FormSchema    []Field                  `yaml:"form_schema,omitempty" json:"form_schema,omitempty"`
	StatusDisplay map[string]StatusDisplay `yaml:"status_display,omitempty" json:"status_display,omitempty"`
	Metrics       []Metric                 `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	DataSource    *ToolCall                `yaml:"data_source,omitempty" json:"data_source,omitempty"`
	SaveAction    *ToolCall                `yaml:"save_action,omitempty" json:"save_action,omitempty"`
}

// Action is a button on an action or composite card.
type Action struct {
	ID             string     `yaml:"id" json:"id"`
	Type           ActionType `yaml:"type,omitempty" json:"type,omitempty"`
	Label          string     `yaml:"label" json:"label"`
	Condition      string     `yaml:"condition,omitempty" json:"condition,omitempty"`
	ConfirmMessage string     `yaml:"confirm_message,omitempty" json:"confirm_message,omitempty"`
	ToolCall       ToolCall   `yaml:"tool_call" json:"tool_call"`
}

// ToolCall addresses one handler of one plugin. An empty ToolName means the
// plugin that owns the card.
type ToolCall struct {
	ToolName   string         `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
	Capability string         `yaml:"capability" json:"capability"`
	Action     string         `yaml:"action" json:"action"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Field is one entry of a value card's form schema.
type Field struct {
	Name        string     `yaml:"name" json:"name"`
	Type        FieldType  `yaml:"type" json:"type"`
	Label       string     `yaml:"label,omitempty" json:"label,omitempty"`
	Required    bool       `yaml:"required,omitempty" json:"required,omitempty"`
	Placeholder string     `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Default     any        `yaml:"default,omitempty" json:"default,omitempty"`
	Options     []string   `yaml:"options,omitempty" json:"options,omitempty"`
	Validation  Validation `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// SelectOptions returns the allowed values of a select field: the
// field-level options followed by any validation options not already listed.
func (f Field) SelectOptions() []string {
	out := slices.Clone(f.Options)
	for _, o := range f.Validation.Options {
		if !slices.Contains(out, o) {
			out = append(out, o)
		}
	}
	return out
}

// Validation holds the optional constraints of a field.
type Validation struct {
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	MinLength *int     `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Options   []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// StatusDisplay is the presentation of one status value.
type StatusDisplay struct {
	Icon    string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
	Color   string `yaml:"color,omitempty" json:"color,omitempty"`
}

// Metric names a value in the data_source result shown read-only on status cards.
type Metric struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// File is the on-disk layout of a plugin card declaration.
type File struct {
	Cards []Card `yaml:"cards" json:"cards"`
}

// ToolCalls returns every tool call referenced by the card: actions in
// declaration order, then data_source, then save_action.
func (c Card) ToolCalls() []ToolCall {
	calls := make([]ToolCall, 0, len(c.Actions)+2)
	for _, a := range c.Actions {
		calls = append(calls, a.ToolCall)
	}
	if c.DataSource != nil {
		calls = append(calls, *c.DataSource)
	}
	if c.SaveAction != nil {
		calls = append(calls, *c.SaveAction)
	}
	return calls
}

// ActionByID returns the action with the given id.
func (c Card) ActionByID(id string) (Action, bool) {
	for _, a := range c.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// WithToolName returns a copy of the card with every empty ToolName set to tool.
func (c Card) WithToolName(tool string) Card {
	out := c.Clone()
	for i := range out.Actions {
		if out.Actions[i].ToolCall.ToolName == "" {
			out.Actions[i].ToolCall.ToolName = tool
		}
	}
	if out.DataSource != nil && out.DataSource.ToolName == "" {
		out.DataSource.ToolName = tool
	}
	if out.SaveAction != nil && out.SaveAction.ToolName == "" {
		out.SaveAction.ToolName = tool
	}
	return out
}

// Clone returns a copy that shares no slices or pointers with c. Parameter
// maps are copied one level deep.
func (c Card) Clone() Card {
	out := c
	if c.Actions != nil {
		out.Actions = make([]Action, len(c.Actions))
		for i, a := range c.Actions {
			a.ToolCall = a.ToolCall.clone()
			out.Actions[i] = a
		}
	}
	if c.FormSchema != nil {
		out.FormSchema = append([]Field(nil), c.FormSchema...)
	}
	if c.StatusDisplay != nil {
		out.StatusDisplay = make(map[string]StatusDisplay, len(c.StatusDisplay))
		for k, v := range c.StatusDisplay {
			out.StatusDisplay[k] = v
		}
	}
	if c.Metrics != nil {
		out.Metrics = append([]Metric(nil), c.Metrics...)
	}
	if c.DataSource != nil {
		ds := c.DataSource.clone()
		out.DataSource = &ds
	}
	if c.SaveAction != nil {
		sa := c.SaveAction.clone()
		out.SaveAction = &sa
	}
	return out
}

func (tc ToolCall) clone() ToolCall {
	if tc.Parameters == nil {
		return tc
	}
	params := make(map[string]any, len(tc.Parameters))
	for k, v := range tc.Parameters {
		params[k] = v
	}
	tc.Parameters = params
	return tc
}

// Length returns a pointer for use in Validation length bounds.
func Length(v int) *int { return &v }

// Bound returns a pointer for use in Validation numeric bounds.
func Bound(v float64) *float64 { return &v }
