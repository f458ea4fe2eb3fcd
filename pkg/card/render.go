// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package card

import "fmt"

// ViewKind is the rendering behavior selected for a card.
type ViewKind string

const (
	ViewButtons   ViewKind = "buttons"
	ViewForm      ViewKind = "form"
	ViewStatus    ViewKind = "status"
	ViewComposite ViewKind = "composite"
	ViewUnknown   ViewKind = "unknown"
)

// View is the client-facing rendering of a card for a given status.
type View struct {
	CardID   string      `json:"card_id"`
	Kind     ViewKind    `json:"kind"`
	Title    string      `json:"title"`
	Icon     string      `json:"icon,omitempty"`
	Status   string      `json:"status,omitempty"`
	Buttons  []Button    `json:"buttons,omitempty"`
	Form     *FormView   `json:"form,omitempty"`
	Display  *StatusView `json:"display,omitempty"`
	Fallback string      `json:"fallback,omitempty"`
}

// Button is one rendered action. Hidden buttons are kept with Visible=false
// so clients can animate state changes.
type Button struct {
	ID             string     `json:"id"`
	Label          string     `json:"label"`
	Type           ActionType `json:"type,omitempty"`
	Visible        bool       `json:"visible"`
	ConfirmMessage string     `json:"confirm_message,omitempty"`
	Invoke         ToolCall   `json:"invoke"`
}

// FormView is a value card form whose submission invokes Submit.
type FormView struct {
	Fields []Field  `json:"fields"`
	Submit ToolCall `json:"submit"`
}

// StatusView is a read-only status rendering with a manual refresh trigger.
type StatusView struct {
	Status  string         `json:"status,omitempty"`
	Display *StatusDisplay `json:"display,omitempty"`
	Metrics []Metric       `json:"metrics,omitempty"`
	Refresh *ToolCall      `json:"refresh,omitempty"`
}

// Render maps a card to its view. An empty status falls back to the card's
// own status. Unrecognized card types render as an explicit fallback.
func Render(c Card, status string) View {
	if status == "" {
		status = c.Status
	}
	v := View{CardID: c.ID, Title: c.Title, Icon: c.Icon, Status: status}

	switch c.Type {
	case TypeAction:
		v.Kind = ViewButtons
		v.Buttons = renderButtons(c, status)
	case TypeValue:
		v.Kind = ViewForm
		v.Form = renderForm(c)
	case TypeStatus:
		v.Kind = ViewStatus
		v.Display = renderStatus(c, status)
	case TypeComposite:
		v.Kind = ViewComposite
		v.Buttons = renderButtons(c, status)
		v.Form = renderForm(c)
		v.Display = renderStatus(c, status)
	default:
		v.Kind = ViewUnknown
		v.Fallback = fmt.Sprintf("unknown card type %q", c.Type)
	}
	return v
}

func renderButtons(c Card, status string) []Button {
	buttons := make([]Button, 0, len(c.Actions))
	for _, a := range c.Actions {
		visible, err := EvalCondition(a.Condition, status)
		if err != nil {
			visible = false
		}
		buttons = append(buttons, Button{
			ID:             a.ID,
			Label:          a.Label,
			Type:           a.Type,
			Visible:        visible,
			ConfirmMessage: a.ConfirmMessage,
			Invoke:         a.ToolCall,
		})
	}
	return buttons
}

func renderForm(c Card) *FormView {
	if c.SaveAction == nil && len(c.FormSchema) == 0 {
		return nil
	}
	form := &FormView{Fields: c.FormSchema}
	if c.SaveAction != nil {
		form.Submit = *c.SaveAction
	}
	return form
}

func renderStatus(c Card, status string) *StatusView {
	sv := &StatusView{Status: status, Metrics: c.Metrics, Refresh: c.DataSource}
	if d, ok := c.StatusDisplay[status]; ok {
		sv.Display = &d
	}
	return sv
}
