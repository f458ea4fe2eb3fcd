// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package dispatch

import (
	"context"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// SaveCard validates values against the card's form schema and routes them
// to its save_action.
func (d *Dispatcher) SaveCard(ctx context.Context, cardID string, values map[string]any, caller plugin.Caller) Result {
	c, err := d.lookupCard(cardID)
	if err != nil {
		return failure(Request{}, err)
	}
	if c.SaveAction == nil || (c.Type != card.TypeValue && c.Type != card.TypeComposite) {
		return failure(Request{}, cherr.Errorf(cherr.CodeDispatchCardNotSavable, "card %s does not accept values", cardID))
	}

	req := d.routed(cardID, *c.SaveAction)
	details := map[string]any{"card_id": cardID, "route": "save"}
	sanitized, err := card.ValidateFormInput(values, c.FormSchema)
	if err != nil {
		if caller.Identity == "" {
			caller = plugin.AnonymousCaller
		}
		res := failure(req, err)
		d.record(ctx, req, caller, res, 0, details)
		return res
	}
	req.Parameters = sanitized
	return d.execute(ctx, req, c.SaveAction.Parameters, caller, details)
}

// RunCardAction invokes one of the card's declared actions. Action
// conditions are not evaluated here; they only control rendering.
func (d *Dispatcher) RunCardAction(ctx context.Context, cardID, actionID string, params map[string]any, caller plugin.Caller) Result {
	c, err := d.lookupCard(cardID)
	if err != nil {
		return failure(Request{}, err)
	}
	action, ok := c.ActionByID(actionID)
	if !ok {
		return failure(Request{}, &ActionNotFoundError{CardID: cardID, Action: actionID})
	}

	req := d.routed(cardID, action.ToolCall)
	req.Parameters = params
	return d.execute(ctx, req, action.ToolCall.Parameters, caller, map[string]any{"card_id": cardID, "route": "action", "action_id": actionID})
}

// RefreshCard invokes the card's data_source.
func (d *Dispatcher) RefreshCard(ctx context.Context, cardID string, caller plugin.Caller) Result {
	c, err := d.lookupCard(cardID)
	if err != nil {
		return failure(Request{}, err)
	}
	if c.DataSource == nil {
		return failure(Request{}, &ActionNotFoundError{CardID: cardID, Action: "data_source"})
	}

	req := d.routed(cardID, *c.DataSource)
	return d.execute(ctx, req, c.DataSource.Parameters, caller, map[string]any{"card_id": cardID, "route": "refresh"})
}

func (d *Dispatcher) lookupCard(cardID string) (card.Card, error) {
	c, err := d.cards.Get(cardID)
	if err != nil {
		return card.Card{}, &CardNotFoundError{CardID: cardID}
	}
	return c, nil
}

// routed turns a card tool call into a Request, defaulting the tool to the
// plugin that owns the card.
func (d *Dispatcher) routed(cardID string, tc card.ToolCall) Request {
	tool := tc.ToolName
	if tool == "" {
		tool, _ = d.cards.Owner(cardID)
	}
	return Request{ToolName: tool, Capability: tc.Capability, Action: tc.Action}
}
