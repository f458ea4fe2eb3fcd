// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package apikeys implements openai_tool, which keeps an OpenAI API key in
// the secret store.
package apikeys

import (
	"context"
	_ "embed"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/secrets"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

const (
	Name       = "openai_tool"
	Capability = "api_key_management"

	keyAPIKey       = "api_key"
	keyOrganization = "organization"
)

const (
	StatusConfigured = "configured"
	StatusMissing    = "missing"
)

//go:embed cards.yaml
var cardFile []byte

// Tool is the openai_tool plugin.
type Tool struct {
	secrets secrets.Store
	service string
	table   *plugin.HandlerTable
}

// New creates the tool on top of s.
func New(s secrets.Store) *Tool {
	t := &Tool{secrets: s, service: secrets.ServiceFor(Name)}
	t.table = plugin.NewHandlerTable().
		Handle(Capability, "save", t.save,
			plugin.WithSchema(
				card.Field{
					Name:     keyAPIKey,
					Type:     card.FieldPassword,
					Required: true,
					Validation: card.Validation{
						Pattern:   "^sk-",
						MinLength: card.Length(10),
						MaxLength: card.Length(200),
					},
				},
				card.Field{Name: keyOrganization, Type: card.FieldText},
			)).
		Handle(Capability, "delete", t.delete).
		Handle(Capability, "status", t.status)
	return t
}

func (t *Tool) Name() string                   { return Name }
func (t *Tool) Handlers() *plugin.HandlerTable { return t.table }
func (t *Tool) CardFile() []byte               { return cardFile }

// APIKey returns the stored key for use by other components.
func (t *Tool) APIKey() (string, error) {
	return t.secrets.Get(t.service, keyAPIKey)
}

func (t *Tool) save(_ context.Context, call plugin.Call) (map[string]any, error) {
	key, _ := call.Params[keyAPIKey].(string)
	if err := t.secrets.Set(t.service, keyAPIKey, key); err != nil {
		return nil, err
	}

	org, _ := call.Params[keyOrganization].(string)
	if org != "" {
		if err := t.secrets.Set(t.service, keyOrganization, org); err != nil {
			return nil, err
		}
	} else if err := t.secrets.Delete(t.service, keyOrganization); err != nil && !cherr.HasCode(err, cherr.CodeSecretNotFound) {
		return nil, err
	}

	return map[string]any{"status": StatusConfigured, "masked_key": secrets.Mask(key)}, nil
}

func (t *Tool) delete(_ context.Context, _ plugin.Call) (map[string]any, error) {
	for _, k := range []string{keyAPIKey, keyOrganization} {
		if err := t.secrets.Delete(t.service, k); err != nil && !cherr.HasCode(err, cherr.CodeSecretNotFound) {
			return nil, err
		}
	}
	return map[string]any{"status": StatusMissing}, nil
}

func (t *Tool) status(_ context.Context, _ plugin.Call) (map[string]any, error) {
	key, err := t.secrets.Get(t.service, keyAPIKey)
	if cherr.HasCode(err, cherr.CodeSecretNotFound) {
		return map[string]any{"status": StatusMissing}, nil
	}
	if err != nil {
		return nil, err
	}

	out := map[string]any{"status": StatusConfigured, "masked_key": secrets.Mask(key)}
	if org, err := t.secrets.Get(t.service, keyOrganization); err == nil {
		out["organization"] = org
	}
	return out, nil
}
