// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/store"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// OAuthCapability is the capability that completes an OAuth redirect.
const OAuthCapability = "oauth2_management"

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Card endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cards",
		Method:      http.MethodGet,
		Path:        "/api/v1/cards",
		Summary:     "List cards, optionally filtered by category",
		Tags:        []string{"cards"},
	}, s.handleListCards)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-card-categories",
		Method:      http.MethodGet,
		Path:        "/api/v1/cards/categories",
		Summary:     "List card categories",
		Tags:        []string{"cards"},
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-card",
		Method:      http.MethodGet,
		Path:        "/api/v1/cards/{id}",
		Summary:     "Get card",
		Tags:        []string{"cards"},
	}, s.handleGetCard)

	huma.Register(s.api, huma.Operation{
		OperationID: "view-card",
		Method:      http.MethodGet,
		Path:        "/api/v1/cards/{id}/view",
		Summary:     "Render card for a status",
		Tags:        []string{"cards"},
	}, s.handleViewCard)

	huma.Register(s.api, huma.Operation{
		OperationID: "save-card",
		Method:      http.MethodPost,
		Path:        "/api/v1/cards/{id}/save",
		Summary:     "Submit value card form",
		Tags:        []string{"cards"},
	}, s.handleSaveCard)

	huma.Register(s.api, huma.Operation{
		OperationID: "run-card-action",
		Method:      http.MethodPost,
		Path:        "/api/v1/cards/{id}/actions/{actionId}",
		Summary:     "Run card action",
		Tags:        []string{"cards"},
	}, s.handleCardAction)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-card",
		Method:      http.MethodPost,
		Path:        "/api/v1/cards/{id}/refresh",
		Summary:     "Invoke card data source",
		Tags:        []string{"cards"},
	}, s.handleRefreshCard)

	// Tool endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "execute-tool",
		Method:      http.MethodPost,
		Path:        "/api/v1/tools/execute",
		Summary:     "Execute a tool capability",
		Tags:        []string{"tools"},
	}, s.handleExecute)

	huma.Register(s.api, huma.Operation{
		OperationID: "oauth-callback",
		Method:      http.MethodGet,
		Path:        "/api/v1/oauth/{tool}/callback",
		Summary:     "Complete an OAuth authorization",
		Tags:        []string{"tools"},
	}, s.handleOAuthCallback)

	// Plugin endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-plugins",
		Method:      http.MethodGet,
		Path:        "/api/v1/plugins",
		Summary:     "List plugins",
		Tags:        []string{"plugins"},
	}, s.handleListPlugins)

	huma.Register(s.api, huma.Operation{
		OperationID: "reload-plugins",
		Method:      http.MethodPost,
		Path:        "/api/v1/plugins/reload",
		Summary:     "Rebuild the card registry",
		Tags:        []string{"plugins"},
	}, s.handleRebuild)

	huma.Register(s.api, huma.Operation{
		OperationID: "reload-plugin",
		Method:      http.MethodPost,
		Path:        "/api/v1/plugins/{name}/reload",
		Summary:     "Reload one plugin's cards",
		Tags:        []string{"plugins"},
	}, s.handleReloadPlugin)

	// Execution log
	huma.Register(s.api, huma.Operation{
		OperationID: "list-executions",
		Method:      http.MethodGet,
		Path:        "/api/v1/executions",
		Summary:     "Query the execution log",
		Tags:        []string{"system"},
	}, s.handleListExecutions)
}

// --- Request/Response types for huma ---

type listCardsInput struct {
	Category string `query:"category" doc:"Only cards in this category"`
}

type listCardsOutput struct {
	Body struct {
		Success bool        `json:"success"`
		Cards   []card.Card `json:"cards"`
	}
}

type listCategoriesOutput struct {
	Body struct {
		Success    bool            `json:"success"`
		Categories []card.Category `json:"categories"`
	}
}

type cardIDInput struct {
	ID string `path:"id"`
}

type getCardOutput struct {
	Body struct {
		Success bool      `json:"success"`
		Card    card.Card `json:"card"`
	}
}

type viewCardInput struct {
	ID     string `path:"id"`
	Status string `query:"status" doc:"Status to render; defaults to the card's own"`
}

type viewCardOutput struct {
	Body struct {
		Success bool      `json:"success"`
		View    card.View `json:"view"`
	}
}

type saveCardInput struct {
	ID   string `path:"id"`
	Body struct {
		CardID         string         `json:"card_id,omitempty" doc:"Must match the path id when given"`
		Values         map[string]any `json:"values,omitempty" doc:"Form values keyed by field name"`
		CallerIdentity string         `json:"caller_identity,omitempty" doc:"Overrides the X-Caller-ID header"`
	}
}

type cardActionInput struct {
	ID       string `path:"id"`
	ActionID string `path:"actionId"`
	Body     struct {
		CardID         string         `json:"card_id,omitempty" doc:"Must match the path id when given"`
		ActionID       string         `json:"action_id,omitempty" doc:"Must match the path action id when given"`
		Parameters     map[string]any `json:"parameters,omitempty" doc:"Caller parameters; override the action's static ones"`
		CallerIdentity string         `json:"caller_identity,omitempty" doc:"Overrides the X-Caller-ID header"`
	}
}

type executeInput struct {
	Body struct {
		ToolName       string         `json:"tool_name,omitempty"`
		Capability     string         `json:"capability,omitempty"`
		Action         string         `json:"action,omitempty"`
		Parameters     map[string]any `json:"parameters,omitempty"`
		CallerIdentity string         `json:"caller_identity,omitempty" doc:"Overrides the X-Caller-ID header"`
	}
}

type oauthCallbackInput struct {
	Tool  string `path:"tool"`
	Code  string `query:"code"`
	State string `query:"state"`
	Error string `query:"error" doc:"Set by the provider when the user denied access"`
}

type envelopeOutput struct {
	Body dispatch.Result
}

type listPluginsOutput struct {
	Body struct {
		Plugins []PluginSummary `json:"plugins"`
	}
}

type rebuildOutput struct {
	Body struct {
		Registered int            `json:"registered"`
		Plugins    []PluginReport `json:"plugins"`
	}
}

type pluginNameInput struct {
	Name string `path:"name"`
}

type reloadPluginOutput struct {
	Body PluginReport
}

type listExecutionsInput struct {
	Tool       string `query:"tool"`
	Capability string `query:"capability"`
	Caller     string `query:"caller"`
	Limit      int    `query:"limit" minimum:"0" maximum:"1000" default:"100"`
	Offset     int    `query:"offset" minimum:"0"`
}

type listExecutionsOutput struct {
	Body struct {
		Executions []*store.ExecutionRecord `json:"executions"`
	}
}

// --- Handlers ---

func (s *Server) handleListCards(_ context.Context, input *listCardsInput) (*listCardsOutput, error) {
	out := &listCardsOutput{}
	out.Body.Success = true
	out.Body.Cards = s.services.cards.List(input.Category)
	if out.Body.Cards == nil {
		out.Body.Cards = []card.Card{}
	}
	return out, nil
}

func (s *Server) handleListCategories(_ context.Context, _ *struct{}) (*listCategoriesOutput, error) {
	out := &listCategoriesOutput{}
	out.Body.Success = true
	out.Body.Categories = card.Categories(s.services.cards.Categories())
	return out, nil
}

func (s *Server) handleGetCard(_ context.Context, input *cardIDInput) (*getCardOutput, error) {
	c, err := s.services.cards.Get(input.ID)
	if err != nil {
		return nil, httpError(err, fmt.Sprintf("card %q not found", input.ID))
	}
	out := &getCardOutput{}
	out.Body.Success = true
	out.Body.Card = c
	return out, nil
}

func (s *Server) handleViewCard(_ context.Context, input *viewCardInput) (*viewCardOutput, error) {
	c, err := s.services.cards.Get(input.ID)
	if err != nil {
		return nil, httpError(err, fmt.Sprintf("card %q not found", input.ID))
	}
	out := &viewCardOutput{}
	out.Body.Success = true
	out.Body.View = card.Render(c, input.Status)
	return out, nil
}

func (s *Server) handleSaveCard(ctx context.Context, input *saveCardInput) (*envelopeOutput, error) {
	if res, ok := idMismatch("card_id", input.Body.CardID, input.ID); !ok {
		return &envelopeOutput{Body: res}, nil
	}
	caller := resolveCaller(ctx, input.Body.CallerIdentity)
	res := s.services.dispatcher.SaveCard(ctx, input.ID, input.Body.Values, caller)
	return &envelopeOutput{Body: res}, nil
}

func (s *Server) handleCardAction(ctx context.Context, input *cardActionInput) (*envelopeOutput, error) {
	if res, ok := idMismatch("card_id", input.Body.CardID, input.ID); !ok {
		return &envelopeOutput{Body: res}, nil
	}
	if res, ok := idMismatch("action_id", input.Body.ActionID, input.ActionID); !ok {
		return &envelopeOutput{Body: res}, nil
	}
	caller := resolveCaller(ctx, input.Body.CallerIdentity)
	res := s.services.dispatcher.RunCardAction(ctx, input.ID, input.ActionID, input.Body.Parameters, caller)
	return &envelopeOutput{Body: res}, nil
}

// idMismatch reports a failure envelope when an id echoed in the body
// contradicts the one in the path. An empty body id is accepted.
func idMismatch(field, bodyID, pathID string) (dispatch.Result, bool) {
	if bodyID == "" || bodyID == pathID {
		return dispatch.Result{}, true
	}
	return dispatch.Result{
		Error:     fmt.Sprintf("%s %q in body does not match %q in path", field, bodyID, pathID),
		ErrorCode: string(cherr.CodeServerRequestInvalid),
	}, false
}

func (s *Server) handleRefreshCard(ctx context.Context, input *cardIDInput) (*envelopeOutput, error) {
	res := s.services.dispatcher.RefreshCard(ctx, input.ID, resolveCaller(ctx, ""))
	return &envelopeOutput{Body: res}, nil
}

func (s *Server) handleExecute(ctx context.Context, input *executeInput) (*envelopeOutput, error) {
	req := dispatch.Request{
		ToolName:   input.Body.ToolName,
		Capability: input.Body.Capability,
		Action:     input.Body.Action,
		Parameters: input.Body.Parameters,
	}
	res := s.services.dispatcher.Execute(ctx, req, resolveCaller(ctx, input.Body.CallerIdentity))
	return &envelopeOutput{Body: res}, nil
}

func (s *Server) handleOAuthCallback(ctx context.Context, input *oauthCallbackInput) (*envelopeOutput, error) {
	if input.Error != "" {
		return &envelopeOutput{Body: dispatch.Result{
			ToolName:   input.Tool,
			Capability: OAuthCapability,
			Action:     "callback",
			Error:      "authorization denied: " + input.Error,
			ErrorCode:  string(cherr.CodeToolAuthForbidden),
		}}, nil
	}
	req := dispatch.Request{
		ToolName:   input.Tool,
		Capability: OAuthCapability,
		Action:     "callback",
		Parameters: map[string]any{"code": input.Code, "state": input.State},
	}
	res := s.services.dispatcher.Execute(ctx, req, resolveCaller(ctx, ""))
	return &envelopeOutput{Body: res}, nil
}

func (s *Server) handleListPlugins(_ context.Context, _ *struct{}) (*listPluginsOutput, error) {
	counts := s.services.cards.Snapshot().Plugins()
	seen := make(map[string]bool)

	out := &listPluginsOutput{}
	out.Body.Plugins = []PluginSummary{}
	for _, inst := range s.services.plugins.List() {
		name := inst.Name()
		seen[name] = true
		sum := PluginSummary{
			Name:         name,
			State:        inst.State().String(),
			Capabilities: inst.Handlers().Capabilities(),
			Cards:        counts[name],
			LoadedAt:     inst.LoadedAt(),
		}
		if err := inst.Err(); err != nil {
			sum.Error = err.Error()
		}
		out.Body.Plugins = append(out.Body.Plugins, sum)
	}
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		if !seen[name] {
			out.Body.Plugins = append(out.Body.Plugins, PluginSummary{
				Name:  name,
				State: StateUnloaded,
				Cards: counts[name],
			})
		}
	}
	return out, nil
}

func (s *Server) handleRebuild(ctx context.Context, _ *struct{}) (*rebuildOutput, error) {
	report, err := s.services.discovery.Rebuild(ctx)
	if err != nil {
		return nil, httpError(err, "rebuilding card registry")
	}
	out := &rebuildOutput{}
	out.Body.Registered = report.Registered
	out.Body.Plugins = make([]PluginReport, 0, len(report.Plugins))
	for _, res := range report.Plugins {
		out.Body.Plugins = append(out.Body.Plugins, pluginReport(res))
	}
	return out, nil
}

func (s *Server) handleReloadPlugin(ctx context.Context, input *pluginNameInput) (*reloadPluginOutput, error) {
	res, err := s.services.discovery.ReloadPlugin(ctx, input.Name)
	if err != nil && ctx.Err() != nil {
		return nil, httpError(err, fmt.Sprintf("reloading plugin %q", input.Name))
	}
	if res == nil {
		return nil, httpError(err, fmt.Sprintf("reloading plugin %q", input.Name))
	}
	if res.Removed {
		return nil, huma.Error404NotFound(fmt.Sprintf("plugin %q not found", input.Name))
	}
	// A rejected declaration is reported in the body, not as a failure.
	return &reloadPluginOutput{Body: pluginReport(res)}, nil
}

func (s *Server) handleListExecutions(ctx context.Context, input *listExecutionsInput) (*listExecutionsOutput, error) {
	if s.services.executions == nil {
		return nil, huma.Error503ServiceUnavailable("execution log not configured")
	}
	records, err := s.services.executions.Query(ctx, store.ExecutionFilter{
		Tool:       input.Tool,
		Capability: input.Capability,
		Caller:     input.Caller,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("querying execution log", err)
	}
	out := &listExecutionsOutput{}
	out.Body.Executions = records
	if out.Body.Executions == nil {
		out.Body.Executions = []*store.ExecutionRecord{}
	}
	return out, nil
}

// httpError maps a coded error to the matching HTTP status.
func httpError(err error, msg string) error {
	return huma.NewError(cherr.HTTPStatus(err), msg, err)
}
