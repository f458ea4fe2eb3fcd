// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package mcpbridge exposes the card catalog and the capability dispatcher
// as MCP tools so assistants can drive the same surface as the REST API.
package mcpbridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sigil-dev/cardhost/internal/dispatch"
	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// ServerName is announced to MCP clients during initialization.
const ServerName = "cardhost"

// Dispatcher executes capability calls. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Execute(ctx context.Context, req dispatch.Request, caller plugin.Caller) dispatch.Result
}

// Cards reads the card catalog. *registry.Registry satisfies it.
type Cards interface {
	List(category string) []card.Card
	Categories() []string
}

// Bridge owns an MCP server whose tools are backed by the registry and
// dispatcher.
type Bridge struct {
	mcp        *server.MCPServer
	cards      Cards
	dispatcher Dispatcher
}

// New creates a Bridge and registers its tools.
func New(cards Cards, d Dispatcher, version string) *Bridge {
	b := &Bridge{
		mcp: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(false),
		),
		cards:      cards,
		dispatcher: d,
	}
	b.registerTools()
	return b
}

// Server returns the underlying MCP server, e.g. for stdio transport.
func (b *Bridge) Server() *server.MCPServer { return b.mcp }

// Handler returns a streamable HTTP handler suitable for mounting at /mcp.
func (b *Bridge) Handler() http.Handler {
	return server.NewStreamableHTTPServer(b.mcp)
}

func (b *Bridge) registerTools() {
	listCards := mcp.NewTool("list_cards",
		mcp.WithDescription("List configuration cards in display order"),
		mcp.WithString("category",
			mcp.Description("Only return cards in this category"),
		),
	)
	b.mcp.AddTool(listCards, b.handleListCards)

	listCategories := mcp.NewTool("list_categories",
		mcp.WithDescription("List card categories with display names and icons"),
	)
	b.mcp.AddTool(listCategories, b.handleListCategories)

	execute := mcp.NewTool("execute",
		mcp.WithDescription("Execute a tool capability and return the result envelope"),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Plugin that owns the capability"),
		),
		mcp.WithString("capability",
			mcp.Required(),
			mcp.Description("Capability name, e.g. oauth2_management"),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Action within the capability"),
		),
		mcp.WithObject("parameters",
			mcp.Description("Parameters passed to the handler (JSON object)"),
		),
		mcp.WithString("caller_identity",
			mcp.Description("Identity recorded for the call; defaults to anonymous"),
		),
	)
	b.mcp.AddTool(execute, b.handleExecute)
}

func (b *Bridge) handleListCards(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cards := b.cards.List(request.GetString("category", ""))
	if cards == nil {
		cards = []card.Card{}
	}
	return jsonResult(map[string]any{"success": true, "cards": cards})
}

func (b *Bridge) handleListCategories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"success":    true,
		"categories": card.Categories(b.cards.Categories()),
	})
}

func (b *Bridge) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var req dispatch.Request
	var err error
	if req.ToolName, err = request.RequireString("tool_name"); err != nil {
		return mcp.NewToolResultError("tool_name argument is required"), nil
	}
	if req.Capability, err = request.RequireString("capability"); err != nil {
		return mcp.NewToolResultError("capability argument is required"), nil
	}
	if req.Action, err = request.RequireString("action"); err != nil {
		return mcp.NewToolResultError("action argument is required"), nil
	}
	if raw := request.GetArguments()["parameters"]; raw != nil {
		params, ok := raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("parameters must be a JSON object"), nil
		}
		req.Parameters = params
	}

	caller := plugin.AnonymousCaller
	if id := request.GetString("caller_identity", ""); id != "" {
		caller = plugin.Caller{Identity: id}
	}

	res := b.dispatcher.Execute(ctx, req, caller)
	if !res.Success {
		slog.Debug("mcp execute failed", "tool", req.ToolName, "capability", req.Capability,
			"action", req.Action, "error", res.Error)
	}
	out, err := jsonResult(res)
	if err != nil {
		return nil, err
	}
	out.IsError = !res.Success
	return out, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, cherr.Wrap(err, cherr.CodeServerInternalFailure, "encoding tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}
