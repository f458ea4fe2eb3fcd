// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/sigil-dev/cardhost/internal/dispatch"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

func newExecuteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <tool> <capability> <action>",
		Short: "Execute a tool capability on a running gateway",
		Long: `Execute a (tool, capability, action) triple and print the result envelope.

Parameters given with --param are typed: true/false become booleans, numbers
become numbers, and JSON objects or arrays are decoded. Use --string to pass a
value verbatim.`,
		Example: `  cardhost execute google_tool oauth2_management authorize
  cardhost execute openai_tool api_key_management save --string api_key=sk-...`,
		Args: cobra.ExactArgs(3),
		RunE: runExecute,
	}
	cmd.Flags().StringArrayP("param", "p", nil, "typed parameter key=value (repeatable)")
	cmd.Flags().StringArrayP("string", "s", nil, "string parameter key=value (repeatable)")
	cmd.Flags().String("caller", "", "caller identity sent with the request")
	addAddressFlag(cmd)
	return cmd
}

func runExecute(cmd *cobra.Command, args []string) error {
	typed, _ := cmd.Flags().GetStringArray("param")
	literal, _ := cmd.Flags().GetStringArray("string")
	params, err := parseParams(typed, literal)
	if err != nil {
		return err
	}

	c := clientFor(cmd)
	c.caller, _ = cmd.Flags().GetString("caller")

	req := dispatch.Request{ToolName: args[0], Capability: args[1], Action: args[2], Parameters: params}
	var res dispatch.Result
	if err := c.postJSON("/api/v1/tools/execute", req, &res); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return cherr.Errorf(cherr.CodeCLIResponseInvalid, "printing result: %w", err)
	}
	if !res.Success {
		return cherr.Errorf(cherr.CodeCLIRequestFailure, "%s.%s.%s failed: %s",
			res.ToolName, res.Capability, res.Action, res.Error)
	}
	return nil
}

// parseParams builds the parameter map. Literal values override typed ones
// with the same key.
func parseParams(typed, literal []string) (map[string]any, error) {
	params := make(map[string]any, len(typed)+len(literal))
	for _, kv := range typed {
		k, v, err := splitParam(kv)
		if err != nil {
			return nil, err
		}
		params[k] = inferValue(v)
	}
	for _, kv := range literal {
		k, v, err := splitParam(kv)
		if err != nil {
			return nil, err
		}
		params[k] = v
	}
	return params, nil
}

func splitParam(kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", cherr.Errorf(cherr.CodeCLIInputInvalid, "parameter %q must be key=value", kv)
	}
	return k, v, nil
}

func inferValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "false":
		return cast.ToBool(s)
	}
	if f, err := cast.ToFloat64E(s); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
