// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/cardhost/internal/server"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway status",
		Long:  "Check the running gateway's health endpoint and summarize loaded plugins.",
		RunE:  runStatus,
	}
	addAddressFlag(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)
	var health server.HealthBody
	if err := gw.getJSON("/health", &health); err != nil {
		if cherr.HasCode(err, cherr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, err)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, health.Status)

	var body struct {
		Plugins []server.PluginSummary `json:"plugins"`
	}
	if err := gw.getJSON("/api/v1/plugins", &body); err != nil {
		return err
	}
	renderPlugins(cmd, body.Plugins)
	return nil
}
