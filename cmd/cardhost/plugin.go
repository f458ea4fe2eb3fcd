// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/cardhost/internal/server"
)

func newPluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Inspect plugins and reload their cards",
		Long:  "List plugins known to a running gateway and re-run card discovery for one or all of them.",
	}

	cmd.AddCommand(
		newPluginListCmd(),
		newPluginReloadCmd(),
	)

	return cmd
}

func newPluginListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugins with state and card counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body struct {
				Plugins []server.PluginSummary `json:"plugins"`
			}
			if err := clientFor(cmd).getJSON("/api/v1/plugins", &body); err != nil {
				return err
			}
			renderPlugins(cmd, body.Plugins)
			return nil
		},
	}
	addAddressFlag(cmd)
	return cmd
}

func renderPlugins(cmd *cobra.Command, plugins []server.PluginSummary) {
	out := cmd.OutOrStdout()
	if len(plugins) == 0 {
		_, _ = fmt.Fprintln(out, "No plugins loaded.")
		return
	}
	t := newTable(out, "PLUGIN", "STATE", "CARDS", "CAPABILITIES")
	for _, p := range plugins {
		t.AppendRow([]any{p.Name, p.State, p.Cards, strings.Join(p.Capabilities, ", ")})
	}
	t.Render()
}

func newPluginReloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload [name]",
		Short: "Reload one plugin's cards, or rebuild the whole registry",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPluginReload,
	}
	addAddressFlag(cmd)
	return cmd
}

func runPluginReload(cmd *cobra.Command, args []string) error {
	c := clientFor(cmd)
	var reports []server.PluginReport

	if len(args) == 1 {
		var report server.PluginReport
		if err := c.postJSON("/api/v1/plugins/"+url.PathEscape(args[0])+"/reload", nil, &report); err != nil {
			return err
		}
		reports = append(reports, report)
	} else {
		var body struct {
			Registered int                   `json:"registered"`
			Plugins    []server.PluginReport `json:"plugins"`
		}
		if err := c.postJSON("/api/v1/plugins/reload", nil, &body); err != nil {
			return err
		}
		reports = body.Plugins
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Registry rebuilt: %d cards\n", body.Registered)
	}

	t := newTable(cmd.OutOrStdout(), "PLUGIN", "SOURCE", "CARDS", "WARNINGS", "ERROR")
	for _, r := range reports {
		t.AppendRow([]any{r.Plugin, r.Source, len(r.Cards), len(r.Warnings), r.Error})
	}
	t.Render()
	return nil
}
