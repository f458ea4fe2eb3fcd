// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/cardhost/internal/store"
)

func newExecutionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "Show recent capability executions",
		RunE:  runExecutions,
	}
	cmd.Flags().String("tool", "", "only show executions of this tool")
	cmd.Flags().Int("limit", 20, "maximum number of records")
	addAddressFlag(cmd)
	return cmd
}

func runExecutions(cmd *cobra.Command, _ []string) error {
	tool, _ := cmd.Flags().GetString("tool")
	limit, _ := cmd.Flags().GetInt("limit")

	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if tool != "" {
		q.Set("tool", tool)
	}
	var body struct {
		Executions []store.ExecutionRecord `json:"executions"`
	}
	if err := clientFor(cmd).getJSON("/api/v1/executions?"+q.Encode(), &body); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(body.Executions) == 0 {
		_, _ = fmt.Fprintln(out, "No executions recorded.")
		return nil
	}
	t := newTable(out, "TIME", "CALLER", "CALL", "OK", "DURATION", "ERROR")
	for _, e := range body.Executions {
		t.AppendRow([]any{
			e.Timestamp.Local().Format(time.DateTime),
			e.Caller,
			e.Tool + "." + e.Capability + "." + e.Action,
			e.Success,
			e.Duration.Round(time.Microsecond),
			e.Error,
		})
	}
	t.Render()
	return nil
}
