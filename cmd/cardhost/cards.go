// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/cardhost/pkg/card"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

func newCardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Inspect and validate configuration cards",
		Long:  "List cards registered on a running gateway, or validate a card declaration file offline.",
	}

	cmd.AddCommand(
		newCardsListCmd(),
		newCardsCategoriesCmd(),
		newCardsValidateCmd(),
	)

	return cmd
}

func newCardsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered cards",
		RunE:  runCardsList,
	}
	cmd.Flags().String("category", "", "only list cards in this category")
	addAddressFlag(cmd)
	return cmd
}

func runCardsList(cmd *cobra.Command, _ []string) error {
	category, _ := cmd.Flags().GetString("category")
	path := "/api/v1/cards"
	if category != "" {
		path += "?" + url.Values{"category": {category}}.Encode()
	}

	var body struct {
		Cards []card.Card `json:"cards"`
	}
	if err := clientFor(cmd).getJSON(path, &body); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(body.Cards) == 0 {
		_, _ = fmt.Fprintln(out, "No cards registered.")
		return nil
	}

	t := newTable(out, "CATEGORY", "CARD", "TYPE", "TITLE", "ACTIONS")
	for _, c := range body.Cards {
		t.AppendRow([]any{c.Category, c.ID, c.Type, c.Title, len(c.ToolCalls())})
	}
	t.Render()
	return nil
}

func newCardsCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List card categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body struct {
				Categories []card.Category `json:"categories"`
			}
			if err := clientFor(cmd).getJSON("/api/v1/cards/categories", &body); err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "", "CATEGORY", "NAME")
			for _, c := range body.Categories {
				t.AppendRow([]any{c.Icon, c.ID, c.Name})
			}
			t.Render()
			return nil
		},
	}
	addAddressFlag(cmd)
	return cmd
}

func newCardsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a card declaration file",
		Long:  "Parse a cards.yaml or cards.json file and report every schema problem without contacting a gateway.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCardsValidate,
	}
}

func runCardsValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return cherr.Errorf(cherr.CodeCLIInputInvalid, "reading %s: %w", args[0], err)
	}
	f, err := card.ParseFile(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errs := card.ValidateAll(f.Cards)
	if len(errs) == 0 {
		_, _ = fmt.Fprintf(out, "%s: %d cards valid\n", args[0], len(f.Cards))
		return nil
	}
	for _, e := range errs {
		_, _ = fmt.Fprintf(out, "  %v\n", e)
	}
	return cherr.Errorf(cherr.CodeCardSchemaValidateInvalid, "%s: %d of %d cards invalid", args[0], len(errs), len(f.Cards))
}
