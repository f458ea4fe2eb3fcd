// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/cardhost/internal/secrets"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

func newSecretCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage tool secrets in the configured secret store",
		Long: "Set, inspect and delete the secrets tools read at execution time. " +
			"Secrets for a tool live under the keyring service cardhost/<tool>.",
	}

	cmd.AddCommand(
		newSecretSetCmd(v),
		newSecretGetCmd(v),
		newSecretListCmd(v),
		newSecretDeleteCmd(v),
	)

	return cmd
}

func openSecrets(v *viper.Viper) (secrets.Store, error) {
	return secretStoreFactory(v.GetString("secrets.backend"))
}

func newSecretSetCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <tool> <key>",
		Short: "Store a secret for a tool (reads stdin when --value is omitted)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, _ := cmd.Flags().GetString("value")
			if value == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return cherr.New(cherr.CodeCLIInputInvalid, "no secret value given on --value or stdin")
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return cherr.New(cherr.CodeCLIInputInvalid, "secret value must not be empty")
			}

			store, err := openSecrets(v)
			if err != nil {
				return err
			}
			tool, key := args[0], args[1]
			if err := store.Set(secrets.ServiceFor(tool), key, value); err != nil {
				return cherr.Wrapf(err, cherr.CodeSecretBackendFailure, "storing secret %s/%s", tool, key)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s/%s\n", tool, key)
			return nil
		},
	}
	cmd.Flags().String("value", "", "secret value; prefer stdin to keep it out of shell history")
	return cmd
}

func newSecretGetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "get <tool> <key>",
		Short: "Show a masked secret value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSecrets(v)
			if err != nil {
				return err
			}
			tool, key := args[0], args[1]
			value, err := store.Get(secrets.ServiceFor(tool), key)
			if err != nil {
				if cherr.HasCode(err, cherr.CodeSecretNotFound) {
					return cherr.Errorf(cherr.CodeSecretNotFound, "secret %s/%s not found", tool, key)
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s/%s = %s\n", tool, key, secrets.Mask(value))
			return nil
		},
	}
}

func newSecretListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list <tool>",
		Short: "List secret names stored for a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSecrets(v)
			if err != nil {
				return err
			}
			keys, err := store.List(secrets.ServiceFor(args[0]))
			if err != nil {
				return cherr.Wrapf(err, cherr.CodeSecretBackendFailure, "listing secrets for %s", args[0])
			}

			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				_, _ = fmt.Fprintln(out, "No secrets stored.")
				return nil
			}
			for _, k := range keys {
				_, _ = fmt.Fprintln(out, k)
			}
			return nil
		},
	}
}

func newSecretDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tool> <key>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSecrets(v)
			if err != nil {
				return err
			}
			tool, key := args[0], args[1]
			if err := store.Delete(secrets.ServiceFor(tool), key); err != nil {
				if cherr.HasCode(err, cherr.CodeSecretNotFound) {
					return cherr.Errorf(cherr.CodeSecretNotFound, "secret %s/%s not found", tool, key)
				}
				return cherr.Wrapf(err, cherr.CodeSecretBackendFailure, "deleting secret %s/%s", tool, key)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s/%s\n", tool, key)
			return nil
		},
	}
}
