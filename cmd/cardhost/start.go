// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/cardhost/internal/config"
	"github.com/sigil-dev/cardhost/internal/secrets"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// secretStoreFactory creates the secret store for a backend name. It is a
// package-level variable so tests can substitute an in-memory store.
var secretStoreFactory = secrets.New

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the cardhost gateway",
		Long:  "Load configuration, load tool plugins, discover cards, and start the HTTP server.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd, v)
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = v.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

// loadConfig builds the typed config from v, resolving keyring:// values
// through the configured secret backend.
func loadConfig(v *viper.Viper) (*config.Config, secrets.Store, error) {
	sec, err := secretStoreFactory(v.GetString("secrets.backend"))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load("", config.WithViper(v), config.WithSecrets(sec))
	if err != nil {
		return nil, nil, cherr.Wrap(err, cherr.CodeConfigLoadReadFailure, "loading config")
	}
	return cfg, sec, nil
}

func runStart(cmd *cobra.Command, v *viper.Viper) error {
	cfg, sec, err := loadConfig(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := WireGateway(ctx, cfg, sec)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting cardhost on %s (cards=%d, mcp=%t)\n",
		cfg.Networking.Listen, gw.Registry.Snapshot().Len(), cfg.MCP.Enabled)

	return gw.Start(ctx)
}
