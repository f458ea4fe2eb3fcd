// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/cardhost/internal/config"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// NewRootCmd creates the root cardhost command with all subcommands registered.
// Each root owns its own Viper instance so commands built in tests do not
// share state.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "cardhost",
		Short:         "cardhost: capability dispatch and adaptive cards",
		Long:          "cardhost loads tool plugins, discovers their configuration cards, and dispatches card actions to plugin capabilities.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd, v); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), v.GetString("logging.level"), v.GetString("logging.format"), v.GetBool("verbose"))
			return nil
		},
	}

	// Global flags map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(v),
		newStatusCmd(),
		newCardsCmd(),
		newExecuteCmd(),
		newPluginCmd(),
		newExecutionsCmd(),
		newSecretCmd(v),
		newVersionCmd(),
	)

	return root
}

// initViper sets up v with defaults, env bindings, flag bindings, and an
// optional config file so the standard precedence (flag > env > file >
// defaults) is handled uniformly.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return cherr.Errorf(cherr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
		config.WarnInsecurePermissions(cfgFile)
	} else {
		v.SetConfigName("cardhost")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/cardhost")
		v.AddConfigPath("/etc/cardhost")
		// No config file is fine; defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cherr.Errorf(cherr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// Only the server bootstraps a default file; client commands
			// should not write to the home directory.
			if cmd.Name() == "start" {
				if path := config.BootstrapConfig(""); path != "" {
					v.SetConfigFile(path)
					if err := v.ReadInConfig(); err != nil {
						return cherr.Errorf(cherr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
					}
				}
			}
		} else {
			config.WarnInsecurePermissions(v.ConfigFileUsed())
		}
	}

	// Bind persistent flags to viper keys.
	if err := v.BindPFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return cherr.Errorf(cherr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return cherr.Errorf(cherr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
