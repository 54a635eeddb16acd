// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"log/slog"

	"github.com/sigil-dev/balcao/internal/config"
	"github.com/sigil-dev/balcao/internal/secrets"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultAddress is where the CLI expects a local gateway.
const defaultAddress = "127.0.0.1:3000"

// NewRootCmd creates the root balcao command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "balcao",
		Short:         "balcao: product search assistant for WhatsApp",
		Long:          "balcao answers customer product questions over WhatsApp, searching the Tiny ERP catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newStatusCmd(),
		newVersionCmd(),
		newSessionCmd(),
		newSecretCmd(),
		newChatCmd(),
		newDoctorCmd(),
	)

	return root
}

// initViper prepares the global Viper so the usual precedence
// (flag > env > .env > file > defaults) applies to every command.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	if loaded := config.LoadDotEnv(config.DefaultEnvFile); len(loaded) > 0 {
		slog.Debug("loaded environment file", "files", loaded)
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return balcaoerr.Wrapf(err, balcaoerr.CodeConfigLoadReadFailure, "reading config file")
		}
	} else {
		// No SetConfigType: with it Viper also tries the bare name, which
		// matches the ./balcao binary.
		v.SetConfigName("balcao")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/balcao")
		v.AddConfigPath("/etc/balcao")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return balcaoerr.Wrapf(err, balcaoerr.CodeConfigLoadReadFailure, "reading config")
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return balcaoerr.Wrapf(err, balcaoerr.CodeConfigLoadReadFailure, "reading bootstrapped config")
				}
			}
		}
	}
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	if n := secrets.ResolveViperSecrets(v, secretStoreFactory()); n > 0 {
		slog.Debug("resolved keyring references", "count", n)
	}

	if err := v.BindPFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return balcaoerr.Wrapf(err, balcaoerr.CodeCLISetupFailure, "binding data-dir flag")
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return balcaoerr.Wrapf(err, balcaoerr.CodeCLISetupFailure, "binding verbose flag")
	}
	if v.GetBool("verbose") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	return nil
}
