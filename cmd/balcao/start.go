// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sigil-dev/balcao/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the balcao gateway",
		Long:  "Load configuration, connect the catalog, LLM providers and WhatsApp channel, and serve the HTTP API.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		v.Set("networking.listen", listen)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := WireGateway(ctx, cfg, resolveDataDir())
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Starting balcao on %s\n", cfg.Networking.Listen); err != nil {
		return err
	}
	return gw.Start(ctx)
}

// cmdContext returns the command's context or Background when unset.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
