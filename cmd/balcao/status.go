// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
	"github.com/spf13/cobra"
)

// statusBody mirrors GET /api/v1/status.
type statusBody struct {
	Status    string                    `json:"status"`
	Sessions  int                       `json:"sessions"`
	Lanes     int                       `json:"lanes"`
	Providers map[string]health.Metrics `json:"providers"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway status",
		Long:  "Query the running gateway's status endpoint and print conversations and provider health.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", defaultAddress, "gateway address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body statusBody
	if err := newGatewayClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if balcaoerr.HasCode(err, balcaoerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, body.Status)
	_, _ = fmt.Fprintf(out, "Conversations: %d (%d active lanes)\n", body.Sessions, body.Lanes)
	if len(body.Providers) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROVIDER\tAVAILABLE\tFAILURES")
	for _, name := range slices.Sorted(maps.Keys(body.Providers)) {
		m := body.Providers[name]
		_, _ = fmt.Fprintf(tw, "%s\t%t\t%d\n", name, m.Available, m.FailureCount)
	}
	return tw.Flush()
}
