// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/sigil-dev/balcao/internal/session"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/cobra"
)

type searchesBody struct {
	Searches []struct {
		ID          string    `json:"id"`
		Term        string    `json:"term"`
		ResultCount int       `json:"result_count"`
		Error       string    `json:"error"`
		CreatedAt   time.Time `json:"created_at"`
	} `json:"searches"`
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect conversations",
		Long:  "Show the dialogue state of a conversation held by the running gateway.",
	}

	cmd.PersistentFlags().String("address", defaultAddress, "gateway address")

	cmd.AddCommand(
		newSessionShowCmd(),
	)

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show a conversation's state and recent searches",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionShow,
	}

	cmd.Flags().Int("searches", 5, "number of recent searches to list (0 to skip)")

	return cmd
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	addr, _ := cmd.Flags().GetString("address")
	limit, _ := cmd.Flags().GetInt("searches")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)
	escaped := url.PathEscape(id)

	var summary session.Summary
	if err := gw.getJSON("/api/v1/sessions/"+escaped, &summary); err != nil {
		if balcaoerr.HasCode(err, balcaoerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		return balcaoerr.Errorf(balcaoerr.CodeCLIRequestFailure, "loading session %s: %v", id, err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", summary.ID)
	_, _ = fmt.Fprintf(tw, "State:\t%s\n", summary.State)
	if summary.PendingTerm != "" {
		_, _ = fmt.Fprintf(tw, "Pending term:\t%s\n", summary.PendingTerm)
	}
	_, _ = fmt.Fprintf(tw, "Results:\t%d\n", summary.ResultCount)
	_, _ = fmt.Fprintf(tw, "History depth:\t%d\n", summary.HistoryDepth)
	if err := tw.Flush(); err != nil {
		return err
	}

	if limit <= 0 {
		return nil
	}

	var body searchesBody
	path := "/api/v1/sessions/" + escaped + "/searches?limit=" + strconv.Itoa(limit)
	if err := gw.getJSON(path, &body); err != nil {
		// The search log is optional on the gateway side.
		_, _ = fmt.Fprintf(out, "\nRecent searches unavailable: %s\n", err)
		return nil
	}
	if len(body.Searches) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo searches recorded")
		return nil
	}

	_, _ = fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "WHEN\tTERM\tRESULTS\tERROR")
	for _, s := range body.Searches {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.CreatedAt.Local().Format(time.DateTime), s.Term, s.ResultCount, s.Error)
	}
	return tw.Flush()
}
