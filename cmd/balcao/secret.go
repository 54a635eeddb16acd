// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/sigil-dev/balcao/internal/secrets"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/cobra"
)

// secretStoreFactory creates the secrets.Store used by the CLI. Tests swap
// in an in-memory implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long:  "List and delete the tokens and API keys balcao keeps in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.Service)
	if err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeSecretListFailure, "listing secrets: %v", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "%s\t%s\n", k, secrets.URI(secrets.Service, k))
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := secretStoreFactory().Delete(secrets.Service, name); err != nil {
		if balcaoerr.HasCode(err, balcaoerr.CodeSecretNotFound) {
			return balcaoerr.Errorf(balcaoerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return balcaoerr.Errorf(balcaoerr.CodeSecretDeleteFailure, "deleting secret %q: %v", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
