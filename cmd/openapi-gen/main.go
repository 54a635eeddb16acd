// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/balcao/internal/channel"
	"github.com/sigil-dev/balcao/internal/dialogue"
	"github.com/sigil-dev/balcao/internal/server"
	"github.com/sigil-dev/balcao/internal/session"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec builds a server with every route registered and returns the
// OpenAPI document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(idleDispatcher{}, session.NewStore())
	if err != nil {
		return nil, balcaoerr.Errorf(balcaoerr.CodeCLISetupFailure, "creating services: %v", err)
	}

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   svc,
	})
	if err != nil {
		return nil, balcaoerr.Errorf(balcaoerr.CodeCLISetupFailure, "creating server: %v", err)
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// idleDispatcher satisfies server.Dispatcher; it is never called.
type idleDispatcher struct{}

func (idleDispatcher) Receive(channel.Inbound) bool { return false }
func (idleDispatcher) Lanes() int                   { return 0 }

func (idleDispatcher) Turn(context.Context, string, string) (dialogue.Reply, error) {
	return dialogue.Reply{}, nil
}
