// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand_HealthyGateway(t *testing.T) {
	isolate(t)
	addr := serveGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "degraded",
			"sessions": 3,
			"lanes":    2,
			"providers": map[string]any{
				"google": map[string]any{"available": false, "failure_count": 4},
				"openai": map[string]any{"available": true, "failure_count": 0},
			},
		})
	})

	out, err := runCmd(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "degraded")
	assert.Contains(t, out, "Conversations: 3 (2 active lanes)")
	assert.Regexp(t, `google\s+false\s+4`, out)
	assert.Regexp(t, `openai\s+true\s+0`, out)
}

func TestStatusCommand_NotRunning(t *testing.T) {
	isolate(t)

	out, err := runCmd(t, "status", "--address", closedAddress)
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

func TestStatusCommand_ServerError(t *testing.T) {
	isolate(t)
	addr := serveGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	out, err := runCmd(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "status 500")
}
