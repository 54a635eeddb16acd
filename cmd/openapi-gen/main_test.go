// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpec(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	body := string(spec)
	assert.Contains(t, body, "3.1")
	for _, path := range []string{
		"/health",
		"/api/v1/status",
		"/api/v1/chat",
		"/api/v1/webhooks/wppconnect",
		"/api/v1/sessions/{id}",
		"/api/v1/sessions/{id}/searches",
	} {
		assert.Contains(t, body, path)
	}
}

func TestGenerateSpec_ValidJSON(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	var doc struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(spec, &doc))
	assert.NotEmpty(t, doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/api/v1/chat")
}
