// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package health holds the serialisable health snapshots shared by the
// gateway status endpoint and the CLI.
package health

import "time"

// Metrics is a point-in-time view of one upstream dependency, such as an
// LLM provider.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// Status values reported by the gateway.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Overall returns StatusDegraded when any dependency is unavailable.
func Overall(deps map[string]Metrics) string {
	for _, m := range deps {
		if !m.Available {
			return StatusDegraded
		}
	}
	return StatusOK
}
