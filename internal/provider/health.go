// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"sync"
	"time"

	"github.com/sigil-dev/balcao/pkg/health"
)

// DefaultHealthCooldown is how long a failed provider is skipped by routing.
const DefaultHealthCooldown = 30 * time.Second

// HealthReporter is implemented by providers that expose health metrics.
type HealthReporter interface {
	HealthMetrics() health.Metrics
}

// HealthTracker marks a provider unhealthy after a failed call and lets it
// back into routing once the cooldown has elapsed.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	now          func() time.Time
}

// NewHealthTracker returns a healthy tracker. A non-positive cooldown uses
// DefaultHealthCooldown.
func NewHealthTracker(cooldown time.Duration) *HealthTracker {
	if cooldown <= 0 {
		cooldown = DefaultHealthCooldown
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// caller holds h.mu
func (h *HealthTracker) healthyLocked() bool {
	return h.healthy || h.now().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.now()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the clock.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.now = fn
	h.mu.Unlock()
}

// HealthMetrics returns a snapshot that holds no references to tracker state.
func (h *HealthTracker) HealthMetrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		FailureCount: h.failureCount,
		Available:    h.healthyLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}
