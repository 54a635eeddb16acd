// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"

	"github.com/sigil-dev/balcao/internal/channel"
	"github.com/sigil-dev/balcao/internal/dialogue"
	"github.com/sigil-dev/balcao/internal/session"
	"github.com/sigil-dev/balcao/internal/store"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
)

// Dispatcher runs dialogue turns. *gateway.Dispatcher implements it.
type Dispatcher interface {
	Receive(in channel.Inbound) bool
	Turn(ctx context.Context, conversationID, text string) (dialogue.Reply, error)
	Lanes() int
}

// SessionService exposes read-only session views. *session.Store implements it.
type SessionService interface {
	Snapshot(id string) (session.Summary, error)
	Len() int
}

// ProviderService reports LLM provider health. *provider.Registry implements it.
type ProviderService interface {
	Health() map[string]health.Metrics
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
type Services struct {
	dispatcher Dispatcher
	sessions   SessionService
	providers  ProviderService // optional
	searches   store.SearchLog // optional
}

// NewServices creates a Services instance. dispatcher and sessions are
// required.
func NewServices(dispatcher Dispatcher, sessions SessionService) (*Services, error) {
	if dispatcher == nil {
		return nil, balcaoerr.New(balcaoerr.CodeServerConfigInvalid, "dispatcher is required")
	}
	if sessions == nil {
		return nil, balcaoerr.New(balcaoerr.CodeServerConfigInvalid, "session service is required")
	}
	return &Services{dispatcher: dispatcher, sessions: sessions}, nil
}

// WithProviders sets the provider health source and returns s.
func (s *Services) WithProviders(p ProviderService) *Services {
	s.providers = p
	return s
}

// WithSearchLog sets the search history source and returns s.
func (s *Services) WithSearchLog(l store.SearchLog) *Services {
	s.searches = l
	return s
}
