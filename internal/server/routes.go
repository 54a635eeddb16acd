// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/balcao/internal/channel/wppconnect"
	"github.com/sigil-dev/balcao/internal/dialogue"
	"github.com/sigil-dev/balcao/internal/session"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "gateway-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Gateway status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID:   "wppconnect-webhook",
		Method:        http.MethodPost,
		Path:          "/api/v1/webhooks/wppconnect",
		Summary:       "Receive a wppconnect-server webhook event",
		Tags:          []string{"channels"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleWppconnectWebhook)

	huma.Register(s.api, huma.Operation{
		OperationID: "send-message",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Run one conversation turn and return the reply",
		Tags:        []string{"chat"},
	}, s.handleSendMessage)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get conversation state",
		Tags:        []string{"sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-session-searches",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/searches",
		Summary:     "List recent catalog searches for a conversation",
		Tags:        []string{"sessions"},
	}, s.handleListSearches)
}

// --- Request/Response types for huma ---

type statusOutput struct {
	Body struct {
		Status    string                    `json:"status" example:"ok" doc:"ok, or degraded when a provider is unavailable"`
		Sessions  int                       `json:"sessions" doc:"Live conversations"`
		Lanes     int                       `json:"lanes" doc:"Conversations with a running worker"`
		Providers map[string]health.Metrics `json:"providers,omitempty"`
	}
}

type webhookInput struct {
	Secret  string `query:"secret" doc:"Shared secret configured in channels.wppconnect.webhook_secret"`
	RawBody []byte
}

type webhookOutput struct {
	Body struct {
		Accepted bool   `json:"accepted" doc:"True when the message was queued for a reply"`
		Event    string `json:"event"`
	}
}

type sendMessageInput struct {
	Body struct {
		ConversationID string `json:"conversation_id" minLength:"1" doc:"Conversation to continue or start"`
		Content        string `json:"content" minLength:"1" doc:"Customer message"`
	}
}

type sendMessageOutput struct {
	Body dialogue.Reply
}

type sessionIDInput struct {
	ID string `path:"id"`
}

type getSessionOutput struct {
	Body session.Summary
}

type listSearchesInput struct {
	ID    string `path:"id"`
	Limit int    `query:"limit" default:"20" minimum:"1" maximum:"100"`
}

// SearchSummary is one logged catalog search.
type SearchSummary struct {
	ID          string    `json:"id"`
	Term        string    `json:"term"`
	ResultCount int       `json:"result_count"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type listSearchesOutput struct {
	Body struct {
		Searches []SearchSummary `json:"searches"`
	}
}

// --- Handlers ---

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body.Status = health.StatusOK
	out.Body.Sessions = s.services.sessions.Len()
	out.Body.Lanes = s.services.dispatcher.Lanes()
	if s.services.providers != nil {
		out.Body.Providers = s.services.providers.Health()
		out.Body.Status = health.Overall(out.Body.Providers)
	}
	return out, nil
}

func (s *Server) handleWppconnectWebhook(_ context.Context, input *webhookInput) (*webhookOutput, error) {
	if secret := s.cfg.WebhookSecret; secret != "" &&
		subtle.ConstantTimeCompare([]byte(input.Secret), []byte(secret)) != 1 {
		return nil, huma.Error401Unauthorized("invalid webhook secret")
	}

	event, err := wppconnect.DecodeEvent(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid webhook payload", err)
	}

	out := &webhookOutput{}
	out.Body.Event = event.Event
	if !event.IsMessage() {
		return out, nil
	}
	// The reply is sent back through wppconnect once the turn completes.
	out.Body.Accepted = s.services.dispatcher.Receive(event.Inbound())
	return out, nil
}

func (s *Server) handleSendMessage(ctx context.Context, input *sendMessageInput) (*sendMessageOutput, error) {
	reply, err := s.services.dispatcher.Turn(ctx, input.Body.ConversationID, input.Body.Content)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, huma.Error504GatewayTimeout("turn timed out")
	case balcaoerr.HasCode(err, balcaoerr.CodeSessionLaneClosed):
		return nil, huma.Error503ServiceUnavailable("gateway is shutting down")
	case balcaoerr.IsInvalidInput(err):
		return nil, huma.Error400BadRequest(err.Error())
	default:
		// The customer still gets the fallback text.
		slog.Error("chat turn failed",
			"conversation_id", input.Body.ConversationID,
			"error", err,
		)
	}
	return &sendMessageOutput{Body: reply}, nil
}

func (s *Server) handleGetSession(_ context.Context, input *sessionIDInput) (*getSessionOutput, error) {
	summary, err := s.services.sessions.Snapshot(input.ID)
	if err != nil {
		if balcaoerr.IsNotFound(err) {
			return nil, huma.Error404NotFound(fmt.Sprintf("session %q not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("reading session", err)
	}
	return &getSessionOutput{Body: summary}, nil
}

func (s *Server) handleListSearches(ctx context.Context, input *listSearchesInput) (*listSearchesOutput, error) {
	if s.services.searches == nil {
		return nil, huma.Error503ServiceUnavailable("search log not configured")
	}
	records, err := s.services.searches.Recent(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing searches", err)
	}
	out := &listSearchesOutput{}
	out.Body.Searches = make([]SearchSummary, 0, len(records))
	for _, r := range records {
		out.Body.Searches = append(out.Body.Searches, SearchSummary{
			ID:          r.ID,
			Term:        r.Term,
			ResultCount: r.ResultCount,
			Error:       r.Error,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}
