// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sigil-dev/balcao/internal/channel"
	"github.com/sigil-dev/balcao/internal/dialogue"
	"github.com/sigil-dev/balcao/internal/format"
	"github.com/sigil-dev/balcao/internal/server"
	"github.com/sigil-dev/balcao/internal/session"
	"github.com/sigil-dev/balcao/internal/store"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	received []channel.Inbound
	reply    dialogue.Reply
	err      error
}

func (d *fakeDispatcher) Receive(in channel.Inbound) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, in)
	return true
}

func (d *fakeDispatcher) Turn(_ context.Context, conversationID, text string) (dialogue.Reply, error) {
	if d.err != nil {
		return dialogue.Reply{Text: format.MsgFallback}, d.err
	}
	r := d.reply
	if r.Text == "" {
		r = dialogue.Reply{Text: conversationID + ": " + text, State: session.StateInitial}
	}
	return r, nil
}

func (d *fakeDispatcher) Lanes() int { return 2 }

type fixedProviders map[string]health.Metrics

func (p fixedProviders) Health() map[string]health.Metrics { return p }

type memorySearchLog struct {
	records []*store.SearchRecord
}

func (m *memorySearchLog) Record(_ context.Context, rec *store.SearchRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySearchLog) Recent(_ context.Context, conversationID string, limit int) ([]*store.SearchRecord, error) {
	var out []*store.SearchRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].ConversationID == conversationID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memorySearchLog) Close() error { return nil }

type harness struct {
	srv        *server.Server
	dispatcher *fakeDispatcher
	sessions   *session.Store
}

func newHarness(t *testing.T, mutate func(*server.Config, *server.Services)) *harness {
	t.Helper()
	h := &harness{dispatcher: &fakeDispatcher{}, sessions: session.NewStore()}
	svc, err := server.NewServices(h.dispatcher, h.sessions)
	require.NoError(t, err)

	cfg := server.Config{ListenAddr: "127.0.0.1:0", Services: svc}
	if mutate != nil {
		mutate(&cfg, svc)
	}
	h.srv, err = server.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.srv.Close() })
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestServer_New_Errors(t *testing.T) {
	_, err := server.New(server.Config{})
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeServerConfigInvalid))
	assert.Contains(t, err.Error(), "listen address is required")

	_, err = server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: 1},
	})
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeServerConfigInvalid))
}

func TestNewServices_RequiresDependencies(t *testing.T) {
	_, err := server.NewServices(nil, session.NewStore())
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeServerConfigInvalid))
	_, err = server.NewServices(&fakeDispatcher{}, nil)
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeServerConfigInvalid))
}

func TestServer_HealthWithoutServices(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_OpenAPISpec(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, path := range []string{"/api/v1/chat", "/api/v1/webhooks/wppconnect", "/api/v1/sessions/{id}", "/api/v1/status"} {
		assert.Contains(t, w.Body.String(), path)
	}
}

func TestRoutes_Status(t *testing.T) {
	t.Run("without providers", func(t *testing.T) {
		h := newHarness(t, nil)
		h.sessions.GetOrCreate("a")

		w := h.do(http.MethodGet, "/api/v1/status", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Status   string `json:"status"`
			Sessions int    `json:"sessions"`
			Lanes    int    `json:"lanes"`
		}
		decode(t, w, &body)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, 1, body.Sessions)
		assert.Equal(t, 2, body.Lanes)
	})

	t.Run("degraded provider", func(t *testing.T) {
		until := time.Now().Add(time.Minute)
		h := newHarness(t, func(_ *server.Config, svc *server.Services) {
			svc.WithProviders(fixedProviders{
				"google": {Available: true},
				"openai": {Available: false, FailureCount: 3, CooldownUntil: &until},
			})
		})

		w := h.do(http.MethodGet, "/api/v1/status", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Status    string                    `json:"status"`
			Providers map[string]health.Metrics `json:"providers"`
		}
		decode(t, w, &body)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, int64(3), body.Providers["openai"].FailureCount)
	})
}

const messageEvent = `{"event":"onmessage","session":"loja","from":"5511999990000@c.us","body":"cuba inox","type":"chat","t":1767225600}`

func TestRoutes_Webhook(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/api/v1/webhooks/wppconnect", messageEvent)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var body struct {
		Accepted bool   `json:"accepted"`
		Event    string `json:"event"`
	}
	decode(t, w, &body)
	assert.True(t, body.Accepted)
	assert.Equal(t, "onmessage", body.Event)

	require.Len(t, h.dispatcher.received, 1)
	in := h.dispatcher.received[0]
	assert.Equal(t, "5511999990000@c.us", in.ConversationID)
	assert.Equal(t, "cuba inox", in.Body)
	assert.Equal(t, "wppconnect", in.Channel)
}

func TestRoutes_WebhookIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/api/v1/webhooks/wppconnect", `{"event":"onack","ack":2}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"accepted":false`)
	assert.Empty(t, h.dispatcher.received)
}

func TestRoutes_WebhookInvalidPayload(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/api/v1/webhooks/wppconnect", `{"event":"onmessage","body":"oi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.dispatcher.received)
}

func TestRoutes_WebhookSecret(t *testing.T) {
	h := newHarness(t, func(cfg *server.Config, _ *server.Services) {
		cfg.WebhookSecret = "s3cret"
	})

	w := h.do(http.MethodPost, "/api/v1/webhooks/wppconnect", messageEvent)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = h.do(http.MethodPost, "/api/v1/webhooks/wppconnect?secret=wrong", messageEvent)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, h.dispatcher.received)

	w = h.do(http.MethodPost, "/api/v1/webhooks/wppconnect?secret=s3cret", messageEvent)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, h.dispatcher.received, 1)
}

func TestRoutes_Chat(t *testing.T) {
	h := newHarness(t, nil)
	h.dispatcher.reply = dialogue.Reply{Text: "Encontrei 2 produtos", State: session.StateSearchMode}

	w := h.do(http.MethodPost, "/api/v1/chat", `{"conversation_id":"api:1","content":"cuba"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reply dialogue.Reply
	decode(t, w, &reply)
	assert.Equal(t, "Encontrei 2 produtos", reply.Text)
	assert.Equal(t, session.StateSearchMode, reply.State)
}

func TestRoutes_ChatValidation(t *testing.T) {
	h := newHarness(t, nil)

	for name, body := range map[string]string{
		"empty content": `{"conversation_id":"api:1","content":""}`,
		"no id":         `{"content":"cuba"}`,
		"not json":      `cuba`,
	} {
		t.Run(name, func(t *testing.T) {
			w := h.do(http.MethodPost, "/api/v1/chat", body)
			assert.GreaterOrEqual(t, w.Code, 400)
			assert.Less(t, w.Code, 500)
		})
	}
}

func TestRoutes_ChatErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "panic keeps fallback", err: balcaoerr.New(balcaoerr.CodeSessionLanePanic, "boom"), wantCode: http.StatusOK},
		{name: "shutting down", err: balcaoerr.New(balcaoerr.CodeSessionLaneClosed, "closed"), wantCode: http.StatusServiceUnavailable},
		{name: "timeout", err: context.DeadlineExceeded, wantCode: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.dispatcher.err = tt.err

			w := h.do(http.MethodPost, "/api/v1/chat", `{"conversation_id":"api:1","content":"cuba"}`)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Contains(t, w.Body.String(), "probleminha")
			}
		})
	}
}

func TestRoutes_GetSession(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodGet, "/api/v1/sessions/5511@c.us", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	h.sessions.Save("5511@c.us", session.Session{
		State:   session.StateAwaitingConfirmation,
		Pending: &session.PendingSearch{Term: "cuba"},
	})

	w = h.do(http.MethodGet, "/api/v1/sessions/5511@c.us", "")
	require.Equal(t, http.StatusOK, w.Code)

	var summary session.Summary
	decode(t, w, &summary)
	assert.Equal(t, "5511@c.us", summary.ID)
	assert.Equal(t, session.StateAwaitingConfirmation, summary.State)
	assert.Equal(t, "cuba", summary.PendingTerm)
}

func TestRoutes_ListSearches(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, nil)
		w := h.do(http.MethodGet, "/api/v1/sessions/a/searches", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("newest first", func(t *testing.T) {
		log := &memorySearchLog{}
		ctx := context.Background()
		require.NoError(t, log.Record(ctx, &store.SearchRecord{ID: "1", ConversationID: "a", Term: "cuba", ResultCount: 2}))
		require.NoError(t, log.Record(ctx, &store.SearchRecord{ID: "2", ConversationID: "b", Term: "pia"}))
		require.NoError(t, log.Record(ctx, &store.SearchRecord{ID: "3", ConversationID: "a", Term: "torneira", Error: "catalog.search.not_found"}))

		h := newHarness(t, func(_ *server.Config, svc *server.Services) {
			svc.WithSearchLog(log)
		})

		w := h.do(http.MethodGet, "/api/v1/sessions/a/searches?limit=5", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body struct {
			Searches []server.SearchSummary `json:"searches"`
		}
		decode(t, w, &body)
		require.Len(t, body.Searches, 2)
		assert.Equal(t, "torneira", body.Searches[0].Term)
		assert.Equal(t, "catalog.search.not_found", body.Searches[0].Error)
		assert.Equal(t, "cuba", body.Searches[1].Term)
		assert.Equal(t, 2, body.Searches[1].ResultCount)
	})
}

func TestServer_RateLimitAppliesToAPI(t *testing.T) {
	h := newHarness(t, func(cfg *server.Config, _ *server.Services) {
		cfg.RateLimit = server.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/status", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodGet, "/api/v1/status", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", "").Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_StartListenFailure(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "256.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	err = srv.Start(context.Background())
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeServerStartFailure))
}
