// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sigil-dev/balcao/internal/provider"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	available bool
	events    []provider.ChatEvent
	chatErr   error
	lastReq   provider.ChatRequest
	closed    bool
	tracker   *provider.HealthTracker
}

func (f *fakeProvider) Name() string                     { return f.name }
func (f *fakeProvider) Available(_ context.Context) bool { return f.available }
func (f *fakeProvider) Close() error                     { f.closed = true; return nil }

func (f *fakeProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	f.lastReq = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	ch := make(chan provider.ChatEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type reportingProvider struct {
	*fakeProvider
}

func (r reportingProvider) HealthMetrics() health.Metrics {
	return r.tracker.HealthMetrics()
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("google", &fakeProvider{name: "google", available: true})

	got, err := reg.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "google", got.Name())

	_, err = reg.Get("missing")
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeProviderNotFound))
	assert.Equal(t, []string{"google"}, reg.Names())
}

func TestRegistry_RouteDefault(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("google", &fakeProvider{name: "google", available: true})
	require.NoError(t, reg.SetDefault("google/gemini-2.0-flash"))

	p, model, err := reg.Route(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, "gemini-2.0-flash", model)
	assert.Equal(t, "google/gemini-2.0-flash", reg.DefaultRef())
}

func TestRegistry_RouteFailsOverToHealthyProvider(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("google", &fakeProvider{name: "google", available: false})
	reg.Register("openai", &fakeProvider{name: "openai", available: true})
	require.NoError(t, reg.SetDefault("google/gemini-2.0-flash"))
	require.NoError(t, reg.SetFailover([]string{"openai/gpt-4o-mini"}))

	p, model, err := reg.Route(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestRegistry_RouteErrors(t *testing.T) {
	reg := provider.NewRegistry()
	_, _, err := reg.Route(context.Background(), "")
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeProviderNoDefault))

	reg.Register("google", &fakeProvider{name: "google", available: false})
	_, _, err = reg.Route(context.Background(), "gemini")
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeProviderInvalidModelRef))

	_, _, err = reg.Route(context.Background(), "google/gemini-2.0-flash")
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeProviderAllUnavailable))

	assert.True(t, balcaoerr.HasCode(reg.SetDefault("nope/x"), balcaoerr.CodeProviderNotFound))
	assert.True(t, balcaoerr.HasCode(reg.SetFailover([]string{"nope/x"}), balcaoerr.CodeProviderNotFound))
}

func TestRegistry_HealthAndClose(t *testing.T) {
	tracker := provider.NewHealthTracker(time.Minute)
	tracker.RecordFailure()
	fp := &fakeProvider{name: "google", tracker: tracker}

	reg := provider.NewRegistry()
	reg.Register("google", reportingProvider{fp})
	reg.Register("plain", &fakeProvider{name: "plain"})

	h := reg.Health()
	require.Contains(t, h, "google")
	assert.NotContains(t, h, "plain")
	assert.False(t, h["google"].Available)
	assert.Equal(t, int64(1), h["google"].FailureCount)

	require.NoError(t, reg.Close())
	assert.True(t, fp.closed)
}

func TestGenerate_CollectsTextDeltas(t *testing.T) {
	fp := &fakeProvider{name: "google", available: true, events: []provider.ChatEvent{
		{Type: provider.EventTypeTextDelta, Text: `{"acao":`},
		{Type: provider.EventTypeTextDelta, Text: `"desconhecida"}`},
		{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 3}},
		{Type: provider.EventTypeDone},
	}}
	reg := provider.NewRegistry()
	reg.Register("google", fp)
	require.NoError(t, reg.SetDefault("google/gemini-2.0-flash"))

	out, err := provider.Generate(context.Background(), reg, "", provider.UserPrompt("", "hi"))
	require.NoError(t, err)
	assert.Equal(t, `{"acao":"desconhecida"}`, out)
	assert.Equal(t, "gemini-2.0-flash", fp.lastReq.Model)
	require.Len(t, fp.lastReq.Messages, 1)
	assert.Equal(t, provider.MessageRoleUser, fp.lastReq.Messages[0].Role)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		fp   *fakeProvider
	}{
		{name: "error event", fp: &fakeProvider{name: "google", available: true, events: []provider.ChatEvent{
			{Type: provider.EventTypeTextDelta, Text: "partial"},
			{Type: provider.EventTypeError, Error: "quota exceeded"},
		}}},
		{name: "chat error", fp: &fakeProvider{name: "google", available: true, chatErr: assert.AnError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := provider.NewRegistry()
			reg.Register("google", tt.fp)
			require.NoError(t, reg.SetDefault("google/m"))

			_, err := provider.Generate(context.Background(), reg, "", provider.UserPrompt("", "hi"))
			require.Error(t, err)
			assert.True(t, balcaoerr.IsUpstreamFailure(err), "got %s", balcaoerr.CodeOf(err))
		})
	}
}

func TestEmit_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan provider.ChatEvent)
	assert.False(t, provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone}))
}

func TestHealthTracker(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	h := provider.NewHealthTracker(10 * time.Second)
	h.SetNowFunc(func() time.Time { return now })

	assert.True(t, h.IsHealthy())
	m := h.HealthMetrics()
	assert.Nil(t, m.LastFailureAt)
	assert.Nil(t, m.CooldownUntil)

	h.RecordFailure()
	assert.False(t, h.IsHealthy())
	m = h.HealthMetrics()
	require.NotNil(t, m.CooldownUntil)
	assert.Equal(t, now.Add(10*time.Second), *m.CooldownUntil)

	h.SetNowFunc(func() time.Time { return now.Add(10 * time.Second) })
	assert.True(t, h.IsHealthy(), "recovers once the cooldown has elapsed")

	h.RecordSuccess()
	m = h.HealthMetrics()
	assert.True(t, m.Available)
	assert.Nil(t, m.CooldownUntil)
	assert.Equal(t, int64(1), m.FailureCount)
}

func TestHealthTracker_DefaultCooldown(t *testing.T) {
	now := time.Now()
	h := provider.NewHealthTracker(0)
	h.SetNowFunc(func() time.Time { return now })
	h.RecordFailure()
	h.SetNowFunc(func() time.Time { return now.Add(provider.DefaultHealthCooldown - time.Second) })
	assert.False(t, h.IsHealthy())
}

func TestValidateKeyWithURL(t *testing.T) {
	tests := []struct {
		name     string
		provider provider.Name
		status   int
		header   string
		wantCode balcaoerr.Code
	}{
		{name: "openai ok", provider: provider.NameOpenAI, status: 200, header: "Authorization"},
		{name: "anthropic ok", provider: provider.NameAnthropic, status: 200, header: "X-Api-Key"},
		{name: "unauthorized", provider: provider.NameOpenAI, status: 401, wantCode: balcaoerr.CodeProviderKeyInvalid},
		{name: "forbidden", provider: provider.NameGoogle, status: 403, wantCode: balcaoerr.CodeProviderKeyInvalid},
		{name: "server error", provider: provider.NameGoogle, status: 500, wantCode: balcaoerr.CodeProviderUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					assert.NotEmpty(t, r.Header.Get(tt.header))
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := provider.ValidateKeyWithURL(context.Background(), srv.Client(), tt.provider, "key", srv.URL)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, balcaoerr.HasCode(err, tt.wantCode), "got %s", balcaoerr.CodeOf(err))
		})
	}
}

func TestValidateKey_UnknownProvider(t *testing.T) {
	err := provider.ValidateKey(context.Background(), http.DefaultClient, "nope", "key")
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeProviderRequestInvalid))
}
