// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/sigil-dev/balcao/internal/provider"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
)

// Config holds Gemini API settings.
type Config struct {
	APIKey  string
	BaseURL string
}

// Provider implements provider.Provider on the Gemini API.
type Provider struct {
	client *genai.Client
	health *provider.HealthTracker
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, balcaoerr.New(balcaoerr.CodeProviderRequestInvalid, "google: missing api_key in config",
			balcaoerr.FieldProvider("google"))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	return &Provider{
		client: client,
		health: provider.NewHealthTracker(provider.DefaultHealthCooldown),
	}, nil
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) HealthMetrics() health.Metrics { return p.health.HealthMetrics() }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req)

	ch := make(chan provider.ChatEvent, 16)
	go func() {
		defer close(ch)
		p.stream(ctx, req.Model, contents, config, ch)
	}()
	return ch, nil
}

func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	return cfg
}

// convertMessages maps roles onto Gemini's "user" and "model".
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case provider.MessageRoleUser:
			role = "user"
		case provider.MessageRoleAssistant:
			role = "model"
		default:
			return nil, balcaoerr.Errorf(balcaoerr.CodeProviderRequestInvalid, "google: unsupported message role %q", msg.Role)
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return out, nil
}

func (p *Provider) stream(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	ch chan<- provider.ChatEvent,
) {
	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			p.health.RecordFailure()
			provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()})
			return
		}

		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text == "" || part.Thought {
					continue
				}
				if !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: part.Text}) {
					return
				}
			}
		}

		if result.UsageMetadata != nil {
			provider.Emit(ctx, ch, provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:  int(result.UsageMetadata.PromptTokenCount),
					OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
				},
			})
		}
	}

	p.health.RecordSuccess()
	provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
}
