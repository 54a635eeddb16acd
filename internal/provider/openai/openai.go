// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/sigil-dev/balcao/internal/provider"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
)

// Config holds OpenAI settings. BaseURL also allows OpenAI-compatible servers.
type Config struct {
	APIKey  string
	BaseURL string
}

// Provider implements provider.Provider on the Chat Completions API.
type Provider struct {
	client openaisdk.Client
	health *provider.HealthTracker
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, balcaoerr.New(balcaoerr.CodeProviderRequestInvalid, "openai: missing api_key in config",
			balcaoerr.FieldProvider("openai"))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client: openaisdk.NewClient(opts...),
		health: provider.NewHealthTracker(provider.DefaultHealthCooldown),
	}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) HealthMetrics() health.Metrics { return p.health.HealthMetrics() }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.ChatEvent, 16)
	go func() {
		defer close(ch)
		p.stream(ctx, params, ch)
	}()
	return ch, nil
}

func buildParams(req provider.ChatRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}
	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}
	if req.Options.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Options.Temperature))
	}
	return params, nil
}

// convertMessages prepends the system prompt as a system message.
func convertMessages(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, openaisdk.SystemMessage(systemPrompt))
	}
	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case provider.MessageRoleAssistant:
			out = append(out, openaisdk.AssistantMessage(msg.Content))
		default:
			return nil, balcaoerr.Errorf(balcaoerr.CodeProviderRequestInvalid, "openai: unsupported message role %q", msg.Role)
		}
	}
	return out, nil
}

func (p *Provider) stream(ctx context.Context, params openaisdk.ChatCompletionNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: choice.Delta.Content}) {
				return
			}
		}
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			provider.Emit(ctx, ch, provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				},
			})
		}
	}

	if err := stream.Err(); err != nil {
		p.health.RecordFailure()
		provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()})
		return
	}

	p.health.RecordSuccess()
	provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
}
