// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sigil-dev/balcao/internal/provider"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/sigil-dev/balcao/pkg/health"
)

// defaultMaxTokens caps replies when the request does not set a limit.
// Classifier answers are a short JSON object.
const defaultMaxTokens = 1024

type Config struct {
	APIKey  string
	BaseURL string
}

// Provider implements provider.Provider on the Messages API.
type Provider struct {
	client anthropicsdk.Client
	health *provider.HealthTracker
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, balcaoerr.New(balcaoerr.CodeProviderRequestInvalid, "anthropic: missing api_key in config",
			balcaoerr.FieldProvider("anthropic"))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		health: provider.NewHealthTracker(provider.DefaultHealthCooldown),
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

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

func buildParams(req provider.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*req.Options.Temperature))
	}
	return params, nil
}

func convertMessages(msgs []provider.Message) ([]anthropicsdk.MessageParam, error) {
	out := make([]anthropicsdk.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case provider.MessageRoleAssistant:
			out = append(out, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		default:
			return nil, balcaoerr.Errorf(balcaoerr.CodeProviderRequestInvalid, "anthropic: unsupported message role %q", msg.Role)
		}
	}
	return out, nil
}

func (p *Provider) stream(ctx context.Context, params anthropicsdk.MessageNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				if !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: event.Delta.Text}) {
					return
				}
			}
		case "message_delta":
			provider.Emit(ctx, ch, provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:  int(event.Usage.InputTokens),
					OutputTokens: int(event.Usage.OutputTokens),
				},
			})
		case "message_stop":
			p.health.RecordSuccess()
			provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
			return
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
