// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package provider abstracts the LLM backends used for intent
// classification and routes requests between them.
package provider

import (
	"context"
)

// Provider is an LLM backend that streams a completion for a request.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Close() error
}

// Router picks a provider and model for a "provider/model" reference. An
// empty reference selects the configured default.
type Router interface {
	Route(ctx context.Context, ref string) (Provider, string, error)
}

type ChatRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Options      ChatOptions
}

type ChatOptions struct {
	Temperature *float32
	MaxTokens   int
}

type Message struct {
	Role    MessageRole
	Content string
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatEvent is one item of a streamed response.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

type Usage struct {
	InputTokens  int
	OutputTokens int
}

// UserPrompt builds a single-turn request.
func UserPrompt(model, prompt string) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []Message{{Role: MessageRoleUser, Content: prompt}},
	}
}

// Emit sends ev unless ctx is done first. Providers use it so an abandoned
// stream does not block their goroutine.
func Emit(ctx context.Context, ch chan<- ChatEvent, ev ChatEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
