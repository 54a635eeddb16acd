// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package channel defines chat transports and the admission rules applied
// to the messages they deliver.
package channel

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// Channel delivers replies to a messaging platform.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg OutboundMessage) error
}

// OutboundMessage is a reply addressed to one conversation.
type OutboundMessage struct {
	Channel        string
	ConversationID string
	Content        string
}

// Inbound is a message received from a channel.
type Inbound struct {
	Channel        string
	ConversationID string
	Body           string
	Timestamp      time.Time
	IsGroup        bool
	IsStatus       bool
	IsBroadcast    bool
	// FromMe marks echoes of messages the assistant itself sent.
	FromMe bool
}

// Router routes outbound messages to registered channels.
type Router struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

func NewRouter() *Router {
	return &Router{channels: make(map[string]Channel)}
}

// Register adds ch under its own name, replacing any earlier registration.
func (r *Router) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.Name()] = ch
}

// Get returns the channel registered under name.
func (r *Router) Get(name string) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[name]
	if !ok {
		return nil, balcaoerr.New(balcaoerr.CodeChannelNotFound, "channel not registered",
			balcaoerr.FieldChannel(name))
	}
	return ch, nil
}

// Names returns the registered channel names in sorted order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.channels))
}

// Send routes msg to the channel named in msg.Channel.
func (r *Router) Send(ctx context.Context, msg OutboundMessage) error {
	ch, err := r.Get(msg.Channel)
	if err != nil {
		return err
	}
	return ch.Send(ctx, msg)
}

// DefaultFreshnessWindow is how old a message may be when it is processed.
const DefaultFreshnessWindow = 5 * time.Minute

// Reason explains why Filter rejected a message.
type Reason string

const (
	ReasonAdmitted  Reason = ""
	ReasonEmpty     Reason = "empty"
	ReasonGroup     Reason = "group"
	ReasonStatus    Reason = "status"
	ReasonBroadcast Reason = "broadcast"
	ReasonOwn       Reason = "own_message"
	ReasonStale     Reason = "stale"
)

// Filter decides which inbound messages reach the dialogue.
type Filter struct {
	FreshnessWindow time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Admit reports whether in should be handled. A zero Timestamp counts as fresh.
func (f Filter) Admit(in Inbound) (bool, Reason) {
	switch {
	case strings.TrimSpace(in.Body) == "":
		return false, ReasonEmpty
	case in.FromMe:
		return false, ReasonOwn
	case in.IsGroup:
		return false, ReasonGroup
	case in.IsStatus:
		return false, ReasonStatus
	case in.IsBroadcast || strings.HasSuffix(in.ConversationID, "@newsletter"):
		return false, ReasonBroadcast
	}

	if in.Timestamp.IsZero() {
		return true, ReasonAdmitted
	}
	window := f.FreshnessWindow
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	if now().Sub(in.Timestamp) > window {
		return false, ReasonStale
	}
	return true, ReasonAdmitted
}
