// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package gateway connects chat channels to the dialogue controller: it
// filters inbound messages, serialises each conversation and delivers the
// reply.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/sigil-dev/balcao/internal/channel"
	"github.com/sigil-dev/balcao/internal/dialogue"
	"github.com/sigil-dev/balcao/internal/format"
	"github.com/sigil-dev/balcao/internal/session"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// DefaultTurnTimeout bounds the work done for one inbound message.
const DefaultTurnTimeout = 2 * time.Minute

// Handler runs one dialogue turn.
type Handler interface {
	Handle(ctx context.Context, conversationID, text string) dialogue.Reply
}

// Sender delivers replies.
type Sender interface {
	Send(ctx context.Context, msg channel.OutboundMessage) error
}

// Config holds dependencies for the Dispatcher.
type Config struct {
	Handler     Handler
	Sender      Sender
	Lanes       *session.LanePool
	Filter      channel.Filter
	TurnTimeout time.Duration
}

// Dispatcher moves messages from channels through the dialogue and back.
type Dispatcher struct {
	handler     Handler
	sender      Sender
	lanes       *session.LanePool
	filter      channel.Filter
	turnTimeout time.Duration
	// base outlives individual webhook requests.
	base context.Context
}

// NewDispatcher creates a Dispatcher. ctx bounds every asynchronous turn;
// cancel it on shutdown.
func NewDispatcher(ctx context.Context, cfg Config) *Dispatcher {
	lanes := cfg.Lanes
	if lanes == nil {
		lanes = session.NewLanePool()
	}
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = DefaultTurnTimeout
	}
	return &Dispatcher{
		handler:     cfg.Handler,
		sender:      cfg.Sender,
		lanes:       lanes,
		filter:      cfg.Filter,
		turnTimeout: timeout,
		base:        ctx,
	}
}

// Receive admits in and, when it passes the filter, queues a turn on its
// conversation's lane. It returns once the turn is queued; the reply is sent
// from the lane. The filter runs again when the turn starts, so a message
// that went stale while waiting behind a slow turn is dropped.
func (d *Dispatcher) Receive(in channel.Inbound) bool {
	ok, reason := d.filter.Admit(in)
	if !ok {
		slog.Debug("inbound message dropped",
			"channel", in.Channel,
			"conversation_id", in.ConversationID,
			"reason", string(reason),
		)
		return false
	}

	err := d.lanes.Go(d.base, in.ConversationID, func(ctx context.Context) error {
		// Age counts until the turn starts, not until the message was queued.
		if ok, reason := d.filter.Admit(in); !ok {
			slog.Debug("queued message dropped",
				"channel", in.Channel,
				"conversation_id", in.ConversationID,
				"reason", string(reason),
			)
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, d.turnTimeout)
		defer cancel()
		d.send(ctx, in, d.reply(ctx, in.ConversationID, in.Body))
		return nil
	})
	if err != nil {
		slog.Error("queueing dialogue turn failed",
			"channel", in.Channel,
			"conversation_id", in.ConversationID,
			"error", err,
		)
		return false
	}
	return true
}

// reply runs the dialogue and falls back to a fixed apology if it panics.
func (d *Dispatcher) reply(ctx context.Context, conversationID, text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dialogue turn panicked",
				"conversation_id", conversationID,
				"panic", r,
			)
			out = format.MsgFallback
		}
	}()
	return d.handler.Handle(ctx, conversationID, text).Text
}

func (d *Dispatcher) send(ctx context.Context, in channel.Inbound, text string) {
	if d.sender == nil || text == "" {
		return
	}
	err := d.sender.Send(ctx, channel.OutboundMessage{
		Channel:        in.Channel,
		ConversationID: in.ConversationID,
		Content:        text,
	})
	if err != nil {
		slog.Error("sending reply failed",
			"channel", in.Channel,
			"conversation_id", in.ConversationID,
			"error", err,
		)
	}
}

// Turn runs one message synchronously through the same lane as channel
// traffic for conversationID and returns the reply.
func (d *Dispatcher) Turn(ctx context.Context, conversationID, text string) (dialogue.Reply, error) {
	if conversationID == "" {
		return dialogue.Reply{}, balcaoerr.New(balcaoerr.CodeServerRequestInvalid, "conversation id is required")
	}
	replies := make(chan dialogue.Reply, 1)
	err := d.lanes.Submit(ctx, conversationID, func(ctx context.Context) error {
		replies <- d.handler.Handle(ctx, conversationID, text)
		return nil
	})
	if err != nil {
		return dialogue.Reply{Text: format.MsgFallback}, err
	}
	return <-replies, nil
}

// Lanes returns the number of conversations with a live lane.
func (d *Dispatcher) Lanes() int {
	return d.lanes.Len()
}

// Close stops every lane after queued turns finish.
func (d *Dispatcher) Close() {
	d.lanes.Close()
}
