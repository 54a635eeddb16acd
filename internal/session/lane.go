// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package session

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

const laneQueueSize = 256

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan<- error
}

// Lane runs the jobs of one conversation one at a time, in arrival order.
type Lane struct {
	conversationID string
	jobs           chan job
	stopping       chan struct{}
	stopped        chan struct{}
	once           sync.Once
}

// NewLane starts the worker goroutine for conversationID.
func NewLane(conversationID string) *Lane {
	l := &Lane{
		conversationID: conversationID,
		jobs:           make(chan job, laneQueueSize),
		stopping:       make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	go l.loop()
	return l
}

func (l *Lane) loop() {
	defer close(l.stopped)
	for {
		select {
		case j := <-l.jobs:
			l.run(j)
		case <-l.stopping:
			for {
				select {
				case j := <-l.jobs:
					l.run(j)
				default:
					return
				}
			}
		}
	}
}

func (l *Lane) run(j job) {
	if err := j.ctx.Err(); err != nil {
		j.result <- err
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("conversation lane panic recovered",
					"conversation_id", l.conversationID,
					"panic", r,
					"stack", string(debug.Stack()))
				err = balcaoerr.Errorf(balcaoerr.CodeSessionLanePanic, "lane job panic: %v", r)
			}
		}()
		err = j.fn(j.ctx)
	}()
	j.result <- err
}

// Submit queues fn behind any earlier work for this conversation and waits
// for it to finish. A cancelled ctx returns ctx.Err() and fn is skipped if it
// has not started yet.
func (l *Lane) Submit(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-l.stopping:
		return l.closedErr()
	default:
	}

	result := make(chan error, 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopping:
		return l.closedErr()
	case l.jobs <- job{ctx: ctx, fn: fn, result: result}:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

// Go queues fn behind any earlier work for this conversation and returns
// without waiting. The job's error is discarded, so fn must report its own
// failures.
func (l *Lane) Go(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-l.stopping:
		return l.closedErr()
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopping:
		return l.closedErr()
	case l.jobs <- job{ctx: ctx, fn: fn, result: make(chan error, 1)}:
		return nil
	}
}

func (l *Lane) closedErr() error {
	return balcaoerr.New(balcaoerr.CodeSessionLaneClosed, "lane is closed",
		balcaoerr.FieldConversationID(l.conversationID))
}

// Close stops accepting work, finishes queued jobs and waits for the worker.
// It is safe to call more than once.
func (l *Lane) Close() {
	l.once.Do(func() {
		close(l.stopping)
		<-l.stopped
	})
}

// LanePool hands out one Lane per conversation.
type LanePool struct {
	mu     sync.Mutex
	lanes  map[string]*Lane
	closed bool
}

func NewLanePool() *LanePool {
	return &LanePool{lanes: make(map[string]*Lane)}
}

// Get returns the lane for conversationID, starting it on first use. After
// Close, Get returns a closed lane whose Submit fails.
func (p *LanePool) Get(conversationID string) *Lane {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.lanes[conversationID]; ok {
		return l
	}
	l := NewLane(conversationID)
	if p.closed {
		l.Close()
		return l
	}
	p.lanes[conversationID] = l
	return l
}

// Submit runs fn on the lane for conversationID.
func (p *LanePool) Submit(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	return p.Get(conversationID).Submit(ctx, fn)
}

// Go queues fn on the lane for conversationID without waiting for it.
func (p *LanePool) Go(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	return p.Get(conversationID).Go(ctx, fn)
}

// Len returns the number of started lanes.
func (p *LanePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes)
}

// Close stops every lane, letting queued jobs finish.
func (p *LanePool) Close() {
	p.mu.Lock()
	lanes := p.lanes
	p.lanes = make(map[string]*Lane)
	p.closed = true
	p.mu.Unlock()

	for _, l := range lanes {
		l.Close()
	}
}
