// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/balcao/internal/session"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLane_RunsInArrivalOrder(t *testing.T) {
	lane := session.NewLane("conv-1")
	defer lane.Close()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := range 3 {
		time.Sleep(5 * time.Millisecond)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lane.Submit(context.Background(), func(_ context.Context) error {
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestLanePool_ConversationsRunInParallel(t *testing.T) {
	pool := session.NewLanePool()
	defer pool.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Submit(context.Background(), id, func(_ context.Context) error {
				cur := running.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 3, pool.Len())
	assert.Same(t, pool.Get("a"), pool.Get("a"))
}

func TestLane_SameConversationNeverOverlaps(t *testing.T) {
	pool := session.NewLanePool()
	defer pool.Close()

	var running atomic.Int32
	var overlapped atomic.Bool
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Submit(context.Background(), "same", func(_ context.Context) error {
				if running.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load())
}

func TestLane_CancelledContextSkipsWork(t *testing.T) {
	lane := session.NewLane("conv-cancel")
	defer lane.Close()

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := lane.Submit(context.Background(), func(_ context.Context) error {
			close(started)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
		assert.NoError(t, err)
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := lane.Submit(ctx, func(_ context.Context) error {
		t.Error("should not execute")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	wg.Wait()
}

func TestLane_RecoversPanic(t *testing.T) {
	lane := session.NewLane("conv-panic")
	defer lane.Close()

	err := lane.Submit(context.Background(), func(_ context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeSessionLanePanic))

	err = lane.Submit(context.Background(), func(_ context.Context) error { return nil })
	assert.NoError(t, err, "lane keeps working after a panic")
}

func TestLane_SubmitAfterClose(t *testing.T) {
	lane := session.NewLane("conv-closed")
	lane.Close()
	lane.Close()

	err := lane.Submit(context.Background(), func(_ context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeSessionLaneClosed))

	pool := session.NewLanePool()
	pool.Close()
	err = pool.Submit(context.Background(), "late", func(_ context.Context) error { return nil })
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeSessionLaneClosed))
}

func TestLanePool_GoKeepsOrderWithoutWaiting(t *testing.T) {
	pool := session.NewLanePool()

	var mu sync.Mutex
	var order []int
	release := make(chan struct{})

	for i := range 5 {
		err := pool.Go(context.Background(), "conv", func(_ context.Context) error {
			<-release
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	close(release)
	pool.Close() // drains queued jobs

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)

	err := pool.Go(context.Background(), "conv", func(context.Context) error { return nil })
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeSessionLaneClosed))
}
