package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/pulse/pipeline"
)

func TestSequencer_FIFO(t *testing.T) {
	s := pipeline.NewSequencer()
	release, err := s.Acquire(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, s.Busy(alice))

	order := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		queued := make(chan struct{})
		go func() {
			close(queued)
			rel, err := s.Acquire(context.Background(), alice)
			if err != nil {
				return
			}
			order <- i
			rel()
		}()
		<-queued
		// Let the goroutine enqueue before starting the next one.
		time.Sleep(10 * time.Millisecond)
	}

	release()
	for want := 0; want < 3; want++ {
		select {
		case got := <-order:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("waiter never acquired the lane")
		}
	}
	assert.Eventually(t, func() bool { return !s.Busy(alice) }, time.Second, time.Millisecond)
}

func TestSequencer_IndependentAddresses(t *testing.T) {
	s := pipeline.NewSequencer()
	ra, err := s.Acquire(context.Background(), alice)
	require.NoError(t, err)
	defer ra()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rb, err := s.Acquire(ctx, reader)
	require.NoError(t, err)
	rb()
}

func TestSequencer_CancelWhileWaiting(t *testing.T) {
	s := pipeline.NewSequencer()
	release, err := s.Acquire(context.Background(), alice)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(ctx, alice)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.False(t, s.Busy(alice), "a cancelled waiter must not hold the lane")
}

func TestSequencer_ReleaseIdempotent(t *testing.T) {
	s := pipeline.NewSequencer()
	first, err := s.Acquire(context.Background(), alice)
	require.NoError(t, err)

	acquired := make(chan func())
	go func() {
		rel, err := s.Acquire(context.Background(), alice)
		if err == nil {
			acquired <- rel
		}
	}()
	time.Sleep(10 * time.Millisecond)

	first()
	second := <-acquired
	// A repeated release from the first holder must not free the lane
	// held by the second.
	first()
	assert.True(t, s.Busy(alice))
	second()
	assert.False(t, s.Busy(alice))
}
