package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBestEffortRunsSubmittedTasks(t *testing.T) {
	be := NewBestEffort(16, 2, time.Second, nil)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		ok := be.Submit("count", func(ctx context.Context) {
			mu.Lock()
			ran++
			mu.Unlock()
		})
		require.True(t, ok)
	}

	be.Close()
	require.Equal(t, 10, ran)
}

func TestBestEffortDropsWhenFull(t *testing.T) {
	be := NewBestEffort(1, 1, time.Second, nil)

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, be.Submit("blocker", func(ctx context.Context) {
		close(started)
		<-block
	}))
	<-started

	// One slot in the queue, then intake overflows.
	require.True(t, be.Submit("queued", func(ctx context.Context) {}))
	require.False(t, be.Submit("dropped", func(ctx context.Context) {}))

	close(block)
	be.Close()
}

func TestBestEffortRejectsAfterClose(t *testing.T) {
	be := NewBestEffort(4, 1, time.Second, nil)
	be.Close()
	require.False(t, be.Submit("late", func(ctx context.Context) {}))
}
