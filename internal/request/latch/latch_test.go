package latch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lifeline/pkg/domain"
)

func TestMemoryLatch(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()
	requestID := id.NewRequestID()

	first, err := l.Acquire(ctx, requestID)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := l.Acquire(ctx, requestID)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := l.Acquire(ctx, id.NewRequestID())
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, l.Clear(ctx, requestID))
	reacquired, err := l.Acquire(ctx, requestID)
	require.NoError(t, err)
	assert.True(t, reacquired)
}

func TestMemoryLatch_Concurrent(t *testing.T) {
	l := NewMemory()
	requestID := id.NewRequestID()

	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Acquire(context.Background(), requestID); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
