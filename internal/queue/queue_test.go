package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/queue"
)

func item(priority domain.Priority, path string) domain.QueueItem {
	return domain.QueueItem{
		Type:       domain.LineTypeChunk,
		FilePath:   path,
		Priority:   priority,
		EnqueuedAt: time.Now(),
	}
}

func TestHighDrainsFirst(t *testing.T) {
	q := queue.New(10, 10)

	require.True(t, q.Put(item(domain.PriorityStandard, "s1"), time.Second))
	require.True(t, q.Put(item(domain.PriorityStandard, "s2"), time.Second))
	require.True(t, q.Put(item(domain.PriorityHigh, "h1"), time.Second))
	require.True(t, q.Put(item(domain.PriorityHigh, "h2"), time.Second))

	ctx := context.Background()
	var order []string
	for i := 0; i < 4; i++ {
		it, ok := q.Get(ctx)
		require.True(t, ok)
		order = append(order, it.FilePath)
	}
	assert.Equal(t, []string{"h1", "h2", "s1", "s2"}, order)
}

func TestHighPreemptsMidDrain(t *testing.T) {
	q := queue.New(10, 10)
	require.True(t, q.Put(item(domain.PriorityStandard, "s1"), time.Second))
	require.True(t, q.Put(item(domain.PriorityStandard, "s2"), time.Second))

	ctx := context.Background()
	first, ok := q.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "s1", first.FilePath)

	// High-priority work arriving mid-drain goes next.
	require.True(t, q.Put(item(domain.PriorityHigh, "h1"), time.Second))

	second, ok := q.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "h1", second.FilePath)

	third, ok := q.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "s2", third.FilePath)
}

func TestPutTimesOutWhenFull(t *testing.T) {
	q := queue.New(1, 1)
	require.True(t, q.Put(item(domain.PriorityHigh, "h1"), 10*time.Millisecond))

	start := time.Now()
	ok := q.Put(item(domain.PriorityHigh, "h2"), 50*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPutUnblocksWhenConsumed(t *testing.T) {
	q := queue.New(1, 1)
	require.True(t, q.Put(item(domain.PriorityHigh, "h1"), time.Second))

	done := make(chan bool)
	go func() {
		done <- q.Put(item(domain.PriorityHigh, "h2"), time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	_, ok := q.Get(context.Background())
	require.True(t, ok)

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock after Get")
	}
}

func TestIsFull(t *testing.T) {
	q := queue.New(10, 10)
	assert.False(t, q.IsFull())

	for i := 0; i < 9; i++ {
		require.True(t, q.Put(item(domain.PriorityStandard, "s"), time.Second))
	}
	assert.True(t, q.IsFull())

	high, standard := q.Sizes()
	assert.Equal(t, 0, high)
	assert.Equal(t, 9, standard)
}

func TestGetHonorsContext(t *testing.T) {
	q := queue.New(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.Get(ctx)
	assert.False(t, ok)
}

func TestConcurrentProducersSingleConsumer(t *testing.T) {
	q := queue.New(100, 100)
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		priority := domain.PriorityStandard
		if p%2 == 0 {
			priority = domain.PriorityHigh
		}
		go func(priority domain.Priority) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Put(item(priority, "x"), time.Second)
			}
		}(priority)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := 0
	go func() {
		wg.Wait()
	}()
	for received < 4*perProducer {
		_, ok := q.Get(ctx)
		require.True(t, ok)
		received++
	}
	assert.Equal(t, 4*perProducer, received)
}
