package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeBlocksUntilPush(t *testing.T) {
	q := New[int]()
	done := make(chan int, 1)
	go func() {
		done <- q.Take()
	}()

	select {
	case <-done:
		t.Fatal("Take returned before any Push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(7)
	select {
	case v := <-done:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("Take never woke up after Push")
	}
}

func TestTryTakeNeverBlocks(t *testing.T) {
	q := New[string]()
	_, ok := q.TryTake()
	assert.False(t, ok)

	q.Push("a")
	v, ok := q.TryTake()
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestFIFOOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.TryTake()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestRemovePredicate(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)
	q.Push(3)

	got, ok := q.Remove(func(v int) bool { return v == 2 })
	require.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, q.Len())

	_, ok = q.Remove(func(v int) bool { return v == 99 })
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)
	q.Clear()
	assert.Equal(t, 0, q.Len())
}

func TestNonStarvationUnderConcurrentTakers(t *testing.T) {
	q := New[int]()
	const n = 50
	var wg sync.WaitGroup
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Take()
		}()
	}
	for i := 0; i < n; i++ {
		q.Push(i)
	}
	wg.Wait()
	close(results)
	count := 0
	for range results {
		count++
	}
	assert.Equal(t, n, count)
}
