package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	q := New[int](0)
	require.NoError(t, q.Push(1, 42))
	require.Equal(t, 1, q.Len())

	v, ok := q.Pop(1)
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.Equal(t, 0, q.Len())

	_, ok = q.Pop(1)
	require.False(t, ok)
}

func TestPushRejectsAtCapacity(t *testing.T) {
	q := New[int](1)
	require.NoError(t, q.Push(1, 1))
	err := q.Push(2, 2)
	require.Error(t, err)
}

func TestGetDoesNotRemove(t *testing.T) {
	q := New[int](0)
	require.NoError(t, q.Push(1, 7))
	v, ok := q.Get(1)
	require.True(t, ok)
	require.Equal(t, 7, v)
	require.Equal(t, 1, q.Len())
}

func TestPopAny(t *testing.T) {
	q := New[int](0)
	require.NoError(t, q.Push(1, 1))
	id, v, ok := q.PopAny()
	require.True(t, ok)
	require.Equal(t, int64(1), id)
	require.Equal(t, 1, v)

	_, _, ok = q.PopAny()
	require.False(t, ok)
}

func TestBlockingPopUnblocksOnPush(t *testing.T) {
	q := New[int](0)
	done := make(chan int, 1)
	go func() {
		v, err := q.BlockingPop(context.Background(), 5)
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(5, 99))

	select {
	case v := <-done:
		require.Equal(t, 99, v)
	case <-time.After(time.Second):
		t.Fatal("BlockingPop did not unblock")
	}
}

func TestBlockingPopRespectsContextCancellation(t *testing.T) {
	q := New[int](0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.BlockingPop(ctx, 1)
	require.Error(t, err)
}

func TestBlockingPopAny(t *testing.T) {
	q := New[int](0)
	done := make(chan int64, 1)
	go func() {
		id, _, err := q.BlockingPopAny(context.Background())
		require.NoError(t, err)
		done <- id
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(3, 1))

	select {
	case id := <-done:
		require.Equal(t, int64(3), id)
	case <-time.After(time.Second):
		t.Fatal("BlockingPopAny did not unblock")
	}
}

func TestPushSweepingEvictsStaleEntries(t *testing.T) {
	q := New[int](1)
	require.NoError(t, q.Push(1, 1))
	time.Sleep(10 * time.Millisecond)

	err := q.PushSweeping(2, 2, 5*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())
	v, ok := q.Get(2)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestEvictOlderThan(t *testing.T) {
	q := New[int](0)
	require.NoError(t, q.Push(1, 1))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push(2, 2))

	evicted := q.EvictOlderThan(5 * time.Millisecond)
	require.Equal(t, []int64{1}, evicted)
	require.Equal(t, 1, q.Len())
}
