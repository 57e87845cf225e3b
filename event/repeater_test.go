package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan int, n int) []int {
	t.Helper()
	values := make([]int, 0, n)
	for range n {
		select {
		case v := <-ch:
			values = append(values, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for value %d of %d", len(values)+1, n)
		}
	}
	return values
}

func TestRepeater(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards source values in order", func(t *testing.T) {
		r := NewRepeater[int]("aggregate")
		source := New[int]("source")
		require.NoError(t, r.Attach(source, 8))

		_, ch := r.Out().SubscribeChannel("receiver", 8, false)

		source.Dispatch(ctx, 1)
		source.Dispatch(ctx, 2)
		source.Dispatch(ctx, 3)

		assert.Equal(t, []int{1, 2, 3}, collect(t, ch, 3))
		require.NoError(t, r.Detach(source))
	})

	t.Run("double attach is rejected", func(t *testing.T) {
		r := NewRepeater[int]("aggregate")
		source := New[int]("source")

		require.NoError(t, r.Attach(source, 1))
		require.ErrorIs(t, r.Attach(source, 1), ErrAlreadyAttached)
		assert.Equal(t, 1, r.SourceCount())

		require.NoError(t, r.Detach(source))
	})

	t.Run("multiple sources fan in", func(t *testing.T) {
		r := NewRepeater[int]("aggregate")
		a := New[int]("source-a")
		b := New[int]("source-b")
		require.NoError(t, r.Attach(a, 4))
		require.NoError(t, r.Attach(b, 4))

		_, ch := r.Out().SubscribeChannel("receiver", 4, false)

		a.Dispatch(ctx, 1)
		b.Dispatch(ctx, 2)

		assert.ElementsMatch(t, []int{1, 2}, collect(t, ch, 2))

		require.NoError(t, r.Detach(a))
		require.NoError(t, r.Detach(b))
	})

	t.Run("detach stops forwarding", func(t *testing.T) {
		r := NewRepeater[int]("aggregate")
		source := New[int]("source")
		require.NoError(t, r.Attach(source, 4))

		_, ch := r.Out().SubscribeChannel("receiver", 4, false)

		source.Dispatch(ctx, 1)
		assert.Equal(t, []int{1}, collect(t, ch, 1))

		require.NoError(t, r.Detach(source))
		assert.Equal(t, 0, source.SubscriberCount())

		source.Dispatch(ctx, 2)
		select {
		case v := <-ch:
			t.Fatalf("received %d after detach", v)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("detach of unattached source is rejected", func(t *testing.T) {
		r := NewRepeater[int]("aggregate")
		source := New[int]("source")
		require.ErrorIs(t, r.Detach(source), ErrNotAttached)
	})

	t.Run("close rejects while sources are attached", func(t *testing.T) {
		r := NewRepeater[int]("aggregate")
		source := New[int]("source")
		require.NoError(t, r.Attach(source, 1))

		require.ErrorIs(t, r.Close(), ErrStillAttached)

		require.NoError(t, r.Detach(source))
		require.NoError(t, r.Close())
	})
}
