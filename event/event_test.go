package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Kitt3120/lum/errors"
)

func TestEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatch to channel subscriber", func(t *testing.T) {
		e := New[int]("test")
		_, ch := e.SubscribeChannel("receiver", 2, false)

		require.Empty(t, e.Dispatch(ctx, 1))
		require.Empty(t, e.Dispatch(ctx, 2))

		assert.Equal(t, 1, <-ch)
		assert.Equal(t, 2, <-ch)
	})

	t.Run("dispatch order follows registration order", func(t *testing.T) {
		e := New[int]("test")

		var order []string
		e.Subscribe("first", func(int) error {
			order = append(order, "first")
			return nil
		}, false)
		e.Subscribe("second", func(int) error {
			order = append(order, "second")
			return nil
		}, false)
		e.SubscribeAsync("third", func(context.Context, int) error {
			order = append(order, "third")
			return nil
		}, false)

		require.Empty(t, e.Dispatch(ctx, 0))
		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("failing subscriber does not halt delivery", func(t *testing.T) {
		e := New[int]("test")
		boom := errors.New("boom")

		received := 0
		e.Subscribe("ok-1", func(int) error { received++; return nil }, false)
		e.Subscribe("bad", func(int) error { return boom }, false)
		e.Subscribe("ok-2", func(int) error { received++; return nil }, false)

		errs := e.Dispatch(ctx, 0)
		require.Len(t, errs, 1)
		assert.Equal(t, "bad", errs[0].Subscriber)
		assert.ErrorIs(t, errs[0].Err, boom)
		assert.Equal(t, 2, received)
	})

	t.Run("remove on error drops only the offender", func(t *testing.T) {
		e := New[int]("test")
		boom := errors.New("boom")

		e.Subscribe("bad-removed", func(int) error { return boom }, true)
		e.Subscribe("bad-kept", func(int) error { return boom }, false)
		e.Subscribe("ok", func(int) error { return nil }, false)

		errs := e.Dispatch(ctx, 0)
		require.Len(t, errs, 2)
		assert.Equal(t, 2, e.SubscriberCount())

		errs = e.Dispatch(ctx, 0)
		require.Len(t, errs, 1)
		assert.Equal(t, "bad-kept", errs[0].Subscriber)
		assert.Equal(t, 2, e.SubscriberCount())
	})

	t.Run("full queue fails without blocking", func(t *testing.T) {
		e := New[int]("test")
		e.SubscribeChannel("slow", 1, false)

		require.Empty(t, e.Dispatch(ctx, 1))

		done := make(chan DispatchErrors, 1)
		go func() { done <- e.Dispatch(ctx, 2) }()

		select {
		case errs := <-done:
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0].Err, ErrQueueFull)
		case <-time.After(time.Second):
			t.Fatal("dispatch blocked on a full queue")
		}
	})

	t.Run("unsubscribe", func(t *testing.T) {
		e := New[int]("test")

		received := 0
		sub := e.Subscribe("gone", func(int) error { received++; return nil }, false)
		e.Subscribe("kept", func(int) error { return nil }, false)

		assert.True(t, e.Unsubscribe(sub))
		assert.False(t, e.Unsubscribe(sub))
		assert.Equal(t, 1, e.SubscriberCount())

		require.Empty(t, e.Dispatch(ctx, 0))
		assert.Equal(t, 0, received)
	})

	t.Run("dispatch without subscribers", func(t *testing.T) {
		e := New[string]("test")
		assert.Empty(t, e.Dispatch(ctx, "nobody home"))
	})
}

func TestDispatchErrors(t *testing.T) {
	errs := DispatchErrors{
		{Subscriber: "a", Err: errors.New("one")},
		{Subscriber: "b", Err: errors.New("two")},
	}
	assert.Equal(t, `failed to dispatch to subscriber "a": one; failed to dispatch to subscriber "b": two`, errs.Error())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
