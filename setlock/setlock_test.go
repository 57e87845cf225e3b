package setlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLock(t *testing.T) {
	t.Run("set once", func(t *testing.T) {
		var l SetLock[string]

		assert.False(t, l.IsSet())
		_, ok := l.Get()
		assert.False(t, ok)

		require.NoError(t, l.Set("first"))
		assert.True(t, l.IsSet())

		value, ok := l.Get()
		assert.True(t, ok)
		assert.Equal(t, "first", value)
	})

	t.Run("second set fails without mutating", func(t *testing.T) {
		var l SetLock[string]

		require.NoError(t, l.Set("first"))
		err := l.Set("second")
		require.ErrorIs(t, err, ErrAlreadySet)

		value, ok := l.Get()
		assert.True(t, ok)
		assert.Equal(t, "first", value)
	})

	t.Run("must get", func(t *testing.T) {
		var l SetLock[int]

		assert.Panics(t, func() { l.MustGet() })

		require.NoError(t, l.Set(42))
		assert.Equal(t, 42, l.MustGet())
	})

	t.Run("zero value is usable", func(t *testing.T) {
		var l SetLock[*SetLock[int]]
		require.NoError(t, l.Set(nil))
		require.ErrorIs(t, l.Set(&SetLock[int]{}), ErrAlreadySet)
	})
}
