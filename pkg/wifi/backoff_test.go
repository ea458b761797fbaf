package wifi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	t.Run("DisabledIsNil", func(t *testing.T) {
		b := NewBackoff(BackoffConfig{})
		assert.Nil(t, b)
		assert.Zero(t, b.Next())
		assert.Zero(t, b.Attempts())
		assert.Zero(t, b.Current())
		b.Reset()
	})

	t.Run("Sequence", func(t *testing.T) {
		b := NewBackoff(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
		})
		require.NotNil(t, b)

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond, // Max
			500 * time.Millisecond,
		}
		for i, exp := range expected {
			assert.Equal(t, exp, b.Next(), "attempt %d", i)
		}
		assert.Equal(t, len(expected), b.Attempts())
	})

	t.Run("Defaults", func(t *testing.T) {
		b := NewBackoff(BackoffConfig{Initial: time.Second})
		require.NotNil(t, b)

		assert.Equal(t, time.Second, b.Next())
		assert.Equal(t, 2*time.Second, b.Current())
		for i := 0; i < 10; i++ {
			b.Next()
		}
		assert.Equal(t, DefaultBackoffMax, b.Current())
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff(BackoffConfig{
			Initial: time.Second,
			Max:     time.Second,
			Jitter:  0.25,
		})
		for i := 0; i < 20; i++ {
			d := b.Next()
			assert.GreaterOrEqual(t, d, time.Second)
			assert.LessOrEqual(t, d, 1250*time.Millisecond)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff(BackoffConfig{Initial: 10 * time.Millisecond})
		for i := 0; i < 3; i++ {
			b.Next()
		}
		assert.Greater(t, b.Current(), 10*time.Millisecond)

		b.Reset()
		assert.Equal(t, 10*time.Millisecond, b.Current())
		assert.Zero(t, b.Attempts())
	})
}
