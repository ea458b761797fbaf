package wifi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitsHas(t *testing.T) {
	b := BitConnected | BitFailed
	assert.True(t, b.Has(BitConnected))
	assert.True(t, b.Has(BitFailed))
	assert.True(t, b.Has(BitConnected|BitFailed))
	assert.False(t, BitConnected.Has(BitFailed))
	assert.False(t, b.Has(0))
}

func TestEventGroup(t *testing.T) {
	t.Run("SetBeforeWait", func(t *testing.T) {
		g := newEventGroup()
		g.Set(BitFailed)

		bits, err := g.Wait(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, BitFailed, bits)
	})

	t.Run("SetWakesWaiter", func(t *testing.T) {
		g := newEventGroup()
		go func() {
			time.Sleep(10 * time.Millisecond)
			g.Set(BitConnected)
		}()

		bits, err := g.Wait(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, BitConnected, bits)
	})

	t.Run("SetTwice", func(t *testing.T) {
		g := newEventGroup()
		g.Set(BitConnected)
		g.Set(BitConnected)
		g.Set(BitFailed)
		assert.Equal(t, BitConnected|BitFailed, g.Bits())
	})

	t.Run("ZeroIgnored", func(t *testing.T) {
		g := newEventGroup()
		g.Set(0)

		bits, err := g.Wait(context.Background(), 10*time.Millisecond)
		assert.ErrorIs(t, err, errWaitTimeout)
		assert.Zero(t, bits)
	})

	t.Run("Timeout", func(t *testing.T) {
		g := newEventGroup()
		start := time.Now()
		bits, err := g.Wait(context.Background(), 20*time.Millisecond)
		assert.ErrorIs(t, err, errWaitTimeout)
		assert.Zero(t, bits)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		g := newEventGroup()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bits, err := g.Wait(ctx, 0)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, bits)
	})
}
