package linuxsta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptsLinkDownDuringDHCP(t *testing.T) {
	var a attempts
	a.setLink(true)

	first, up := a.begin()
	require.True(t, up)
	ctx, ok := a.startAcquire(context.Background(), first)
	require.True(t, ok)

	// Link loss resolves the attempt and stops its exchange.
	assert.True(t, a.setLink(false))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Zero(t, a.pending())

	// The handler reconnects while the old exchange is still winding down.
	second, up := a.begin()
	assert.False(t, up)
	assert.NotEqual(t, first, second)

	assert.False(t, a.finishAcquire(first), "stale failure must not be reported")
	assert.Equal(t, second, a.pending())

	// The next link-up gets its own exchange.
	a.setLink(true)
	ctx2, ok := a.startAcquire(context.Background(), second)
	require.True(t, ok)
	assert.NoError(t, ctx2.Err())
	assert.True(t, a.finishAcquire(second))
	assert.Zero(t, a.pending())
}

func TestAttemptsStaleResultBeforeReconnect(t *testing.T) {
	var a attempts
	a.setLink(true)

	attempt, _ := a.begin()
	_, ok := a.startAcquire(context.Background(), attempt)
	require.True(t, ok)

	a.setLink(false)
	assert.False(t, a.finishAcquire(attempt))
}

func TestAttemptsSingleExchange(t *testing.T) {
	var a attempts
	a.setLink(true)

	attempt, _ := a.begin()
	_, ok := a.startAcquire(context.Background(), attempt)
	require.True(t, ok)

	_, ok = a.startAcquire(context.Background(), attempt)
	assert.False(t, ok, "second exchange for the same attempt")

	_, ok = a.startAcquire(context.Background(), 0)
	assert.False(t, ok)
}

func TestAttemptsStartAcquireForSupersededAttempt(t *testing.T) {
	var a attempts
	a.setLink(true)

	old, _ := a.begin()
	_, _ = a.begin()

	_, ok := a.startAcquire(context.Background(), old)
	assert.False(t, ok)
}

func TestAttemptsExpire(t *testing.T) {
	t.Run("LinkNeverUp", func(t *testing.T) {
		var a attempts
		attempt, up := a.begin()
		require.False(t, up)

		assert.True(t, a.expire(attempt))
		assert.Zero(t, a.pending())
		assert.False(t, a.expire(attempt), "resolved once")
	})

	t.Run("LinkCameUp", func(t *testing.T) {
		var a attempts
		attempt, _ := a.begin()
		a.setLink(true)

		assert.False(t, a.expire(attempt))
		assert.Equal(t, attempt, a.pending())
	})

	t.Run("Superseded", func(t *testing.T) {
		var a attempts
		old, _ := a.begin()
		_, _ = a.begin()

		assert.False(t, a.expire(old))
	})
}

func TestAttemptsParentCancel(t *testing.T) {
	var a attempts
	a.setLink(true)

	parent, cancel := context.WithCancel(context.Background())
	attempt, _ := a.begin()
	ctx, ok := a.startAcquire(parent, attempt)
	require.True(t, ok)

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, a.finishAcquire(attempt))
}
