package changelog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingFollowsCursor(t *testing.T) {
	l := New("ledger")
	l.Register("stock_analytics")

	assert.False(t, l.HasPending("stock_analytics"))

	l.Append("ingest", 10)
	l.Append("ingest", 5)
	assert.True(t, l.HasPending("stock_analytics"))
	assert.Equal(t, uint64(2), l.PendingCount("stock_analytics"))

	events, head, err := l.Drain("stock_analytics")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(2), head)
	assert.Equal(t, 10, events[0].Rows)

	// drain does not move the cursor
	assert.True(t, l.HasPending("stock_analytics"))

	require.NoError(t, l.Commit("stock_analytics", head))
	assert.False(t, l.HasPending("stock_analytics"))
}

func TestEventsAfterDrainStayPending(t *testing.T) {
	l := New("ledger")
	l.Register("usage_stats")
	l.Append("ingest", 1)

	_, head, err := l.Drain("usage_stats")
	require.NoError(t, err)

	l.Append("ingest", 1)
	require.NoError(t, l.Commit("usage_stats", head))

	assert.True(t, l.HasPending("usage_stats"))
	assert.Equal(t, uint64(1), l.PendingCount("usage_stats"))
}

func TestCommitIsMonotonic(t *testing.T) {
	l := New("ledger")
	l.Register("c")
	l.Append("ingest", 1)
	l.Append("ingest", 1)

	require.NoError(t, l.Commit("c", 2))
	require.NoError(t, l.Commit("c", 1))

	cur, err := l.Cursor("c")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur)

	err = l.Commit("c", 3)
	assert.ErrorIs(t, err, ErrCursorAhead)
}

func TestUnknownConsumer(t *testing.T) {
	l := New("ledger")
	l.Append("ingest", 1)

	assert.False(t, l.HasPending("nobody"))
	_, _, err := l.Drain("nobody")
	assert.ErrorIs(t, err, ErrUnknownConsumer)
	assert.ErrorIs(t, l.Commit("nobody", 1), ErrUnknownConsumer)
}

func TestCompactionKeepsSlowestConsumerEvents(t *testing.T) {
	l := New("ledger")
	l.Register("fast")
	l.Register("slow")
	for i := 0; i < 5; i++ {
		l.Append("ingest", 1)
	}

	require.NoError(t, l.Commit("fast", 5))
	require.NoError(t, l.Commit("slow", 3))
	assert.Equal(t, 2, l.Stats().Retained)

	events, _, err := l.Drain("slow")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(4), events[0].Seq)
}

func TestConcurrentAppend(t *testing.T) {
	l := New("ledger")
	l.Register("c")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append("ingest", 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), l.Head())
	assert.Equal(t, uint64(50), l.PendingCount("c"))
}
