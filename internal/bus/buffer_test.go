package bus

import (
	"sync"
	"testing"

	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(ts int64) model.Record {
	return model.Record{Category: enum.CategoryBazaar, Timestamp: ts}
}

func TestBufferNewestFirst(t *testing.T) {
	b := NewBuffer(enum.CategoryBazaar)
	_, ok := b.PeekNewest()
	require.False(t, ok)

	for ts := int64(1); ts <= 5; ts++ {
		b.Append(rec(ts))
	}

	var got []int64
	for {
		e, ok := b.PeekNewest()
		if !ok {
			break
		}
		got = append(got, e.Record.Timestamp)
		require.True(t, b.RemoveNewest(e))
	}
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, got)
	assert.True(t, b.Empty())
}

func TestBufferRemoveKeepsConcurrentAppend(t *testing.T) {
	b := NewBuffer(enum.CategoryAuction)
	b.Append(rec(1))
	b.Append(rec(2))

	peeked, ok := b.PeekNewest()
	require.True(t, ok)
	require.Equal(t, int64(2), peeked.Record.Timestamp)

	// an append lands between peek and remove
	b.Append(rec(3))

	require.True(t, b.RemoveNewest(peeked))
	assert.Equal(t, 2, b.Len())

	e, ok := b.PeekNewest()
	require.True(t, ok)
	assert.Equal(t, int64(3), e.Record.Timestamp)
	require.True(t, b.RemoveNewest(e))

	e, ok = b.PeekNewest()
	require.True(t, ok)
	assert.Equal(t, int64(1), e.Record.Timestamp)
}

func TestBufferRemoveTwice(t *testing.T) {
	b := NewBuffer(enum.CategoryBazaar)
	b.Append(rec(1))
	e, _ := b.PeekNewest()
	assert.True(t, b.RemoveNewest(e))
	assert.False(t, b.RemoveNewest(e))
}

func TestBufferConcurrentAppendAndDrain(t *testing.T) {
	const (
		writers   = 4
		perWriter = 500
	)
	b := NewBuffer(enum.CategoryBazaar)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Append(rec(int64(w*perWriter + i)))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	seen := make(map[int64]bool, writers*perWriter)
	drain := func() {
		for {
			e, ok := b.PeekNewest()
			if !ok {
				return
			}
			require.True(t, b.RemoveNewest(e))
			require.False(t, seen[e.Record.Timestamp], "duplicate %d", e.Record.Timestamp)
			seen[e.Record.Timestamp] = true
		}
	}

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		drain()
	}
	drain()

	assert.Len(t, seen, writers*perWriter)
}
