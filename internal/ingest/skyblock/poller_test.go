package skyblock

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"
	"marketfeed/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type collector struct {
	mu   sync.Mutex
	recs []model.Record
}

func (c *collector) Append(rec model.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func (c *collector) Records() []model.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Record(nil), c.recs...)
}

func TestPollerAppendsOnlyNewDocuments(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		// every document is served twice
		updated := 1_000 * ((n + 1) / 2)
		_, _ = fmt.Fprintf(w, `{"success": true, "lastUpdated": %d, "auctions": []}`, updated)
	})

	out := &collector{}
	p := NewAuctionProducer(c, 5*time.Millisecond)
	assert.Equal(t, enum.CategoryAuction, p.Category())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, out) }()

	require.Eventually(t, func() bool { return len(out.Records()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	recs := out.Records()
	for i, rec := range recs {
		assert.Equal(t, enum.CategoryAuction, rec.Category)
		assert.Equal(t, int64(1_000*(i+1)), rec.Timestamp)
	}
	assert.Greater(t, calls.Load(), int64(len(recs)))
}

func TestPollerKeepsGoingOnTransientFailure(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"success": false, "cause": "busy"}`))
			return
		}
		_, _ = w.Write([]byte(bazaarBody))
	})

	out := &collector{}
	p := NewBazaarProducer(c, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, out) }()

	require.Eventually(t, func() bool { return len(out.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	rec := out.Records()[0]
	assert.Equal(t, enum.CategoryBazaar, rec.Category)
	_, ok := rec.Payload.(model.BazaarSnapshot)
	assert.True(t, ok)
}

func TestPollerStopsWhenUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- NewBazaarProducer(c, time.Millisecond).Run(ctx, &collector{}) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, exception.ErrFeedUnauthorized), "%+v", err)
	case <-ctx.Done():
		t.Fatal("producer kept polling after an unauthorized response")
	}
}
