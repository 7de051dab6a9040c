package skyblock

import (
	"context"
	"time"

	"marketfeed/internal/ingest"
	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"
	"marketfeed/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	DefaultBazaarInterval  = 20 * time.Second
	DefaultAuctionInterval = 60 * time.Second
)

// fetchFunc returns the latest document as a record plus its update time.
type fetchFunc func(ctx context.Context) (model.Record, int64, error)

// Poller is a producer that fetches on a fixed interval and appends a record
// only when the feed has published something newer than the last one seen.
type Poller struct {
	category enum.Category
	interval time.Duration
	fetch    fetchFunc
}

// NewBazaarProducer polls bazaar snapshots.
func NewBazaarProducer(c *Client, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultBazaarInterval
	}
	return &Poller{
		category: enum.CategoryBazaar,
		interval: interval,
		fetch: func(ctx context.Context) (model.Record, int64, error) {
			snapshot, err := c.Bazaar(ctx)
			if err != nil {
				return model.Record{}, 0, err
			}
			return model.NewBazaarRecord(snapshot), snapshot.LastUpdated, nil
		},
	}
}

// NewAuctionProducer polls recently ended auctions.
func NewAuctionProducer(c *Client, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultAuctionInterval
	}
	return &Poller{
		category: enum.CategoryAuction,
		interval: interval,
		fetch: func(ctx context.Context) (model.Record, int64, error) {
			batch, err := c.EndedAuctions(ctx)
			if err != nil {
				return model.Record{}, 0, err
			}
			return model.NewAuctionRecord(batch), batch.LastUpdated, nil
		},
	}
}

func (p *Poller) Category() enum.Category {
	return p.category
}

// Run polls until ctx is cancelled. Unauthorized responses end the producer
// with an error, any other failure is logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context, out ingest.Appender) error {
	var last int64

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		rec, updated, err := p.fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			if errors.Is(err, exception.ErrFeedUnauthorized) {
				logs.Errorf("[%s] feed refused credentials, err: %+v", p.category, err)
				return err
			}
			logs.Warnf("[%s] fetch failed, err: %+v", p.category, err)
		case updated > last:
			last = updated
			out.Append(rec)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
