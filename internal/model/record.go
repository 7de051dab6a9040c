package model

import (
	"time"

	"marketfeed/internal/model/enum"
)

// Record is one fetched unit of market data. Payload is opaque to the pipeline;
// the write operation of the record's category knows how to persist it.
type Record struct {
	Category  enum.Category
	Timestamp int64 // unix milliseconds, assigned by the producer
	Payload   any
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// NewBazaarRecord wraps a snapshot into a record stamped with its update time.
func NewBazaarRecord(snapshot BazaarSnapshot) Record {
	return Record{
		Category:  enum.CategoryBazaar,
		Timestamp: snapshot.LastUpdated,
		Payload:   snapshot,
	}
}

// NewAuctionRecord wraps a batch of ended auctions into a record.
func NewAuctionRecord(batch AuctionBatch) Record {
	return Record{
		Category:  enum.CategoryAuction,
		Timestamp: batch.LastUpdated,
		Payload:   batch,
	}
}
