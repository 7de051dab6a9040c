package model

import (
	"testing"

	"marketfeed/internal/model/enum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadAuction(t *testing.T) {
	raw := []byte(`{"lastUpdated":1700000000000,"auctions":[{"auctionId":"a1","seller":"s","buyer":"b","timestamp":1699999999000,"price":1500,"bin":true}]}`)

	payload, err := DecodePayload(enum.CategoryAuction, raw)
	require.NoError(t, err)

	batch, ok := payload.(AuctionBatch)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), batch.LastUpdated)
	require.Len(t, batch.Auctions, 1)
	assert.Equal(t, "a1", batch.Auctions[0].AuctionID)
	assert.Equal(t, int64(1500), batch.Auctions[0].Price)
	assert.True(t, batch.Auctions[0].BIN)
}

func TestDecodePayloadUnknownCategory(t *testing.T) {
	_, err := DecodePayload(enum.Category(0), []byte(`{}`))
	assert.Error(t, err)
}

func TestNewBazaarRecord(t *testing.T) {
	rec := NewBazaarRecord(BazaarSnapshot{LastUpdated: 42})
	assert.Equal(t, enum.CategoryBazaar, rec.Category)
	assert.Equal(t, int64(42), rec.Timestamp)
	assert.Equal(t, int64(42), rec.Time().UnixMilli())
}
