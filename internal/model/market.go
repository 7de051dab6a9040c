package model

import (
	"marketfeed/internal/model/enum"
	"marketfeed/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

// BazaarProduct is the quick status of one bazaar product at snapshot time.
//
// Buy fields describe instant buys (sell offers), sell fields describe instant
// sells (buy orders).
type BazaarProduct struct {
	ProductID      string          `json:"productId"`
	BuyPrice       decimal.Decimal `json:"buyPrice"`
	BuyVolume      int64           `json:"buyVolume"`
	BuyMovingWeek  int64           `json:"buyMovingWeek"`
	BuyOrders      int64           `json:"buyOrders"`
	SellPrice      decimal.Decimal `json:"sellPrice"`
	SellVolume     int64           `json:"sellVolume"`
	SellMovingWeek int64           `json:"sellMovingWeek"`
	SellOrders     int64           `json:"sellOrders"`
}

// BazaarSnapshot is the whole bazaar as published at LastUpdated.
type BazaarSnapshot struct {
	LastUpdated int64           `json:"lastUpdated"`
	Products    []BazaarProduct `json:"products"`
}

// EndedAuction is a closed trade.
type EndedAuction struct {
	AuctionID     string `json:"auctionId"`
	Seller        string `json:"seller"`
	SellerProfile string `json:"sellerProfile"`
	Buyer         string `json:"buyer"`
	Timestamp     int64  `json:"timestamp"`
	Price         int64  `json:"price"`
	BIN           bool   `json:"bin"`
	ItemBytes     string `json:"itemBytes"`
}

// AuctionBatch holds the auctions that ended in the window published at LastUpdated.
type AuctionBatch struct {
	LastUpdated int64          `json:"lastUpdated"`
	Auctions    []EndedAuction `json:"auctions"`
}

// DecodePayload rebuilds a record payload from its JSON form.
func DecodePayload(category enum.Category, raw []byte) (any, error) {
	switch category {
	case enum.CategoryBazaar:
		var snapshot BazaarSnapshot
		if err := sonic.Unmarshal(raw, &snapshot); err != nil {
			return nil, errors.Wrap(err, "unmarshal bazaar snapshot")
		}
		return snapshot, nil
	case enum.CategoryAuction:
		var batch AuctionBatch
		if err := sonic.Unmarshal(raw, &batch); err != nil {
			return nil, errors.Wrap(err, "unmarshal auction batch")
		}
		return batch, nil
	default:
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "category: %d", category)
	}
}
