package store

import "marketfeed/internal/model"

// BazaarQuote is one product's quick status inside a bazaar snapshot.
type BazaarQuote struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	ProductID      string `gorm:"size:128;not null;uniqueIndex:idx_bazaar_quotes_product_time,priority:1"`
	LastUpdated    int64  `gorm:"not null;index;uniqueIndex:idx_bazaar_quotes_product_time,priority:2"`
	BuyPrice       string `gorm:"type:numeric"`
	BuyVolume      int64
	BuyMovingWeek  int64
	BuyOrders      int64
	SellPrice      string `gorm:"type:numeric"`
	SellVolume     int64
	SellMovingWeek int64
	SellOrders     int64
}

func (BazaarQuote) TableName() string {
	return "bazaar_quotes"
}

// EndedAuction is a closed trade. AuctionID keeps re-delivered batches idempotent.
type EndedAuction struct {
	AuctionID     string `gorm:"primaryKey;size:64"`
	Seller        string `gorm:"size:64;index"`
	SellerProfile string `gorm:"size:64"`
	Buyer         string `gorm:"size:64;index"`
	EndedAt       int64  `gorm:"not null;index"`
	Price         int64  `gorm:"not null"`
	BIN           bool   `gorm:"column:bin"`
	ItemBytes     string `gorm:"type:text"`
	LastUpdated   int64  `gorm:"not null;index"`
}

func (EndedAuction) TableName() string {
	return "ended_auctions"
}

func bazaarRows(snapshot model.BazaarSnapshot) []BazaarQuote {
	rows := make([]BazaarQuote, 0, len(snapshot.Products))
	for _, p := range snapshot.Products {
		if p.ProductID == "" {
			continue
		}
		rows = append(rows, BazaarQuote{
			ProductID:      p.ProductID,
			LastUpdated:    snapshot.LastUpdated,
			BuyPrice:       p.BuyPrice.String(),
			BuyVolume:      p.BuyVolume,
			BuyMovingWeek:  p.BuyMovingWeek,
			BuyOrders:      p.BuyOrders,
			SellPrice:      p.SellPrice.String(),
			SellVolume:     p.SellVolume,
			SellMovingWeek: p.SellMovingWeek,
			SellOrders:     p.SellOrders,
		})
	}
	return rows
}

func auctionRows(batch model.AuctionBatch) []EndedAuction {
	rows := make([]EndedAuction, 0, len(batch.Auctions))
	for _, a := range batch.Auctions {
		if a.AuctionID == "" {
			continue
		}
		rows = append(rows, EndedAuction{
			AuctionID:     a.AuctionID,
			Seller:        a.Seller,
			SellerProfile: a.SellerProfile,
			Buyer:         a.Buyer,
			EndedAt:       a.Timestamp,
			Price:         a.Price,
			BIN:           a.BIN,
			ItemBytes:     a.ItemBytes,
			LastUpdated:   batch.LastUpdated,
		})
	}
	return rows
}
