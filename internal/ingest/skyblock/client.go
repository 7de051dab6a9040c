// Package skyblock polls the Hypixel Skyblock API for bazaar snapshots and
// ended auctions.
package skyblock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"marketfeed/internal/model"
	"marketfeed/pkg/exception"

	"github.com/avast/retry-go"
	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

const (
	DefaultBaseURL = "https://api.hypixel.net/v2"

	_pathBazaar        = "/skyblock/bazaar"
	_pathEndedAuctions = "/skyblock/auctions_ended"

	_defaultTimeout    = 10 * time.Second
	_defaultRetries    = 3
	_defaultRetryDelay = 500 * time.Millisecond
	_maxErrorBody      = 512
)

// ClientOption configures a Client.
type ClientOption struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Retries    uint
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client fetches raw feed documents.
type Client struct {
	baseURL    string
	apiKey     string
	retries    uint
	retryDelay time.Duration
	http       *http.Client
}

func NewClient(opt ClientOption) *Client {
	baseURL := strings.TrimRight(opt.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	retries := opt.Retries
	if retries == 0 {
		retries = _defaultRetries
	}

	retryDelay := opt.RetryDelay
	if retryDelay <= 0 {
		retryDelay = _defaultRetryDelay
	}

	httpClient := opt.HTTPClient
	if httpClient == nil {
		timeout := opt.Timeout
		if timeout <= 0 {
			timeout = _defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opt.APIKey,
		retries:    retries,
		retryDelay: retryDelay,
		http:       httpClient,
	}
}

type envelope struct {
	Success     bool   `json:"success"`
	Cause       string `json:"cause"`
	LastUpdated int64  `json:"lastUpdated"`
}

type bazaarResponse struct {
	envelope
	Products map[string]struct {
		ProductID   string `json:"product_id"`
		QuickStatus struct {
			ProductID      string          `json:"productId"`
			SellPrice      float64 `json:"sellPrice"`
			SellVolume     int64   `json:"sellVolume"`
			SellMovingWeek int64   `json:"sellMovingWeek"`
			SellOrders     int64   `json:"sellOrders"`
			BuyPrice       float64 `json:"buyPrice"`
			BuyVolume      int64   `json:"buyVolume"`
			BuyMovingWeek  int64   `json:"buyMovingWeek"`
			BuyOrders      int64   `json:"buyOrders"`
		} `json:"quick_status"`
	} `json:"products"`
}

type endedAuctionsResponse struct {
	envelope
	Auctions []struct {
		AuctionID     string `json:"auction_id"`
		Seller        string `json:"seller"`
		SellerProfile string `json:"seller_profile"`
		Buyer         string `json:"buyer"`
		Timestamp     int64  `json:"timestamp"`
		Price         int64  `json:"price"`
		BIN           bool   `json:"bin"`
		ItemBytes     string `json:"item_bytes"`
	} `json:"auctions"`
}

// Bazaar fetches the current bazaar snapshot.
func (c *Client) Bazaar(ctx context.Context) (model.BazaarSnapshot, error) {
	var resp bazaarResponse
	if err := c.get(ctx, _pathBazaar, &resp); err != nil {
		return model.BazaarSnapshot{}, errors.Wrap(err, "get bazaar")
	}
	if err := resp.check(); err != nil {
		return model.BazaarSnapshot{}, errors.Wrap(err, "get bazaar")
	}

	snapshot := model.BazaarSnapshot{
		LastUpdated: resp.LastUpdated,
		Products:    make([]model.BazaarProduct, 0, len(resp.Products)),
	}
	for key, p := range resp.Products {
		id := p.QuickStatus.ProductID
		if id == "" {
			id = p.ProductID
		}
		if id == "" {
			id = key
		}
		q := p.QuickStatus
		snapshot.Products = append(snapshot.Products, model.BazaarProduct{
			ProductID:      id,
			BuyPrice:       decimal.NewFromFloat(q.BuyPrice),
			BuyVolume:      q.BuyVolume,
			BuyMovingWeek:  q.BuyMovingWeek,
			BuyOrders:      q.BuyOrders,
			SellPrice:      decimal.NewFromFloat(q.SellPrice),
			SellVolume:     q.SellVolume,
			SellMovingWeek: q.SellMovingWeek,
			SellOrders:     q.SellOrders,
		})
	}
	return snapshot, nil
}

// EndedAuctions fetches the auctions that ended in the last published window.
func (c *Client) EndedAuctions(ctx context.Context) (model.AuctionBatch, error) {
	var resp endedAuctionsResponse
	if err := c.get(ctx, _pathEndedAuctions, &resp); err != nil {
		return model.AuctionBatch{}, errors.Wrap(err, "get ended auctions")
	}
	if err := resp.check(); err != nil {
		return model.AuctionBatch{}, errors.Wrap(err, "get ended auctions")
	}

	batch := model.AuctionBatch{
		LastUpdated: resp.LastUpdated,
		Auctions:    make([]model.EndedAuction, 0, len(resp.Auctions)),
	}
	for _, a := range resp.Auctions {
		batch.Auctions = append(batch.Auctions, model.EndedAuction{
			AuctionID:     a.AuctionID,
			Seller:        a.Seller,
			SellerProfile: a.SellerProfile,
			Buyer:         a.Buyer,
			Timestamp:     a.Timestamp,
			Price:         a.Price,
			BIN:           a.BIN,
			ItemBytes:     a.ItemBytes,
		})
	}
	return batch, nil
}

func (e envelope) check() error {
	if !e.Success {
		return errors.Wrapf(exception.ErrFeedRejected, "cause: %s", e.Cause)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	return retry.Do(
		func() error {
			return c.getOnce(ctx, path, dst)
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
}

func (c *Client) getOnce(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(exception.ErrFeedUnauthorized, "status: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, _maxErrorBody))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if err := sonic.Unmarshal(body, dst); err != nil {
		return errors.Wrap(exception.ErrFeedDecode, err.Error())
	}
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("feed: status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	return exception.ErrFeedStatus
}

// retryable reports whether a failed request may succeed when repeated.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, exception.ErrFeedUnauthorized) ||
		errors.Is(err, exception.ErrFeedDecode) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	return true
}
