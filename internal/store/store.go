// Package store persists market records through gorm. Every write is committed
// on its own, so a record reported as written is durable.
package store

import (
	"context"
	"sync"
	"sync/atomic"

	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"
	"marketfeed/pkg/conn"
	"marketfeed/pkg/exception"

	"github.com/hashicorp/go-multierror"
	"github.com/yanun0323/errors"
	"gorm.io/gorm/clause"
)

const defaultBatchSize = 500

// Companion is a resource whose lifecycle follows the store, such as the
// dead-letter set.
type Companion interface {
	Sync() error
	Close() error
}

// Options tunes the store.
type Options struct {
	BatchSize  int
	Companions []Companion
}

// Store writes bazaar snapshots and ended auctions.
type Store struct {
	client     *conn.Client
	batchSize  int
	companions []Companion

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New wraps an open client.
func New(client *conn.Client, opt Options) (*Store, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "client")
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = defaultBatchSize
	}
	return &Store{
		client:     client,
		batchSize:  opt.BatchSize,
		companions: opt.Companions,
	}, nil
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.client.DB().WithContext(ctx).AutoMigrate(&BazaarQuote{}, &EndedAuction{}); err != nil {
		return errors.Wrap(Classify(err), "auto migrate")
	}
	return nil
}

// Write persists rec with the write operation of its category.
func (s *Store) Write(ctx context.Context, rec model.Record) error {
	switch rec.Category {
	case enum.CategoryBazaar:
		return s.WriteBazaar(ctx, rec)
	case enum.CategoryAuction:
		return s.WriteAuctions(ctx, rec)
	default:
		return errors.Wrapf(exception.ErrInvalidRecord, "category: %d", rec.Category)
	}
}

// WriteBazaar persists a bazaar snapshot record. Re-writing a snapshot that is
// already stored is a no-op.
func (s *Store) WriteBazaar(ctx context.Context, rec model.Record) error {
	snapshot, ok := rec.Payload.(model.BazaarSnapshot)
	if !ok {
		return errors.Wrapf(exception.ErrInvalidRecord, "bazaar payload type %T", rec.Payload)
	}
	rows := bazaarRows(snapshot)
	if len(rows) == 0 {
		return errors.Wrapf(exception.ErrInvalidRecord, "bazaar snapshot %d has no products", snapshot.LastUpdated)
	}
	return s.insert(ctx, &rows)
}

// WriteAuctions persists a batch of ended auctions. Auctions already stored are
// skipped.
func (s *Store) WriteAuctions(ctx context.Context, rec model.Record) error {
	batch, ok := rec.Payload.(model.AuctionBatch)
	if !ok {
		return errors.Wrapf(exception.ErrInvalidRecord, "auction payload type %T", rec.Payload)
	}
	rows := auctionRows(batch)
	if len(rows) == 0 {
		// an empty window is valid, nothing ended since the previous batch
		return nil
	}
	return s.insert(ctx, &rows)
}

func (s *Store) insert(ctx context.Context, rows any) error {
	if s.closed.Load() {
		return exception.ErrStoreClosed
	}
	err := s.client.DB().
		WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, s.batchSize).Error
	return Classify(err)
}

// Count returns the number of stored rows of a category.
func (s *Store) Count(ctx context.Context, c enum.Category) (int64, error) {
	var (
		n   int64
		err error
		db  = s.client.DB().WithContext(ctx)
	)
	switch c {
	case enum.CategoryBazaar:
		err = db.Model(&BazaarQuote{}).Count(&n).Error
	case enum.CategoryAuction:
		err = db.Model(&EndedAuction{}).Count(&n).Error
	default:
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "category: %d", c)
	}
	return n, Classify(err)
}

// Commit flushes companions that buffer their writes. Record writes are
// already committed when they return.
func (s *Store) Commit() error {
	if s.closed.Load() {
		return exception.ErrStoreClosed
	}
	var result *multierror.Error
	for _, c := range s.companions {
		if err := c.Sync(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Close closes the connection pool and every companion. Only the first call
// does the work; later calls return the same result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var result *multierror.Error
		if err := s.client.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "close database"))
		}
		for _, c := range s.companions {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		s.closeErr = result.ErrorOrNil()
	})
	return s.closeErr
}
