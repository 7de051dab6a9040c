// Package deadletter keeps records that repeatedly failed to persist for
// non-transient reasons, so they are neither retried forever nor lost.
package deadletter

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"
	"marketfeed/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"
	"github.com/yanun0323/errors"
)

const dirMode = 0o755

// Options selects where the dead-letter set lives. An empty Dir keeps it in
// memory, which only makes sense for tests and drills.
type Options struct {
	Dir string
}

// Letter is one dead-lettered record.
type Letter struct {
	Key       string          `json:"-"`
	Category  enum.Category   `json:"category"`
	Timestamp int64           `json:"timestamp"`
	Attempts  int             `json:"attempts"`
	Reason    string          `json:"reason"`
	FailedAt  int64           `json:"failedAt"`
	Payload   json.RawMessage `json:"payload"`
}

// Record rebuilds the original record from the letter.
func (l Letter) Record() (model.Record, error) {
	payload, err := model.DecodePayload(l.Category, l.Payload)
	if err != nil {
		return model.Record{}, err
	}
	return model.Record{
		Category:  l.Category,
		Timestamp: l.Timestamp,
		Payload:   payload,
	}, nil
}

// Store is a badger backed dead-letter set.
type Store struct {
	db       *badger.DB
	inMemory bool
	seq      atomic.Uint64
	closed   atomic.Bool
}

// Open opens (or creates) the dead-letter set.
func Open(opt Options) (*Store, error) {
	var opts badger.Options
	if opt.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opt.Dir, dirMode); err != nil {
			return nil, errors.Wrap(err, "create dead letter dir")
		}
		opts = badger.DefaultOptions(opt.Dir)
	}
	opts = opts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}

	s := &Store{db: db, inMemory: opt.Dir == ""}
	s.seq.Store(uint64(time.Now().UnixNano()))
	return s, nil
}

func prefix(c enum.Category) []byte {
	return []byte(c.String() + "/")
}

func (s *Store) key(rec model.Record) []byte {
	return fmt.Appendf(nil, "%s/%020d/%020d", rec.Category.String(), rec.Timestamp, s.seq.Add(1))
}

// Put stores rec together with the number of failed attempts and the last cause.
func (s *Store) Put(rec model.Record, attempts int, cause error) error {
	if s == nil || s.closed.Load() {
		return exception.ErrStoreClosed
	}

	payload, err := sonic.Marshal(rec.Payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	letter := Letter{
		Category:  rec.Category,
		Timestamp: rec.Timestamp,
		Attempts:  attempts,
		FailedAt:  time.Now().UnixMilli(),
		Payload:   payload,
	}
	if cause != nil {
		letter.Reason = cause.Error()
	}

	data, err := sonic.Marshal(letter)
	if err != nil {
		return errors.Wrap(err, "marshal letter")
	}

	key := s.key(rec)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// List returns every letter of the category, oldest record first.
func (s *Store) List(c enum.Category) ([]Letter, error) {
	if s == nil || s.closed.Load() {
		return nil, exception.ErrStoreClosed
	}

	var out []Letter
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := prefix(c)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()

			var letter Letter
			if err := item.Value(func(v []byte) error {
				return sonic.Unmarshal(v, &letter)
			}); err != nil {
				return errors.Wrapf(err, "unmarshal letter %s", item.Key())
			}
			letter.Key = string(item.KeyCopy(nil))
			out = append(out, letter)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of letters of the category.
func (s *Store) Count(c enum.Category) (int, error) {
	if s == nil || s.closed.Load() {
		return 0, exception.ErrStoreClosed
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := prefix(c)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Delete removes a letter, typically after a successful replay.
func (s *Store) Delete(key string) error {
	if s == nil || s.closed.Load() {
		return exception.ErrStoreClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(exception.ErrDeadLetterNotFound, "key: %s", key)
			}
			return err
		}
		return txn.Delete([]byte(key))
	})
}

// Sync flushes pending writes to disk.
func (s *Store) Sync() error {
	if s == nil || s.inMemory || s.closed.Load() {
		return nil
	}
	return s.db.Sync()
}

// Close closes the underlying database. Calling it more than once is a no-op.
func (s *Store) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
