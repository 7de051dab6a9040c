package ingest

import (
	"context"
	"sync"

	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"

	"github.com/yanun0323/errors"
)

var errRejected = errors.New("rejected by sink")

func record(c enum.Category, ts int64) model.Record {
	return model.Record{Category: c, Timestamp: ts}
}

// memSink persists records in memory and records lifecycle calls.
type memSink struct {
	mu       sync.Mutex
	written  map[enum.Category][]int64
	calls    []string
	fail     func(rec model.Record) error
	closeErr error
}

func newMemSink() *memSink {
	return &memSink{written: make(map[enum.Category][]int64)}
}

func (s *memSink) Write(_ context.Context, rec model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		if err := s.fail(rec); err != nil {
			return err
		}
	}
	s.written[rec.Category] = append(s.written[rec.Category], rec.Timestamp)
	return nil
}

func (s *memSink) Written(c enum.Category) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.written[c]...)
}

func (s *memSink) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "commit")
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "close")
	return s.closeErr
}

func (s *memSink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// memDeadLetter collects dead-lettered records.
type memDeadLetter struct {
	mu      sync.Mutex
	letters []model.Record
	err     error
}

func (d *memDeadLetter) Put(rec model.Record, _ int, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.letters = append(d.letters, rec)
	return nil
}

func (d *memDeadLetter) Timestamps() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int64, 0, len(d.letters))
	for _, rec := range d.letters {
		out = append(out, rec.Timestamp)
	}
	return out
}
