package ingest

import (
	"context"
	"time"

	"marketfeed/internal/bus"
	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"
	"marketfeed/internal/obs"
	"marketfeed/pkg/exception"

	"github.com/yanun0323/logs"
)

// DefaultMaxAttempts bounds how many drain passes may fail on the same record
// with a non-transient error before it is dead-lettered.
const DefaultMaxAttempts = 3

// WriteFunc persists one record of a category. Errors matching
// exception.ErrStoreUnavailable are treated as transient.
type WriteFunc func(ctx context.Context, rec model.Record) error

// DeadLetter retains records that keep failing for non-transient reasons.
type DeadLetter interface {
	Put(rec model.Record, attempts int, cause error) error
}

// DrainOptions tunes a Drainer. The zero value retries rejected records every
// pass without dead-lettering them.
type DrainOptions struct {
	MaxAttempts int
	DeadLetter  DeadLetter
	Metrics     *obs.Metrics
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Persisted    int
	DeadLettered int
	Remaining    int
	Aborted      bool
	Err          error
}

// Drainer flushes one buffer into its category's write operation. A Drainer
// must only be driven from one goroutine.
type Drainer struct {
	buffer      *bus.Buffer
	write       WriteFunc
	deadLetter  DeadLetter
	maxAttempts int
	metrics     *obs.Metrics

	// failed attempts per buffered entry, keyed by buffer sequence
	attempts map[uint64]int
}

// NewDrainer creates a drainer for buf.
func NewDrainer(buf *bus.Buffer, write WriteFunc, opt DrainOptions) *Drainer {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = DefaultMaxAttempts
	}
	return &Drainer{
		buffer:      buf,
		write:       write,
		deadLetter:  opt.DeadLetter,
		maxAttempts: opt.MaxAttempts,
		metrics:     opt.Metrics,
		attempts:    make(map[uint64]int),
	}
}

func (d *Drainer) category() enum.Category {
	return d.buffer.Category()
}

// Pass writes buffered records newest first until the buffer is empty or a
// write fails. A failed record is never removed unless it was dead-lettered.
func (d *Drainer) Pass(ctx context.Context) DrainResult {
	var (
		res   DrainResult
		cat   = d.category()
		start = time.Now()
	)

	for {
		entry, ok := d.buffer.PeekNewest()
		if !ok {
			break
		}

		err := d.write(ctx, entry.Record)
		if err == nil {
			d.buffer.RemoveNewest(entry)
			delete(d.attempts, entry.Seq)
			res.Persisted++
			d.metrics.IncPersisted(cat)
			logs.Infof("[%s] saved record %d", cat, entry.Record.Timestamp)
			continue
		}

		res.Err = err
		if exception.IsStoreUnavailable(err) {
			d.metrics.IncWriteError(cat, obs.WriteErrorUnavailable)
			logs.Warnf("[%s] store unavailable, retry next pass, err: %+v", cat, err)
			res.Aborted = true
			break
		}

		d.metrics.IncWriteError(cat, obs.WriteErrorRejected)
		if d.reject(entry, err) {
			res.DeadLettered++
			continue
		}
		res.Aborted = true
		break
	}

	res.Remaining = d.buffer.Len()
	if res.Remaining > 1 {
		logs.Infof("[%s] %d records are waiting in queue", cat, res.Remaining)
	}
	d.metrics.SetBacklog(cat, res.Remaining)
	d.metrics.ObserveDrainPass(cat, time.Since(start))
	return res
}

// reject accounts a non-transient failure of entry. It reports true when the
// record was moved to the dead-letter set and removed from the buffer.
func (d *Drainer) reject(entry bus.Entry, cause error) bool {
	cat := d.category()
	n := d.attempts[entry.Seq] + 1
	d.attempts[entry.Seq] = n

	logs.Errorf("[%s] failed to persist record %d (attempt %d/%d), err: %+v",
		cat, entry.Record.Timestamp, n, d.maxAttempts, cause)

	if d.deadLetter == nil || n < d.maxAttempts {
		return false
	}

	if err := d.deadLetter.Put(entry.Record, n, cause); err != nil {
		d.metrics.IncWriteError(cat, obs.WriteErrorDeadLetter)
		logs.Errorf("[%s] dead-letter record %d, err: %+v", cat, entry.Record.Timestamp, err)
		return false
	}

	d.buffer.RemoveNewest(entry)
	delete(d.attempts, entry.Seq)
	d.metrics.IncDeadLettered(cat)
	logs.Warnf("[%s] record %d moved to dead letters after %d attempts", cat, entry.Record.Timestamp, n)
	return true
}
