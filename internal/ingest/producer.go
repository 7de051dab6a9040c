package ingest

import (
	"context"

	"marketfeed/internal/model"

	"github.com/yanun0323/pkg/atomics"
)

// Appender receives records fetched by a producer.
type Appender interface {
	Append(rec model.Record)
}

// Producer repeatedly fetches new records and appends them. Run returns only
// when ctx is cancelled or the feed failed unrecoverably.
type Producer interface {
	Run(ctx context.Context, out Appender) error
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context, out Appender) error

func (f ProducerFunc) Run(ctx context.Context, out Appender) error {
	return f(ctx, out)
}

// task is the completion handle of a running producer.
type task struct {
	done chan struct{}
	err  atomics.Value[error]
}

func startTask(ctx context.Context, p Producer, out Appender) *task {
	t := &task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		if err := p.Run(ctx, out); err != nil {
			t.err.Store(err)
		}
	}()
	return t
}

// Done reports without blocking whether the producer has returned.
func (t *task) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the error the producer returned with, if any.
func (t *task) Err() error {
	return t.err.Load()
}
