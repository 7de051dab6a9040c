package ingest

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"marketfeed/internal/bus"
	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"
	"marketfeed/internal/obs"
	"marketfeed/pkg/exception"

	"github.com/hashicorp/go-multierror"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// DefaultPollInterval is the idle time between two rounds of drain passes.
const DefaultPollInterval = 100 * time.Millisecond

// Lifecycle is the connection lifecycle of the persistence sink. Both methods
// are invoked exactly once, in order, after the pipeline has drained.
type Lifecycle interface {
	Commit() error
	Close() error
}

// Stream binds a category to its producer and its write operation.
type Stream struct {
	Category enum.Category
	Producer Producer
	Write    WriteFunc
}

// Options tunes the pipeline.
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
	DeadLetter   DeadLetter
	Metrics      *obs.Metrics

	// Input is watched for QuitToken. Nil disables the operator monitor.
	Input     io.Reader
	QuitToken string
}

type stream struct {
	category enum.Category
	buffer   *bus.Buffer
	producer Producer
	drainer  *Drainer
	metrics  *obs.Metrics

	task     *task
	reported bool
}

func (s *stream) Append(rec model.Record) {
	s.buffer.Append(rec)
	s.metrics.IncFetched(s.category)
}

// Pipeline schedules producers and repeated drain passes, and exits only once
// shutdown was requested, every producer returned and every buffer is empty.
type Pipeline struct {
	streams  []*stream
	sink     Lifecycle
	shutdown *Shutdown
	opt      Options

	started    atomic.Bool
	finishOnce sync.Once
}

// NewPipeline validates the streams and allocates one buffer per category.
func NewPipeline(streams []Stream, sink Lifecycle, shutdown *Shutdown, opt Options) (*Pipeline, error) {
	if len(streams) == 0 {
		return nil, exception.ErrPipelineNoStreams
	}
	if sink == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "sink")
	}
	if shutdown == nil {
		shutdown = NewShutdown()
	}
	if opt.PollInterval <= 0 {
		opt.PollInterval = DefaultPollInterval
	}
	if opt.QuitToken == "" {
		opt.QuitToken = DefaultQuitToken
	}

	seen := make(map[enum.Category]bool, len(streams))
	out := make([]*stream, 0, len(streams))
	for _, s := range streams {
		if !s.Category.IsAvailable() || s.Producer == nil || s.Write == nil {
			return nil, errors.Wrapf(exception.ErrPipelineInvalidStream, "category: %s", s.Category)
		}
		if seen[s.Category] {
			return nil, errors.Wrapf(exception.ErrPipelineInvalidStream, "duplicate category: %s", s.Category)
		}
		seen[s.Category] = true

		buf := bus.NewBuffer(s.Category)
		out = append(out, &stream{
			category: s.Category,
			buffer:   buf,
			producer: s.Producer,
			metrics:  opt.Metrics,
			drainer: NewDrainer(buf, s.Write, DrainOptions{
				MaxAttempts: opt.MaxAttempts,
				DeadLetter:  opt.DeadLetter,
				Metrics:     opt.Metrics,
			}),
		})
	}

	return &Pipeline{
		streams:  out,
		sink:     sink,
		shutdown: shutdown,
		opt:      opt,
	}, nil
}

// Shutdown returns the shutdown state the pipeline polls.
func (p *Pipeline) Shutdown() *Shutdown {
	return p.shutdown
}

// Buffer returns the buffer of a category, or nil.
func (p *Pipeline) Buffer(c enum.Category) *bus.Buffer {
	for _, s := range p.streams {
		if s.category == c {
			return s.buffer
		}
	}
	return nil
}

// Run starts the producers and the shutdown monitor, then drains until the
// terminal condition holds. Cancelling ctx requests a graceful shutdown; it
// does not abandon buffered records. The returned error is the failure to
// commit or close the sink, if any.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return exception.ErrPipelineAlreadyStarted
	}

	// writes must outlive the caller's cancellation, buffered records are
	// still flushed after shutdown was requested
	drainCtx := context.WithoutCancel(ctx)
	producerCtx, cancelProducers := context.WithCancel(drainCtx)
	defer cancelProducers()

	for _, s := range p.streams {
		s.task = startTask(producerCtx, s.producer, s)
	}

	if p.opt.Input != nil {
		go WatchInput(p.opt.Input, p.opt.QuitToken, p.shutdown)
	}

	go func() {
		select {
		case <-ctx.Done():
			if p.shutdown.Request() {
				logs.Infof("shutdown requested, reason: %v", context.Cause(ctx))
			}
		case <-p.shutdown.Done():
		}
		cancelProducers()
	}()

	ticker := time.NewTicker(p.opt.PollInterval)
	defer ticker.Stop()

	for p.running() {
		for _, s := range p.streams {
			s.drainer.Pass(drainCtx)
		}
		<-ticker.C
	}

	return p.finish()
}

// running evaluates the loop condition. Producers are checked before buffers:
// once a producer is seen done, every record it appended is already visible to
// the buffer check.
func (p *Pipeline) running() bool {
	if !p.shutdown.Requested() {
		p.reportProducers()
		return true
	}

	alive := false
	for _, s := range p.streams {
		if !s.task.Done() {
			alive = true
		}
	}
	p.reportProducers()
	if alive {
		return true
	}

	for _, s := range p.streams {
		if !s.buffer.Empty() {
			return true
		}
	}
	return false
}

// reportProducers logs each producer's exit once. A producer that failed
// counts as completed.
func (p *Pipeline) reportProducers() {
	for _, s := range p.streams {
		if s.reported || !s.task.Done() {
			continue
		}
		s.reported = true
		if err := s.task.Err(); err != nil {
			logs.Errorf("[%s] producer stopped, err: %+v", s.category, err)
			continue
		}
		logs.Infof("[%s] producer stopped", s.category)
	}
}

func (p *Pipeline) finish() error {
	var result *multierror.Error
	p.finishOnce.Do(func() {
		logs.Info("saving database")
		if err := p.sink.Commit(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "commit store"))
		}
		if err := p.sink.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "close store"))
		}
		if result == nil {
			logs.Info("done")
		}
	})
	return result.ErrorOrNil()
}
