// Package chaos injects store faults into record writes for drills and tests.
package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"marketfeed/internal/model"
	"marketfeed/pkg/exception"

	"github.com/yanun0323/errors"
)

// WriteFunc matches the write operation of a pipeline stream.
type WriteFunc = func(ctx context.Context, rec model.Record) error

// ErrInjected is the cause attached to every injected rejection.
var ErrInjected = errors.New("chaos: injected rejection")

// Config controls fault injection behavior.
type Config struct {
	Seed            int64
	UnavailableRate float64
	RejectRate      float64
	MaxDelay        time.Duration
}

// Enabled reports whether the config injects anything at all.
func (c Config) Enabled() bool {
	return c.UnavailableRate > 0 || c.RejectRate > 0 || c.MaxDelay > 0
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.UnavailableRate < 0 || c.UnavailableRate > 1 {
		return fmt.Errorf("unavailableRate must be between 0 and 1")
	}
	if c.RejectRate < 0 || c.RejectRate > 1 {
		return fmt.Errorf("rejectRate must be between 0 and 1")
	}
	if c.UnavailableRate+c.RejectRate > 1 {
		return fmt.Errorf("unavailableRate + rejectRate must be <= 1")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("maxDelay must be >= 0")
	}
	return nil
}

// Engine decides, per write, whether to fail it and how.
type Engine struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Wrap returns a write that fails with exception.ErrStoreUnavailable or
// ErrInjected at the configured rates and otherwise calls write. A nil engine
// returns write unchanged.
func (e *Engine) Wrap(write WriteFunc) WriteFunc {
	if e == nil {
		return write
	}
	return func(ctx context.Context, rec model.Record) error {
		delay, err := e.roll()
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err != nil {
			return errors.Wrapf(err, "[%s] record %d", rec.Category, rec.Timestamp)
		}
		return write(ctx, rec)
	}
}

func (e *Engine) roll() (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var delay time.Duration
	if max := e.cfg.MaxDelay.Nanoseconds(); max > 0 {
		delay = time.Duration(e.rng.Int63n(max + 1))
	}

	p := e.rng.Float64()
	switch {
	case p < e.cfg.UnavailableRate:
		return delay, exception.ErrStoreUnavailable
	case p < e.cfg.UnavailableRate+e.cfg.RejectRate:
		return delay, ErrInjected
	default:
		return delay, nil
	}
}
