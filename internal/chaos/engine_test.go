package chaos

import (
	"context"
	"testing"

	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"
	"marketfeed/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc  string
		cfg   Config
		valid bool
	}{
		{desc: "zero", cfg: Config{}, valid: true},
		{desc: "rates", cfg: Config{UnavailableRate: 0.3, RejectRate: 0.2}, valid: true},
		{desc: "negative rate", cfg: Config{UnavailableRate: -0.1}},
		{desc: "rate above one", cfg: Config{RejectRate: 1.5}},
		{desc: "sum above one", cfg: Config{UnavailableRate: 0.6, RejectRate: 0.6}},
		{desc: "negative delay", cfg: Config{MaxDelay: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestWrapInjectsAtRates(t *testing.T) {
	e, err := NewEngine(Config{Seed: 42, UnavailableRate: 0.25, RejectRate: 0.25})
	require.NoError(t, err)

	var calls int
	write := e.Wrap(func(context.Context, model.Record) error {
		calls++
		return nil
	})

	var unavailable, rejected int
	rec := model.Record{Category: enum.CategoryBazaar, Timestamp: 1}
	for i := 0; i < 2_000; i++ {
		err := write(context.Background(), rec)
		switch {
		case err == nil:
		case exception.IsStoreUnavailable(err):
			unavailable++
		case errors.Is(err, ErrInjected):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 2_000, calls+unavailable+rejected)
	assert.InDelta(t, 500, unavailable, 100)
	assert.InDelta(t, 500, rejected, 100)
}

func TestWrapIsDeterministicForSeed(t *testing.T) {
	outcomes := func() []bool {
		e, err := NewEngine(Config{Seed: 7, UnavailableRate: 0.5})
		require.NoError(t, err)
		write := e.Wrap(func(context.Context, model.Record) error { return nil })
		out := make([]bool, 50)
		for i := range out {
			out[i] = write(context.Background(), model.Record{}) == nil
		}
		return out
	}
	assert.Equal(t, outcomes(), outcomes())
}

func TestNilEngine(t *testing.T) {
	var e *Engine
	sentinel := errors.New("inner")
	write := e.Wrap(func(context.Context, model.Record) error { return sentinel })
	assert.ErrorIs(t, write(context.Background(), model.Record{}), sentinel)
}
