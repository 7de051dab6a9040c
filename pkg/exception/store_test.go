package exception

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yanun0323/errors"
)

func TestIsStoreUnavailable(t *testing.T) {
	testCases := []struct {
		desc string
		err  error
		want bool
	}{
		{desc: "nil", err: nil},
		{desc: "sentinel", err: ErrStoreUnavailable, want: true},
		{desc: "wrapped", err: errors.Wrap(ErrStoreUnavailable, "insert"), want: true},
		{desc: "wrapped twice", err: errors.Wrapf(errors.Wrap(ErrStoreUnavailable, "insert"), "[%s] record %d", "bazaar", 1), want: true},
		{desc: "fmt wrapped", err: fmt.Errorf("%w: %w", ErrStoreUnavailable, fmt.Errorf("database is locked")), want: true},
		{desc: "yanun wrapping fmt", err: errors.Wrap(fmt.Errorf("%w: locked", ErrStoreUnavailable), "migrate"), want: true},
		{desc: "other sentinel", err: errors.Wrap(ErrInvalidRecord, "bazaar"), want: false},
		{desc: "plain", err: fmt.Errorf("boom"), want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, IsStoreUnavailable(tc.err))
		})
	}
}
