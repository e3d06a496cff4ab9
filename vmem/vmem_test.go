package vmem

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providers() map[string]Provider {
	return map[string]Provider{
		"heap":    Heap{Granularity: 4096},
		"default": Default(),
	}
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		n, g, want int
	}{
		{0, 4096, 0},
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{4097, 4096, 8192},
		{33, 16, 48},
	}
	for _, tt := range tests {
		if got := RoundUp(tt.n, tt.g); got != tt.want {
			t.Errorf("RoundUp(%d, %d) = %d, want %d", tt.n, tt.g, got, tt.want)
		}
	}
}

func TestReserveCommitRelease(t *testing.T) {
	for name, p := range providers() {
		t.Run(name, func(t *testing.T) {
			g := p.PageGranularity()
			r, err := p.Reserve(4*g - 1)
			require.NoError(t, err)
			assert.Equal(t, 4*g, r.Reserved())
			assert.Zero(t, r.Committed())

			base := r.Base()
			require.NoError(t, p.Commit(r, g+1))
			assert.GreaterOrEqual(t, r.Committed(), g+1)
			b := r.Bytes()
			b[0], b[len(b)-1] = 1, 2

			require.NoError(t, p.Commit(r, 3*g))
			assert.Equal(t, base, r.Base(), "commit must not move the base")
			assert.Equal(t, byte(1), r.Bytes()[0])

			// shrinking commits are no-ops
			require.NoError(t, p.Commit(r, g))
			assert.Equal(t, 3*g, r.Committed())

			err = p.Commit(r, 4*g+1)
			assert.True(t, errors.Is(err, ErrReservationExceeded), "got %v", err)

			require.NoError(t, p.Release(r))
			assert.True(t, errors.Is(p.Release(r), ErrReleased))
			assert.True(t, errors.Is(p.Commit(r, g), ErrReleased))
		})
	}
}

func TestReserveInvalidSize(t *testing.T) {
	for name, p := range providers() {
		t.Run(name, func(t *testing.T) {
			for _, size := range []int{0, -1} {
				_, err := p.Reserve(size)
				assert.True(t, errors.Is(err, ErrInvalidSize), "Reserve(%d) = %v", size, err)
			}
		})
	}
}
