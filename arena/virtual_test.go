package arena

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pavanmanishd/memkit/vmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = 4096

func newVirtual(t testing.TB, reserve, initial int, opts ...Option) *VirtualArena {
	t.Helper()
	opts = append([]Option{WithProvider(vmem.Heap{Granularity: page})}, opts...)
	va, err := NewVirtual(reserve, initial, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = va.Destroy() })
	return va
}

func TestNewVirtual(t *testing.T) {
	va := newVirtual(t, 16*page, 100)
	h := va.Header()
	assert.Equal(t, uintptr(page), h.TotalSize)
	assert.Equal(t, uintptr(page-32), h.UserSize)
	assert.Equal(t, 16*page, va.Reserved())
	assert.Equal(t, page, va.PageGranularity())
	assert.Zero(t, uintptr(va.Base())%8)

	m := va.Metrics()
	assert.Equal(t, 16*page, m.Reserved)
	assert.Equal(t, page-32, m.Capacity)
}

func TestNewVirtualErrors(t *testing.T) {
	heap := WithProvider(vmem.Heap{Granularity: page})

	_, err := NewVirtual(page, 2*page, heap)
	assert.True(t, errors.Is(err, vmem.ErrReservationExceeded), "got %v", err)

	_, err = NewVirtual(4*page, 0, heap, WithAlignment(2*page))
	assert.True(t, errors.Is(err, ErrInvalidAlignment), "got %v", err)

	_, err = NewVirtual(0, 0, heap)
	assert.True(t, errors.Is(err, ErrOutOfMemory), "got %v", err)
}

func TestNewVirtualOverflowingSizes(t *testing.T) {
	for _, tc := range []struct {
		name             string
		reserve, initial int
	}{
		{"initial wraps with header", 1 << 16, math.MaxInt - 8},
		{"initial past reserve", 1 << 16, 1<<16 + 1},
		{"reserve wraps when rounded", math.MaxInt - 8, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			va, err := NewVirtual(tc.reserve, tc.initial, WithProvider(vmem.Heap{Granularity: page}))
			assert.Nil(t, va)
			assert.True(t, errors.Is(err, vmem.ErrReservationExceeded), "got %v", err)
		})
	}
}

// countingProvider records how often a reservation is handed back.
type countingProvider struct {
	vmem.Heap
	released *int
}

func (p countingProvider) Release(r *vmem.Region) error {
	*p.released++
	return p.Heap.Release(r)
}

func TestEmbeddedArenaDestroyReleasesReservation(t *testing.T) {
	var released int
	va, err := NewVirtual(4*page, 0, WithProvider(countingProvider{vmem.Heap{Granularity: page}, &released}))
	require.NoError(t, err)
	VirtualAllocate[byte](va, 2*page)

	va.Arena.Destroy()
	assert.Equal(t, 1, released)
	assert.Nil(t, va.Header())
	assert.Zero(t, va.Metrics().Reserved)

	require.NoError(t, va.Destroy(), "second destroy is a no-op")
	assert.Equal(t, 1, released)
}

func TestMovedVirtualArenaKeepsReservation(t *testing.T) {
	var released int
	va, err := NewVirtual(4*page, 0, WithProvider(countingProvider{vmem.Heap{Granularity: page}, &released}))
	require.NoError(t, err)

	moved := va.Move()
	require.NoError(t, va.Destroy())
	assert.Zero(t, released)

	moved.Arena.Move().Destroy()
	assert.Equal(t, 1, released, "the reservation follows the Arena through Move")
}

func TestVirtualGrow(t *testing.T) {
	va := newVirtual(t, 4*page, 0)
	base := va.Base()

	assert.Equal(t, page, va.Grow(1))
	assert.Equal(t, base, va.Base(), "growth must not move the base")
	assert.Equal(t, 2*page-32, va.Size())

	assert.Zero(t, va.Grow(3*page), "growth past the reservation must report zero")
	assert.Equal(t, 2*page-32, va.Size())
	assert.Equal(t, 2*page, va.Grow(2*page))
	assert.Zero(t, va.Grow(1))
	assert.Zero(t, va.Grow(0))
}

func TestVirtualAllocateGrows(t *testing.T) {
	va := newVirtual(t, 16*page, 0)

	first := VirtualAllocate[byte](va, 100)
	require.NotNil(t, first)
	copy(first, "header")

	big := VirtualAllocate[byte](va, 5000)
	require.NotNil(t, big)
	assert.Equal(t, 2*page-32, va.Size(), "growth doubles the committed size")
	assert.Equal(t, "header", string(first[:6]), "earlier allocations survive growth")
	assert.Equal(t, addr(first)+100, addr(big))
}

func TestVirtualAllocateFallsBackToExactGrowth(t *testing.T) {
	va := newVirtual(t, 3*page, 0)
	require.NotNil(t, VirtualAllocate[byte](va, 6000))
	assert.Equal(t, 2*page-32, va.Size())

	// doubling would pass the reservation; the exact shortfall still fits
	require.NotNil(t, VirtualAllocate[byte](va, 3000))
	assert.Equal(t, 3*page-32, va.Size())
}

func TestVirtualAllocateFailsPastReservation(t *testing.T) {
	va := newVirtual(t, 16*page, 0)
	assert.Nil(t, VirtualAllocate[byte](va, 16*page))
	assert.Zero(t, va.Offset())
	assert.Equal(t, page-32, va.Size())
}

func TestVirtualMultiTypeAllocate(t *testing.T) {
	va := newVirtual(t, 8*page, 0)
	VirtualMultiTypeAllocate[byte](va, page-40)
	s := VirtualMultiTypeAllocate[int64](va, 4)
	require.NotNil(t, s)
	assert.Zero(t, addr(s)%8)
	assert.Equal(t, 2*page-32, va.Size())
}

func TestVirtualDestroyAndMove(t *testing.T) {
	va := newVirtual(t, 4*page, 0)
	VirtualAllocate[int32](va, 3)

	moved := va.Move()
	assert.Nil(t, va.Header())
	assert.NoError(t, va.Destroy(), "destroying a moved-from husk is a no-op")
	assert.Equal(t, 12, moved.Offset())

	require.NoError(t, moved.Destroy())
	assert.Nil(t, moved.Header())
	assert.Zero(t, moved.Metrics().Reserved)
}

func TestVirtualDefaultProvider(t *testing.T) {
	va, err := NewVirtual(1<<20, 1024)
	require.NoError(t, err)
	defer va.Destroy()

	s := VirtualAllocate[uint64](va, 64<<10)
	require.NotNil(t, s)
	s[0], s[len(s)-1] = 1, 2
	assert.Greater(t, va.Size(), 512<<10)
}
