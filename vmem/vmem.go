// Package vmem reserves and commits contiguous address ranges.
//
// A Region is reserved once and committed in page-granular prefixes, so the
// base address never moves while the usable size grows. The unix Provider maps
// the reservation PROT_NONE and flips committed pages to read/write; the Heap
// Provider backs the whole reservation with an ordinary Go allocation and is
// used on platforms without mmap.
package vmem

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

var (
	// ErrReservationExceeded is returned when a commit would pass the end of
	// the reserved range.
	ErrReservationExceeded = errors.New("vmem: commit exceeds reservation")
	// ErrInvalidSize is returned for non-positive reservation sizes.
	ErrInvalidSize = errors.New("vmem: invalid size")
	// ErrReleased is returned when a region is used after Release.
	ErrReleased = errors.New("vmem: region released")
)

// Provider is the operating system surface the virtual arena depends on.
type Provider interface {
	// Reserve sets aside size bytes of address space, rounded up to the page
	// granularity. Nothing is committed.
	Reserve(size int) (*Region, error)
	// Commit makes the first size bytes of r readable and writable. Committing
	// less than what is already committed is a no-op.
	Commit(r *Region, size int) error
	// Release returns the full reservation.
	Release(r *Region) error
	// PageGranularity is the unit reservations and commits are rounded to.
	PageGranularity() int
}

// Region is a reserved address range. Only the committed prefix may be touched.
type Region struct {
	mem       []byte
	committed int
}

// Base returns the first byte of the range.
func (r *Region) Base() unsafe.Pointer {
	if len(r.mem) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(r.mem))
}

// Bytes returns the committed prefix.
func (r *Region) Bytes() []byte { return r.mem[:r.committed] }

// Committed returns the number of committed bytes.
func (r *Region) Committed() int { return r.committed }

// Reserved returns the size of the reservation.
func (r *Region) Reserved() int { return len(r.mem) }

// RoundUp rounds n up to a multiple of the power-of-two granularity g.
func RoundUp(n, g int) int {
	return (n + g - 1) &^ (g - 1)
}

func checkCommit(r *Region, size int) (int, error) {
	if r.mem == nil {
		return 0, ErrReleased
	}
	if size > len(r.mem) {
		return 0, errors.Wrapf(ErrReservationExceeded, "commit %d of %d reserved bytes", size, len(r.mem))
	}
	return size, nil
}
