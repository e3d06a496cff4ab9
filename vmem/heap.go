package vmem

import (
	"os"

	"github.com/cockroachdb/errors"
)

// Heap backs reservations with a single Go allocation. Commit only moves the
// committed mark; the memory is resident from the start.
type Heap struct {
	// Granularity overrides the page size when non-zero. Must be a power of two.
	Granularity int
}

var _ Provider = Heap{}

func (h Heap) PageGranularity() int {
	if h.Granularity > 0 {
		return h.Granularity
	}
	return os.Getpagesize()
}

func (h Heap) Reserve(size int) (*Region, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "reserve %d bytes", size)
	}
	size = RoundUp(size, h.PageGranularity())
	return &Region{mem: make([]byte, size)}, nil
}

func (h Heap) Commit(r *Region, size int) error {
	size, err := checkCommit(r, size)
	if err != nil {
		return err
	}
	if size > r.committed {
		r.committed = size
	}
	return nil
}

func (h Heap) Release(r *Region) error {
	if r.mem == nil {
		return ErrReleased
	}
	r.mem, r.committed = nil, 0
	return nil
}
