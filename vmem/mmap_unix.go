//go:build unix

package vmem

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// Mmap reserves anonymous private mappings with PROT_NONE and commits by
// mprotecting the prefix to read/write.
type Mmap struct{}

var _ Provider = Mmap{}

// Default returns the native provider for the platform.
func Default() Provider { return Mmap{} }

func (Mmap) PageGranularity() int { return unix.Getpagesize() }

func (m Mmap) Reserve(size int) (*Region, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "reserve %d bytes", size)
	}
	size = RoundUp(size, m.PageGranularity())
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap reserve %d bytes", size)
	}
	return &Region{mem: mem}, nil
}

func (m Mmap) Commit(r *Region, size int) error {
	size, err := checkCommit(r, size)
	if err != nil {
		return err
	}
	size = RoundUp(size, m.PageGranularity())
	if size > len(r.mem) {
		size = len(r.mem)
	}
	if size <= r.committed {
		return nil
	}
	if err := unix.Mprotect(r.mem[r.committed:size], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return errors.Wrapf(err, "mprotect [%d, %d)", r.committed, size)
	}
	r.committed = size
	return nil
}

func (Mmap) Release(r *Region) error {
	if r.mem == nil {
		return ErrReleased
	}
	if err := unix.Munmap(r.mem); err != nil {
		return errors.Wrap(err, "munmap")
	}
	r.mem, r.committed = nil, 0
	return nil
}
