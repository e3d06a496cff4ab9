package arena

import (
	"log/slog"
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/pavanmanishd/memkit/vmem"
)

// VirtualArena is an arena carved from a reserved address range. Growing
// commits more of the reservation in place, so the base never moves and
// previously returned memory stays valid. The reservation belongs to the
// embedded Arena: destroying either one returns it to the provider.
type VirtualArena struct {
	Arena

	reserved    uintptr
	granularity uintptr
}

// NewVirtual reserves reserve bytes and commits enough pages for initial
// usable bytes plus the header. The requested alignment may not exceed the page
// granularity.
func NewVirtual(reserve, initial int, opts ...Option) (*VirtualArena, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	p := cfg.provider
	if p == nil {
		p = vmem.Default()
	}
	g := p.PageGranularity()
	if cfg.alignment > uintptr(g) {
		return nil, errors.Wrapf(ErrInvalidAlignment, "alignment %d exceeds page granularity %d", cfg.alignment, g)
	}
	if initial < 0 || reserve <= 0 {
		return nil, errors.Wrapf(ErrOutOfMemory, "reserve %d, initial %d", reserve, initial)
	}
	prefix, align := layout(cfg.alignment)
	if initial > reserve || uintptr(reserve) > math.MaxInt-prefix-uintptr(g) {
		return nil, errors.Wrapf(vmem.ErrReservationExceeded, "initial %d, reserve %d", initial, reserve)
	}
	committed := vmem.RoundUp(initial+int(prefix), g)
	if committed > vmem.RoundUp(reserve, g) {
		return nil, errors.Wrapf(vmem.ErrReservationExceeded, "initial %d exceeds reserve %d", committed, reserve)
	}

	region, err := p.Reserve(reserve)
	if err != nil {
		return nil, errors.Mark(err, ErrOutOfMemory)
	}
	if err := p.Commit(region, committed); err != nil {
		_ = p.Release(region)
		return nil, errors.Mark(err, ErrOutOfMemory)
	}

	va := &VirtualArena{
		reserved:    uintptr(region.Reserved()),
		granularity: uintptr(g),
	}
	va.log = cfg.logger
	mem := unsafe.Slice((*byte)(region.Base()), region.Reserved())
	va.init(mem, prefix, Header{
		Alignment: align,
		TotalSize: uintptr(committed),
		UserSize:  uintptr(committed) - prefix,
	})
	va.vm = &mapping{provider: p, region: region}
	va.log.Debug("virtual arena created",
		slog.String("allocator", "arena"),
		slog.Int("reserved", region.Reserved()),
		slog.Int("committed", committed))
	return va, nil
}

// Reserved returns the size of the reservation.
func (va *VirtualArena) Reserved() int { return int(va.reserved) }

// PageGranularity returns the commit granularity.
func (va *VirtualArena) PageGranularity() int { return int(va.granularity) }

// Grow commits at least minBytes more, rounded up to the page granularity, and
// returns the number of bytes added. It returns 0 when the new size would pass
// the reservation or the commit fails.
func (va *VirtualArena) Grow(minBytes int) int {
	if minBytes <= 0 {
		return 0
	}
	h := va.header()
	g := int(va.granularity)
	newSize := vmem.RoundUp(int(h.TotalSize)+minBytes, g)
	if uintptr(newSize) > va.reserved {
		return 0
	}
	if err := va.vm.provider.Commit(va.vm.region, newSize); err != nil {
		va.log.Warn("virtual arena commit failed",
			slog.String("allocator", "arena"),
			slog.Int("size", newSize),
			slog.Any("err", err))
		return 0
	}
	grown := uintptr(newSize) - h.TotalSize
	h.TotalSize += grown
	h.UserSize += grown
	va.log.Debug("virtual arena grown",
		slog.String("allocator", "arena"),
		slog.Int("grown", int(grown)),
		slog.Int("total", int(h.TotalSize)))
	return int(grown)
}

// ensure grows the arena so that end < UserSize. It first tries to double the
// committed size and falls back to the exact shortfall.
func (va *VirtualArena) ensure(end uintptr) bool {
	h := va.header()
	if end < h.UserSize {
		return true
	}
	need := int(end + 1 - h.UserSize)
	step := max(need, int(h.TotalSize))
	if va.Grow(step) > 0 {
		return true
	}
	return step != need && va.Grow(need) > 0
}

// Destroy releases the whole reservation.
func (va *VirtualArena) Destroy() error {
	if va.vm == nil {
		return nil
	}
	reserved := va.reserved
	err := va.destroy()
	va.log.Debug("virtual arena destroyed",
		slog.String("allocator", "arena"),
		slog.Int("reserved", int(reserved)))
	return err
}

// Move transfers ownership to a new handle.
func (va *VirtualArena) Move() *VirtualArena {
	n := &VirtualArena{
		reserved:    va.reserved,
		granularity: va.granularity,
	}
	n.moveFrom(&va.Arena)
	return n
}

// Metrics returns usage statistics, with Reserved reporting the whole
// reservation rather than the committed size.
func (va *VirtualArena) Metrics() Metrics {
	m := va.Arena.Metrics()
	if va.vm != nil {
		m.Reserved = int(va.reserved)
	}
	return m
}

// VirtualAllocate is Allocate for a virtual arena: on overflow it grows the
// arena before giving up.
func VirtualAllocate[T any](va *VirtualArena, count int) []T {
	size, ok := sizeOf[T](count)
	if !ok {
		return nil
	}
	h := va.header()
	if !va.ensure(h.Offset + size) {
		return nil
	}
	return slice[T](va.bump(size), count)
}

// VirtualMultiTypeAllocate is MultiTypeAllocate with growth on overflow.
func VirtualMultiTypeAllocate[T any](va *VirtualArena, count int) []T {
	size, ok := sizeOf[T](count)
	if !ok {
		return nil
	}
	h := va.header()
	align := alignOf[T]()
	if !va.ensure(va.alignedOffset(h, align) + size) {
		return nil
	}
	return slice[T](va.bumpAligned(size, align), count)
}
