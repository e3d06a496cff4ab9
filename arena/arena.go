package arena

import (
	"log/slog"
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/pavanmanishd/memkit/vmem"
)

var (
	// ErrOutOfMemory is returned when the backing allocation cannot be made.
	ErrOutOfMemory = errors.New("arena: out of memory")
	// ErrInvalidAlignment is returned for alignments that are not a power of two.
	ErrInvalidAlignment = errors.New("arena: alignment is not a power of 2")
)

// Header is the arena metadata. It lives in the same allocation as the
// payload, immediately before the first payload byte.
type Header struct {
	Alignment uintptr // alignment of the backing allocation
	TotalSize uintptr // bytes backing the arena, header included
	UserSize  uintptr // usable payload bytes
	Offset    uintptr // bump cursor, 0..UserSize
}

const (
	headerSize  = unsafe.Sizeof(Header{})
	headerAlign = unsafe.Alignof(Header{})
)

// noCopy makes go vet flag copies of an Arena value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Arena is a single contiguous region with an embedded header and a bump
// cursor. It has no internal synchronization and exactly one owner; use Move
// to hand it to another owner.
type Arena struct {
	_ noCopy

	mem    []byte // header prefix followed by the payload
	prefix uintptr
	base   unsafe.Pointer
	hdr    *Header
	log    *slog.Logger
	vm     *mapping // set when the memory comes from a vmem reservation
}

// mapping is the reservation behind a virtual arena. It travels with the
// Arena so that every Destroy path returns it to the provider.
type mapping struct {
	provider vmem.Provider
	region   *vmem.Region
}

// Option configures arena construction.
type Option func(*config)

type config struct {
	alignment uintptr
	provider  vmem.Provider
	logger    *slog.Logger
}

// WithAlignment sets the alignment of the payload base. It must be a power of
// two; values below the header alignment are raised to it.
func WithAlignment(n uintptr) Option {
	return func(c *config) { c.alignment = n }
}

// WithProvider selects the virtual memory provider for NewVirtual.
func WithProvider(p vmem.Provider) Option {
	return func(c *config) { c.provider = p }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) (config, error) {
	c := config{alignment: headerAlign}
	for _, o := range opts {
		o(&c)
	}
	if c.alignment == 0 || c.alignment&(c.alignment-1) != 0 {
		return c, errors.Wrapf(ErrInvalidAlignment, "alignment %d", c.alignment)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// layout returns the size of the header prefix and the alignment of the
// backing allocation for a requested payload alignment. The prefix is always a
// multiple of the alignment so the payload base stays aligned.
func layout(alignment uintptr) (prefix, align uintptr) {
	switch {
	case alignment <= headerAlign:
		return headerSize, headerAlign
	case alignment > headerSize:
		return alignment, alignment
	default:
		return alignment * 2, alignment
	}
}

// New creates an arena with size usable bytes. The header and payload share
// one allocation aligned to max(alignment, header alignment).
func New(size int, opts ...Option) (*Arena, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	prefix, align := layout(cfg.alignment)
	if size < 0 || uintptr(size) > math.MaxInt-prefix-align {
		return nil, errors.Wrapf(ErrOutOfMemory, "size %d", size)
	}
	total := uintptr(size) + prefix
	mem, err := allocAligned(total, align)
	if err != nil {
		return nil, err
	}
	a := &Arena{log: cfg.logger}
	a.init(mem, prefix, Header{
		Alignment: align,
		TotalSize: total,
		UserSize:  uintptr(size),
	})
	a.log.Debug("arena created",
		slog.String("allocator", "arena"),
		slog.Int("size", size),
		slog.Int("alignment", int(align)))
	return a, nil
}

func (a *Arena) init(mem []byte, prefix uintptr, h Header) {
	a.mem = mem
	a.prefix = prefix
	a.base = unsafe.Add(unsafe.Pointer(unsafe.SliceData(mem)), prefix)
	a.hdr = (*Header)(unsafe.Pointer(&mem[prefix-headerSize]))
	*a.hdr = h
}

// allocAligned returns total bytes whose first byte is aligned to align.
func allocAligned(total, align uintptr) (mem []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrOutOfMemory, "allocate %d bytes: %v", total, r)
		}
	}()
	raw := make([]byte, total+align-1)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	start := alignUp(addr, align) - addr
	return raw[start : start+total : start+total], nil
}

// Destroy releases the backing allocation, including a virtual reservation.
// Using the arena afterwards panics on checked paths and is undefined on
// unchecked ones.
func (a *Arena) Destroy() {
	if err := a.destroy(); err != nil {
		a.log.Warn("releasing reservation failed",
			slog.String("allocator", "arena"),
			slog.Any("err", err))
	}
}

func (a *Arena) destroy() error {
	if a.hdr != nil {
		a.log.Debug("arena destroyed",
			slog.String("allocator", "arena"),
			slog.Int("size", int(a.hdr.UserSize)))
	}
	var err error
	if a.vm != nil {
		err = a.vm.provider.Release(a.vm.region)
	}
	a.release()
	return err
}

func (a *Arena) release() {
	a.mem, a.base, a.hdr, a.prefix, a.vm = nil, nil, nil, 0, nil
}

// Move transfers ownership to a new handle and leaves a destroyed husk behind.
func (a *Arena) Move() *Arena {
	n := &Arena{}
	n.moveFrom(a)
	return n
}

func (a *Arena) moveFrom(src *Arena) {
	a.mem, a.prefix, a.base, a.hdr, a.log, a.vm = src.mem, src.prefix, src.base, src.hdr, src.log, src.vm
	src.release()
}

// Clear resets the bump cursor. Previously returned memory becomes invalid;
// element teardown is never run.
func (a *Arena) Clear() {
	a.header().Offset = 0
}

// Header returns the embedded header.
func (a *Arena) Header() *Header { return a.hdr }

// Offset returns the bump cursor.
func (a *Arena) Offset() int { return int(a.header().Offset) }

// SetOffset moves the bump cursor. No bounds check is made.
func (a *Arena) SetOffset(off int) { a.header().Offset = uintptr(off) }

// Size returns the number of usable bytes.
func (a *Arena) Size() int { return int(a.header().UserSize) }

// Base returns the address of the first payload byte.
func (a *Arena) Base() unsafe.Pointer { return a.base }

// Bytes returns the payload region as a byte slice.
func (a *Arena) Bytes() []byte {
	h := a.header()
	return a.mem[a.prefix : a.prefix+h.UserSize : a.prefix+h.UserSize]
}

// AllocateBytes carves n bytes at the cursor without alignment. It returns nil
// when n <= 0 or when the request does not fit strictly inside the payload.
func (a *Arena) AllocateBytes(n int) []byte {
	return Allocate[byte](a, n)
}

// MultiTypeAllocateBytes carves n bytes starting at the next multiple of align.
func (a *Arena) MultiTypeAllocateBytes(n int, align uintptr) []byte {
	if n <= 0 || align == 0 || align&(align-1) != 0 {
		return nil
	}
	p := a.bumpAligned(uintptr(n), align)
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

func (a *Arena) header() *Header {
	if a.hdr == nil {
		panic("arena: use after Destroy()")
	}
	return a.hdr
}

// bump reserves size bytes at the cursor. The request must leave at least one
// byte of the payload unused.
func (a *Arena) bump(size uintptr) unsafe.Pointer {
	h := a.header()
	if h.Offset+size >= h.UserSize {
		return nil
	}
	p := unsafe.Add(a.base, h.Offset)
	h.Offset += size
	return p
}

func (a *Arena) bumpUnchecked(size uintptr) unsafe.Pointer {
	h := a.hdr
	p := unsafe.Add(a.base, h.Offset)
	h.Offset += size
	return p
}

// alignedOffset returns the cursor rounded up so that base+offset is a
// multiple of align.
func (a *Arena) alignedOffset(h *Header, align uintptr) uintptr {
	base := uintptr(a.base)
	return alignUp(base+h.Offset, align) - base
}

func (a *Arena) bumpAligned(size, align uintptr) unsafe.Pointer {
	h := a.header()
	off := a.alignedOffset(h, align)
	if off+size >= h.UserSize {
		return nil
	}
	h.Offset = off + size
	return unsafe.Add(a.base, off)
}

func (a *Arena) bumpAlignedUnchecked(size, align uintptr) unsafe.Pointer {
	h := a.hdr
	off := a.alignedOffset(h, align)
	h.Offset = off + size
	return unsafe.Add(a.base, off)
}

// alignUp rounds off up to a multiple of the power-of-two align.
func alignUp(off, align uintptr) uintptr {
	mask := align - 1
	return (off + mask) &^ mask
}
