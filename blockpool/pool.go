package blockpool

import (
	"log/slog"
	"sort"
	"sync"
	"unsafe"
)

// DefaultSlabCapacity is the number of elements per slab when none is given.
const DefaultSlabCapacity = 1 << 12

// slab is one backing buffer. Oversized buffers are tracked as slabs whose
// capacity is exactly the request.
type slab[T any] struct {
	buf         []T
	base        uintptr
	live        int
	savedOffset int
	oversized   bool
}

func newSlab[T any](n int, oversized bool) *slab[T] {
	buf := make([]T, n)
	return &slab[T]{
		buf:       buf,
		base:      uintptr(unsafe.Pointer(unsafe.SliceData(buf))),
		live:      1,
		oversized: oversized,
	}
}

func (s *slab[T]) capacity() int { return len(s.buf) }

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// Pool is the slab state for one configuration. Obtain pools through a
// Registry so that equal configurations share one.
type Pool[T any] struct {
	mu       sync.Locker
	capacity int
	key      string
	log      *slog.Logger

	slabs  []*slab[T] // allocation order
	sorted []*slab[T] // by base address
	active int        // index into slabs of the bump target, -1 if none
	offset int        // bump cursor within the active slab
}

func newPool[T any](capacity int, threadSafe bool, key string, log *slog.Logger) *Pool[T] {
	p := &Pool[T]{
		mu:       nopLocker{},
		capacity: capacity,
		key:      key,
		log:      log,
		active:   -1,
	}
	if threadSafe {
		p.mu = &sync.Mutex{}
	}
	return p
}

// SlabCapacity returns the number of elements per regular slab.
func (p *Pool[T]) SlabCapacity() int { return p.capacity }

// Allocate returns count elements of storage. Requests above the slab
// capacity get a dedicated buffer; everything else is bump-allocated from the
// active slab, opening a new slab when it is full. A count of zero or less
// returns nil.
func (p *Pool[T]) Allocate(count int) []T {
	if count <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if count > p.capacity {
		return p.allocateOversized(count)
	}
	if p.active < 0 {
		return p.openSlab(count)
	}
	cur := p.slabs[p.active]
	if count > cur.capacity()-p.offset {
		cur.savedOffset = p.offset
		return p.openSlab(count)
	}
	out := cur.buf[p.offset : p.offset+count : p.offset+count]
	p.offset += count
	cur.live++
	return out
}

// openSlab appends a fresh slab, makes it the bump target and carves the first
// count elements from it.
func (p *Pool[T]) openSlab(count int) []T {
	s := newSlab[T](p.capacity, false)
	p.slabs = append(p.slabs, s)
	p.active = len(p.slabs) - 1
	p.offset = count
	p.rebuildIndex()
	p.log.Debug("slab opened",
		slog.String("allocator", "blockpool"),
		slog.String("pool", p.key),
		slog.Int("slab", p.active),
		slog.Int("slabs", len(p.slabs)))
	return s.buf[:count:count]
}

// allocateOversized registers a dedicated buffer just before the active slab
// so the bump target and its cursor are left alone.
func (p *Pool[T]) allocateOversized(count int) []T {
	s := newSlab[T](count, true)
	if p.active < 0 {
		p.slabs = append(p.slabs, s)
	} else {
		p.slabs = append(p.slabs, nil)
		copy(p.slabs[p.active+1:], p.slabs[p.active:])
		p.slabs[p.active] = s
		p.active++
	}
	p.rebuildIndex()
	p.log.Debug("oversized buffer allocated",
		slog.String("allocator", "blockpool"),
		slog.String("pool", p.key),
		slog.Int("count", count))
	return s.buf
}

// Deallocate returns storage obtained from Allocate. The owning slab is found
// by address; when its live count reaches zero the slab is dropped. Passing a
// slice the pool did not hand out is undefined.
func (p *Pool[T]) Deallocate(s []T) {
	if len(s) == 0 {
		return
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(s)))

	p.mu.Lock()
	defer p.mu.Unlock()

	owner := p.find(addr)
	owner.live--
	if owner.live == 0 {
		p.reclaim(owner)
	}
}

// find returns the slab with the greatest base address not above addr.
func (p *Pool[T]) find(addr uintptr) *slab[T] {
	i := sort.Search(len(p.sorted), func(i int) bool { return p.sorted[i].base > addr })
	if i == 0 {
		panic("blockpool: deallocating memory the pool does not own")
	}
	return p.sorted[i-1]
}

// reclaim drops an empty slab from both lists. If it was the bump target, the
// nearest earlier regular slab takes over at the offset it was left at;
// removing any other slab only shifts the active index.
func (p *Pool[T]) reclaim(s *slab[T]) {
	idx := -1
	for i, c := range p.slabs {
		if c == s {
			idx = i
			break
		}
	}
	copy(p.slabs[idx:], p.slabs[idx+1:])
	p.slabs[len(p.slabs)-1] = nil
	p.slabs = p.slabs[:len(p.slabs)-1]
	p.rebuildIndex()

	switch {
	case idx < p.active:
		p.active--
	case idx == p.active:
		p.active, p.offset = -1, 0
		for i := idx - 1; i >= 0; i-- {
			if !p.slabs[i].oversized {
				p.active, p.offset = i, p.slabs[i].savedOffset
				break
			}
		}
	}

	p.log.Debug("slab released",
		slog.String("allocator", "blockpool"),
		slog.String("pool", p.key),
		slog.Int("capacity", s.capacity()),
		slog.Bool("oversized", s.oversized),
		slog.Int("slabs", len(p.slabs)))
	s.buf = nil
}

func (p *Pool[T]) rebuildIndex() {
	p.sorted = append(p.sorted[:0], p.slabs...)
	sort.Slice(p.sorted, func(i, j int) bool { return p.sorted[i].base < p.sorted[j].base })
	clear(p.sorted[len(p.sorted):cap(p.sorted)])
}
