package blockpool

import "unsafe"

// Stats is a snapshot of a pool's slab bookkeeping.
type Stats struct {
	Slabs         int // regular slabs and oversized buffers
	Oversized     int // oversized buffers among Slabs
	Live          int // outstanding allocations across all slabs
	ActiveSlab    int // index of the bump target, -1 if none
	ActiveOffset  int // bump cursor within the active slab
	SlabCapacity  int // elements per regular slab
	ReservedElems int // elements backing all slabs
	ReservedBytes int // bytes backing all slabs
}

// SlabInfo describes one slab in allocation order.
type SlabInfo struct {
	Base        uintptr
	Capacity    int
	Live        int
	SavedOffset int
	Oversized   bool
}

// Stats returns a snapshot of the pool.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	st := Stats{
		Slabs:        len(p.slabs),
		ActiveSlab:   p.active,
		ActiveOffset: p.offset,
		SlabCapacity: p.capacity,
	}
	for _, s := range p.slabs {
		if s.oversized {
			st.Oversized++
		}
		st.Live += s.live
		st.ReservedElems += s.capacity()
	}
	st.ReservedBytes = st.ReservedElems * int(unsafe.Sizeof(zero))
	return st
}

// Slabs returns the slabs in allocation order.
func (p *Pool[T]) Slabs() []SlabInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SlabInfo, len(p.slabs))
	for i, s := range p.slabs {
		out[i] = SlabInfo{
			Base:        s.base,
			Capacity:    s.capacity(),
			Live:        s.live,
			SavedOffset: s.savedOffset,
			Oversized:   s.oversized,
		}
	}
	return out
}
