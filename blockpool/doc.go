// Package blockpool implements a slab allocator for many same-size requests.
//
// A Pool hands out sub-slices of fixed-capacity slabs with a bump cursor,
// counts live allocations per slab, and frees a slab as soon as its count
// drops to zero. Requests larger than a slab get a dedicated buffer that is
// tracked like a slab but never becomes the bump target.
//
// Pools are shared per configuration through a Registry: every Allocator
// built from the same Registry with the same element type, slab capacity,
// thread-safety and tag draws from the same Pool.
//
//	reg := blockpool.NewRegistry()
//	strs := blockpool.New[byte](reg, blockpool.Options{SlabCapacity: 1 << 16, ThreadSafe: true})
//	buf := strs.Allocate(120)
//	defer strs.Deallocate(buf)
//
// Deallocation must pass back the exact slice Allocate returned. Slabs are
// located by address with a binary search over an address-sorted index.
package blockpool
