// Package arena implements a single-region bump allocator with an embedded
// header.
//
// # Overview
//
// An arena is one contiguous allocation holding a small header followed by
// the payload. Allocation advances a cursor; memory is given back all at once
// with Clear, or stack-wise with StepBackwards. This suits:
//
//   - Per-request scratch memory
//   - Building temporary containers that die together
//   - Hot loops that must not touch the general-purpose heap
//
// # Basic Usage
//
//	a, err := arena.New(64 << 10)
//	if err != nil {
//		return err
//	}
//	defer a.Destroy()
//
//	ids := arena.Allocate[int64](a, 128) // nil when it does not fit
//	a.Clear()                             // O(1)
//
// # Layouts
//
// A single-type arena never aligns the cursor, so it must only ever hold one
// element type. A multi-type arena rounds the cursor up to alignof(T) on every
// request. The two families (Allocate and MultiTypeAllocate) must not be mixed
// on one arena; nothing checks this.
//
// # Checked and Unchecked Paths
//
// Checked allocation returns nil unless the request leaves at least one byte
// of the payload unused. The Unsafe variants skip the check and are only valid
// after FreeSlots (or MultiTypeFreeSlots) has confirmed the room.
//
// # Growth
//
// VirtualArena reserves a large address range up front and commits pages on
// demand. Grow and VirtualAllocate extend the committed size in place, so
// earlier allocations remain valid. Growth past the reservation reports zero
// bytes grown.
//
// # Important Notes
//
//   - Memory is only valid while the arena exists and until the next Clear
//   - Element types should not hold the only reference to Go heap objects;
//     the collector does not scan arena memory
//   - Clear and Destroy never run element teardown; call DestroyValues
//   - An Arena has one owner; hand it over with Move, and wrap it in a
//     SafeArena if several goroutines must share it
package arena
