package arena

import (
	"github.com/pavanmanishd/memkit/alloc"
)

// Safety selects whether allocation checks remaining capacity.
type Safety uint8

const (
	// Checked returns nil when the request does not fit.
	Checked Safety = iota
	// Unchecked trusts a prior FreeSlots call.
	Unchecked
)

// Layout selects whether the arena holds one element type or many.
type Layout uint8

const (
	// MultiType aligns the cursor for every request.
	MultiType Layout = iota
	// SingleType never aligns; the arena must only ever hold one type.
	SingleType
)

// Allocator is a per-element-type view over an Arena. Several allocators may
// share one arena; they compare equal when they do.
type Allocator[T any] struct {
	arena  *Arena
	safety Safety
	layout Layout
}

var _ alloc.Allocator[int] = Allocator[int]{}

// NewAllocator returns an allocator over a with the given policies.
func NewAllocator[T any](a *Arena, safety Safety, layout Layout) Allocator[T] {
	return Allocator[T]{arena: a, safety: safety, layout: layout}
}

// Rebind returns an allocator for U over the same arena and policies.
func Rebind[U, T any](al Allocator[T]) Allocator[U] {
	return Allocator[U]{arena: al.arena, safety: al.safety, layout: al.layout}
}

// Arena returns the underlying arena.
func (al Allocator[T]) Arena() *Arena { return al.arena }

func (al Allocator[T]) Allocate(n int) []T {
	switch {
	case al.safety == Unchecked && al.layout == SingleType:
		return UnsafeAllocate[T](al.arena, n)
	case al.safety == Unchecked:
		return UnsafeMultiTypeAllocate[T](al.arena, n)
	case al.layout == SingleType:
		return Allocate[T](al.arena, n)
	default:
		return MultiTypeAllocate[T](al.arena, n)
	}
}

// Deallocate is a no-op; arena memory is reclaimed with Clear or
// StepBackwards.
func (al Allocator[T]) Deallocate([]T) {}

// StepBackwards pops n elements, clamped at zero only when Checked.
func (al Allocator[T]) StepBackwards(n int) {
	if al.safety == Unchecked {
		UnsafeStepBackwards[T](al.arena, n)
		return
	}
	StepBackwards[T](al.arena, n)
}

// FreeSlots returns how many T still fit under the allocator's layout.
func (al Allocator[T]) FreeSlots() int {
	if al.layout == SingleType {
		return FreeSlots[T](al.arena)
	}
	return MultiTypeFreeSlots[T](al.arena)
}

func (al Allocator[T]) Clear() { al.arena.Clear() }

func (al Allocator[T]) Offset() int { return al.arena.Offset() }

func (al Allocator[T]) SetOffset(off int) { al.arena.SetOffset(off) }

func (al Allocator[T]) Header() *Header { return al.arena.Header() }

// Equal reports whether both allocators draw from the same arena.
func (al Allocator[T]) Equal(o Allocator[T]) bool { return al.arena == o.arena }

// Traits reports that arena allocators propagate with their container but are
// only equal when they share an arena.
func (al Allocator[T]) Traits() alloc.Traits {
	return alloc.Traits{
		PropagateOnCopy: true,
		PropagateOnMove: true,
		PropagateOnSwap: true,
	}
}
