// Package alloc defines the contract allocator-aware containers program
// against, and the element lifecycle helpers shared by the arena and block
// pool allocators.
package alloc

// Allocator hands out storage for n elements of T. A nil result from
// Allocate is the failure sentinel.
type Allocator[T any] interface {
	Allocate(n int) []T
	Deallocate(s []T)
	Traits() Traits
}

// Traits tells a container how to treat the allocator object itself when the
// container is copied, moved or swapped.
type Traits struct {
	// AlwaysEqual reports that every instance shares the same storage, so a
	// container may move or swap elements without reallocating.
	AlwaysEqual bool

	PropagateOnCopy bool
	PropagateOnMove bool
	PropagateOnSwap bool
}

// Destroyer is implemented by element types that own resources which must be
// released before their storage is reused.
type Destroyer interface {
	Destroy()
}

// Fill sets every element of s to v.
func Fill[T any](s []T, v T) []T {
	for i := range s {
		s[i] = v
	}
	return s
}

// Destroy runs Destroy on every element whose pointer implements Destroyer,
// then zeroes s.
func Destroy[T any](s []T) {
	for i := range s {
		if d, ok := any(&s[i]).(Destroyer); ok {
			d.Destroy()
		}
	}
	clear(s)
}
