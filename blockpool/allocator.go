package blockpool

import (
	"github.com/pavanmanishd/memkit/alloc"
)

// Allocator is the user-facing handle of a shared Pool. Copies of an
// Allocator, and separate Allocators built with the same Registry and
// Options, all draw from one pool and compare equal.
type Allocator[T any] struct {
	reg  *Registry
	opts Options
	pool *Pool[T]
}

var _ alloc.Allocator[int] = Allocator[int]{}

// New returns an allocator for T over the pool reg holds for opts.
func New[T any](reg *Registry, opts Options) Allocator[T] {
	opts = normalize(opts)
	return Allocator[T]{reg: reg, opts: opts, pool: Lookup[T](reg, opts)}
}

// Rebind returns an allocator for U with the same registry and options.
func Rebind[U, T any](a Allocator[T]) Allocator[U] {
	return New[U](a.reg, a.opts)
}

// Pool returns the shared pool.
func (a Allocator[T]) Pool() *Pool[T] { return a.pool }

// Options returns the configuration the allocator was built with.
func (a Allocator[T]) Options() Options { return a.opts }

// Allocate returns storage for n elements, or nil when n <= 0.
func (a Allocator[T]) Allocate(n int) []T {
	return a.pool.Allocate(n)
}

// Construct allocates n elements and sets each to v. It panics unless the
// allocator was built with Options.Construct.
func (a Allocator[T]) Construct(n int, v T) []T {
	if !a.opts.Construct {
		panic("blockpool: Construct on a raw-storage allocator")
	}
	return alloc.Fill(a.pool.Allocate(n), v)
}

// Deallocate returns s to the pool. With Options.Construct the elements are
// torn down first.
func (a Allocator[T]) Deallocate(s []T) {
	if a.opts.Construct {
		alloc.Destroy(s)
	}
	a.pool.Deallocate(s)
}

// Equal reports whether both allocators share a pool. It is always true for
// allocators of the same configuration.
func (a Allocator[T]) Equal(o Allocator[T]) bool { return a.pool == o.pool }

// Traits reports that pool allocators are interchangeable: containers may
// move and swap storage freely.
func (Allocator[T]) Traits() alloc.Traits {
	return alloc.Traits{
		AlwaysEqual:     true,
		PropagateOnCopy: true,
		PropagateOnMove: true,
		PropagateOnSwap: true,
	}
}
