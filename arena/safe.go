package arena

import (
	"sync"
)

// SafeArena serializes access to an Arena with a mutex. The arena itself has
// no synchronization; SafeArena is the external lock for callers that share
// one arena between goroutines.
type SafeArena struct {
	mu sync.Mutex
	a  *Arena
}

// NewSafeArena creates a mutex-protected arena with size usable bytes.
func NewSafeArena(size int, opts ...Option) (*SafeArena, error) {
	a, err := New(size, opts...)
	if err != nil {
		return nil, err
	}
	return &SafeArena{a: a}, nil
}

// Do runs fn with exclusive access to the arena. Use it for compound steps
// such as checking FreeSlots before an unchecked allocation.
func (s *SafeArena) Do(fn func(a *Arena)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.a)
}

// AllocateBytes thread-safely allocates n unaligned bytes.
func (s *SafeArena) AllocateBytes(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.AllocateBytes(n)
}

// MultiTypeAllocateBytes thread-safely allocates n bytes aligned to align.
func (s *SafeArena) MultiTypeAllocateBytes(n int, align uintptr) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.MultiTypeAllocateBytes(n, align)
}

// Clear thread-safely resets the cursor.
func (s *SafeArena) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Clear()
}

// Destroy thread-safely releases the arena.
func (s *SafeArena) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Destroy()
}

// Metrics thread-safely returns a snapshot of arena statistics.
func (s *SafeArena) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Metrics()
}

// SafeAllocate thread-safely allocates count T from a single-type arena.
func SafeAllocate[T any](s *SafeArena, count int) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Allocate[T](s.a, count)
}

// SafeMultiTypeAllocate thread-safely allocates count aligned T.
func SafeMultiTypeAllocate[T any](s *SafeArena, count int) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MultiTypeAllocate[T](s.a, count)
}

// SafeStepBackwards thread-safely pops count T from the cursor.
func SafeStepBackwards[T any](s *SafeArena, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	StepBackwards[T](s.a, count)
}
