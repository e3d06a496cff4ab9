package arena

import (
	"math"
	"math/bits"
	"unsafe"

	"github.com/pavanmanishd/memkit/alloc"
)

// sizeOf returns count*sizeof(T), and false when count <= 0 or the product
// does not fit in an int.
func sizeOf[T any](count int) (uintptr, bool) {
	if count <= 0 {
		return 0, false
	}
	var zero T
	hi, lo := bits.Mul64(uint64(count), uint64(unsafe.Sizeof(zero)))
	if hi != 0 || lo > math.MaxInt {
		return 0, false
	}
	return uintptr(lo), true
}

func alignOf[T any]() uintptr {
	var zero T
	return unsafe.Alignof(zero)
}

func elemSize[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

func slice[T any](p unsafe.Pointer, count int) []T {
	if p == nil {
		return nil
	}
	return unsafe.Slice((*T)(p), count)
}

// Allocate returns count contiguous, uninitialized T slots at the cursor of a
// single-type arena. It returns nil when count <= 0 or when
// offset+count*sizeof(T) >= Size.
func Allocate[T any](a *Arena, count int) []T {
	size, ok := sizeOf[T](count)
	if !ok {
		return nil
	}
	return slice[T](a.bump(size), count)
}

// UnsafeAllocate is Allocate without the capacity check. The caller must have
// confirmed count <= FreeSlots[T](a).
func UnsafeAllocate[T any](a *Arena, count int) []T {
	return unsafe.Slice((*T)(a.bumpUnchecked(uintptr(count)*elemSize[T]())), count)
}

// MultiTypeAllocate aligns the cursor to alignof(T) before carving count
// slots. Arenas used with MultiTypeAllocate must not also be used with
// Allocate.
func MultiTypeAllocate[T any](a *Arena, count int) []T {
	size, ok := sizeOf[T](count)
	if !ok {
		return nil
	}
	return slice[T](a.bumpAligned(size, alignOf[T]()), count)
}

// UnsafeMultiTypeAllocate is MultiTypeAllocate without the capacity check.
func UnsafeMultiTypeAllocate[T any](a *Arena, count int) []T {
	p := a.bumpAlignedUnchecked(uintptr(count)*elemSize[T](), alignOf[T]())
	return unsafe.Slice((*T)(p), count)
}

// StepBackwards pops count T from the cursor, stopping at zero.
func StepBackwards[T any](a *Arena, count int) {
	if count <= 0 {
		return
	}
	h := a.header()
	size, ok := sizeOf[T](count)
	if !ok || size > h.Offset {
		h.Offset = 0
		return
	}
	h.Offset -= size
}

// UnsafeStepBackwards pops count T without clamping; the cursor wraps if it
// would go below zero.
func UnsafeStepBackwards[T any](a *Arena, count int) {
	a.hdr.Offset -= uintptr(count) * elemSize[T]()
}

// FreeSlots returns how many T still fit behind the cursor of a single-type
// arena.
func FreeSlots[T any](a *Arena) int {
	h := a.header()
	size := elemSize[T]()
	if size == 0 {
		return math.MaxInt
	}
	return int((h.UserSize - h.Offset) / size)
}

// MultiTypeFreeSlots returns how many T fit after aligning the cursor to
// alignof(T).
func MultiTypeFreeSlots[T any](a *Arena) int {
	h := a.header()
	size := elemSize[T]()
	if size == 0 {
		return math.MaxInt
	}
	off := a.alignedOffset(h, alignOf[T]())
	if off >= h.UserSize {
		return 0
	}
	return int((h.UserSize - off) / size)
}

// Construct allocates count slots like Allocate and sets each to v.
func Construct[T any](a *Arena, count int, v T) []T {
	return alloc.Fill(Allocate[T](a, count), v)
}

// UnsafeConstruct is Construct over UnsafeAllocate.
func UnsafeConstruct[T any](a *Arena, count int, v T) []T {
	return alloc.Fill(UnsafeAllocate[T](a, count), v)
}

// MultiTypeConstruct is Construct over MultiTypeAllocate.
func MultiTypeConstruct[T any](a *Arena, count int, v T) []T {
	return alloc.Fill(MultiTypeAllocate[T](a, count), v)
}

// UnsafeMultiTypeConstruct is Construct over UnsafeMultiTypeAllocate.
func UnsafeMultiTypeConstruct[T any](a *Arena, count int, v T) []T {
	return alloc.Fill(UnsafeMultiTypeAllocate[T](a, count), v)
}

// DestroyValues tears down constructed elements. Clear and Destroy never do
// this on their own.
func DestroyValues[T any](s []T) {
	alloc.Destroy(s)
}
