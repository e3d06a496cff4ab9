package arena_test

import (
	"math"
	"sync"
	"testing"
	"unsafe"

	"github.com/pavanmanishd/memkit/arena"
)

// TestEdgeCases covers sizes and counts at the limits of the arena
func TestEdgeCases(t *testing.T) {
	t.Run("OverflowingCounts", func(t *testing.T) {
		a, err := arena.New(1024)
		if err != nil {
			t.Fatal(err)
		}
		defer a.Destroy()

		if s := arena.Allocate[int64](a, math.MaxInt); s != nil {
			t.Errorf("Allocate(MaxInt) returned %d slots", len(s))
		}
		if s := arena.MultiTypeAllocate[[64]byte](a, math.MaxInt/8); s != nil {
			t.Errorf("MultiTypeAllocate overflow returned %d slots", len(s))
		}
		if a.Offset() != 0 {
			t.Errorf("refused allocations moved the cursor to %d", a.Offset())
		}
	})

	t.Run("NonRepresentableSize", func(t *testing.T) {
		if _, err := arena.New(math.MaxInt); err == nil {
			t.Error("New(MaxInt) succeeded")
		}
	})

	t.Run("AlignmentAcrossTypes", func(t *testing.T) {
		a, err := arena.New(1024, arena.WithAlignment(16))
		if err != nil {
			t.Fatal(err)
		}
		defer a.Destroy()

		type small struct{ a int8 }
		type wide struct{ a int64 }
		type mixed struct {
			a int8
			b int64
			c int16
		}

		checks := []struct {
			name  string
			addr  uintptr
			align uintptr
		}{
			{"int8", uintptr(unsafe.Pointer(&arena.MultiTypeAllocate[small](a, 3)[0])), unsafe.Alignof(small{})},
			{"int64", uintptr(unsafe.Pointer(&arena.MultiTypeAllocate[wide](a, 1)[0])), unsafe.Alignof(wide{})},
			{"bytes", uintptr(unsafe.Pointer(&arena.MultiTypeAllocate[byte](a, 5)[0])), 1},
			{"struct", uintptr(unsafe.Pointer(&arena.MultiTypeAllocate[mixed](a, 2)[0])), unsafe.Alignof(mixed{})},
			{"uint16", uintptr(unsafe.Pointer(&arena.MultiTypeAllocate[uint16](a, 1)[0])), 2},
		}
		for _, c := range checks {
			if c.addr%c.align != 0 {
				t.Errorf("%s slot at %#x not aligned to %d", c.name, c.addr, c.align)
			}
		}
	})
}

// TestMemoryCorruption checks that neighbouring allocations never overlap
func TestMemoryCorruption(t *testing.T) {
	a, err := arena.New(8 << 10)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()

	blocks := make([][]byte, 100)
	for i := range blocks {
		blocks[i] = arena.Allocate[byte](a, 64)
		if blocks[i] == nil {
			t.Fatalf("allocation %d refused", i)
		}
		for j := range blocks[i] {
			blocks[i][j] = byte(i)
		}
	}

	for i, b := range blocks {
		for j, v := range b {
			if v != byte(i) {
				t.Errorf("Memory corruption detected at block[%d][%d]: got %d, want %d", i, j, v, byte(i))
			}
		}
	}
}

// TestClearBehavior checks that Clear recycles the same memory
func TestClearBehavior(t *testing.T) {
	a, err := arena.New(256)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()

	first := arena.Allocate[uint32](a, 8)
	for round := 0; round < 5; round++ {
		a.Clear()
		again := arena.Allocate[uint32](a, 8)
		if &again[0] != &first[0] {
			t.Fatalf("round %d: Clear did not rewind to the payload base", round)
		}
	}
}

// TestConcurrencyStress hammers a SafeArena from many goroutines
func TestConcurrencyStress(t *testing.T) {
	sa, err := arena.NewSafeArena(64<<10, arena.WithAlignment(16))
	if err != nil {
		t.Fatal(err)
	}
	defer sa.Destroy()

	const goroutines = 16
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if arena.SafeMultiTypeAllocate[uint64](sa, 4) == nil {
					sa.Clear()
				}
				if i%50 == 0 {
					_ = sa.Metrics()
				}
			}
		}()
	}
	wg.Wait()

	if m := sa.Metrics(); m.SizeInUse > m.Capacity {
		t.Errorf("SizeInUse %d exceeds capacity %d", m.SizeInUse, m.Capacity)
	}
}
