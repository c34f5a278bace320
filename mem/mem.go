// Package mem provides the physical-frame allocator and direct map that
// the virtual memory core treats as an external collaborator (spec
// calls these frame_alloc_4k/frame_free_4k/frame_alloc_2m/frame_free_2m
// and "the kernel's direct map"). There is no real RAM or MMU behind
// this package: Arena simulates physical memory as a single Go byte
// slice so the rest of the subsystem can be exercised and tested
// without hardware, the way gopher-os's pmm tests stand in a fake
// frame allocator for kernel/mem/vmm.
package mem

import (
	"sync"
	"unsafe"

	"sv39vm/util"
)

// PA is a physical address: an offset into the simulated RAM arena.
type PA uintptr

const (
	// FrameSize is the size of a base page.
	FrameSize = 4096
	// SuperSize is the size of a superpage: exactly FrameSize*512
	// contiguous frames treated as one allocation unit.
	SuperSize = 512 * FrameSize

	// MaxVA is the architectural virtual-address ceiling: the Sv39
	// non-negative half, one bit short of 1<<39 so that addresses
	// with the high bit of 38 set never need sign extension.
	MaxVA = 1 << 38

	// Trampoline is the fixed highest-VA page used for trap entry/exit.
	Trampoline = MaxVA - FrameSize
)

// Page is FrameSize bytes of direct-mapped physical memory.
type Page [FrameSize]byte

// SuperPage is SuperSize bytes of direct-mapped physical memory,
// covering exactly one superpage allocation unit.
type SuperPage [SuperSize]byte

// FrameAllocator is the frame allocator interface the VM core consumes.
// Arena is the only implementation in this repository; tests may
// substitute a fault-injecting stub (failAfter in mem/fakealloc_test.go,
// limitedAlloc in vm/testutil_test.go) to exercise rollback paths.
type FrameAllocator interface {
	Alloc4K() (PA, bool)
	Free4K(PA)
	Alloc2M() (PA, bool)
	Free2M(PA)
	Dmap(PA) *Page
	DmapSuper(PA) *SuperPage
}

// Arena simulates physical RAM as a contiguous byte slice, split into
// SuperSize-aligned blocks. Each block starts out as a free superframe;
// Alloc4K splits one superframe into 512 base frames the first
// time a base-page allocation is needed and none remain. Splitting
// never merges back: a superframe that has been split is never whole
// again, which is fine because the contract only ever frees a frame at
// the granularity it was allocated at (spec.md invariant 2).
type Arena struct {
	mu sync.Mutex

	buf []byte

	superFree []PA
	frameFree []PA

	// accounting, exported so tests can assert "back to baseline"
	// per spec.md testable property 4/6/7 without reaching into
	// private fields via reflection.
	LiveFrames      int
	LiveSuperFrames int
}

// NewArena allocates a simulated RAM region of at least minBytes,
// rounded up to a whole number of superframes, and populates the
// superframe free list.
func NewArena(minBytes int) *Arena {
	total := util.Roundup(minBytes, SuperSize)
	a := &Arena{buf: make([]byte, total)}
	for off := 0; off < total; off += SuperSize {
		a.superFree = append(a.superFree, PA(off))
	}
	return a
}

func (a *Arena) zero(pa PA, n int) {
	for i := range a.buf[int(pa) : int(pa)+n] {
		a.buf[int(pa)+i] = 0
	}
}

// Alloc4K returns a zeroed, naturally aligned 4 KiB frame, or
// (0, false) if the arena is exhausted.
func (a *Arena) Alloc4K() (PA, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.frameFree) == 0 {
		if len(a.superFree) == 0 {
			return 0, false
		}
		base := a.superFree[len(a.superFree)-1]
		a.superFree = a.superFree[:len(a.superFree)-1]
		for off := 0; off < SuperSize; off += FrameSize {
			a.frameFree = append(a.frameFree, base+PA(off))
		}
	}

	pa := a.frameFree[len(a.frameFree)-1]
	a.frameFree = a.frameFree[:len(a.frameFree)-1]
	a.zero(pa, FrameSize)
	a.LiveFrames++
	return pa, true
}

// Free4K returns a frame allocated by Alloc4K to the free list.
func (a *Arena) Free4K(pa PA) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frameFree = append(a.frameFree, pa)
	a.LiveFrames--
}

// Alloc2M returns a zeroed, naturally aligned 2 MiB superframe, or
// (0, false) if the arena is exhausted.
func (a *Arena) Alloc2M() (PA, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.superFree) == 0 {
		return 0, false
	}
	pa := a.superFree[len(a.superFree)-1]
	a.superFree = a.superFree[:len(a.superFree)-1]
	a.zero(pa, SuperSize)
	a.LiveSuperFrames++
	return pa, true
}

// Free2M returns a superframe allocated by Alloc2M to the free list.
func (a *Arena) Free2M(pa PA) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.superFree = append(a.superFree, pa)
	a.LiveSuperFrames--
}

// Dmap returns the direct-mapped view of the frame at pa.
func (a *Arena) Dmap(pa PA) *Page {
	return (*Page)(unsafe.Pointer(&a.buf[pa]))
}

// DmapSuper returns the direct-mapped view of the superframe at pa.
func (a *Arena) DmapSuper(pa PA) *SuperPage {
	return (*SuperPage)(unsafe.Pointer(&a.buf[pa]))
}
