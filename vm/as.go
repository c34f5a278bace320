package vm

import (
	"sync"

	"sv39vm/defs"
	"sv39vm/mem"
)

// AddressSpace is a process's page table plus the caller-held lock
// that serializes every mutation of it. The VM core's own functions
// (Walk, MapRange, Grow, ...) take no locks; AddressSpace is where the
// single-writer-per-root discipline spec.md §5 assumes actually lives,
// mirroring biscuit's Vm_t.Lock_pmap/Unlock_pmap/Lockassert_pmap.
type AddressSpace struct {
	sync.Mutex

	Alloc mem.FrameAllocator
	Root  mem.PA
	Size  uintptr

	locked bool
}

// NewAddressSpace creates an empty user address space.
func NewAddressSpace(alloc mem.FrameAllocator) (*AddressSpace, defs.Err_t) {
	root, err := CreatePageTable(alloc)
	if err != defs.EOK {
		return nil, err
	}
	return &AddressSpace{Alloc: alloc, Root: root}, defs.EOK
}

// LockAS acquires the address space's mutex.
func (as *AddressSpace) LockAS() {
	as.Lock()
	as.locked = true
}

// UnlockAS releases the address space's mutex.
func (as *AddressSpace) UnlockAS() {
	as.locked = false
	as.Unlock()
}

// LockAssertHeld panics if the address space mutex is not held; useful
// for catching missing-lock bugs during development, the same role
// biscuit's Lockassert_pmap plays.
func (as *AddressSpace) LockAssertHeld() {
	if !as.locked {
		panic("vm: address space lock must be held")
	}
}

// Map installs a mapping over [va, va+size) backed by pa.
func (as *AddressSpace) Map(allowSuper bool, va, size uintptr, pa mem.PA, perm Flag) defs.Err_t {
	as.LockAS()
	defer as.UnlockAS()
	return MapRange(as.Alloc, as.Root, allowSuper, va, size, pa, perm)
}

// Unmap removes npages of mapping starting at va.
func (as *AddressSpace) Unmap(va uintptr, npages uint64, doFree bool) {
	as.LockAS()
	defer as.UnlockAS()
	UnmapRange(as.Alloc, as.Root, va, npages, doFree)
}

// Grow extends the address space's managed size from its current Size
// to newSz, updating Size on success.
func (as *AddressSpace) Grow(newSz uintptr, extraPerm Flag) uintptr {
	as.LockAS()
	defer as.UnlockAS()
	got := Grow(as.Alloc, as.Root, as.Size, newSz, extraPerm)
	if got != 0 {
		as.Size = got
	}
	return got
}

// ShrinkTo reduces the address space's managed size to newSz.
func (as *AddressSpace) ShrinkTo(newSz uintptr) uintptr {
	as.LockAS()
	defer as.UnlockAS()
	as.Size = Shrink(as.Alloc, as.Root, as.Size, newSz)
	return as.Size
}

// Translate looks up a user virtual address.
func (as *AddressSpace) Translate(va uintptr) (mem.PA, bool) {
	as.LockAS()
	defer as.UnlockAS()
	return TranslateUser(as.Alloc, as.Root, va)
}

// CopyOut copies src into the user address space at dstVA.
func (as *AddressSpace) CopyOut(dstVA uintptr, src []byte) defs.Err_t {
	as.LockAS()
	defer as.UnlockAS()
	return CopyOut(as.Alloc, as.Root, dstVA, src)
}

// CopyIn copies len(dst) bytes from the user address space at srcVA.
func (as *AddressSpace) CopyIn(dst []byte, srcVA uintptr) defs.Err_t {
	as.LockAS()
	defer as.UnlockAS()
	return CopyIn(as.Alloc, as.Root, dst, srcVA)
}

// CopyInStr copies a NUL-terminated string from srcVA into dst.
func (as *AddressSpace) CopyInStr(dst []byte, srcVA uintptr, max int) (int, defs.Err_t) {
	as.LockAS()
	defer as.UnlockAS()
	return CopyInStr(as.Alloc, as.Root, dst, srcVA, max)
}

// Fork creates a structurally independent copy of as into a fresh
// address space, up to as.Size.
func (as *AddressSpace) Fork() (*AddressSpace, defs.Err_t) {
	as.LockAS()
	defer as.UnlockAS()

	child, err := CreatePageTable(as.Alloc)
	if err != defs.EOK {
		return nil, err
	}
	if cerr := CopyAddressSpace(as.Alloc, as.Root, child, as.Size); cerr != defs.EOK {
		FreeAll(as.Alloc, child, as.Size)
		return nil, cerr
	}
	return &AddressSpace{Alloc: as.Alloc, Root: child, Size: as.Size}, defs.EOK
}

// Destroy deep-frees every leaf and interior node of this address
// space. The AddressSpace must not be used afterward.
func (as *AddressSpace) Destroy() {
	as.LockAS()
	defer as.UnlockAS()
	FreeAll(as.Alloc, as.Root, as.Size)
}
