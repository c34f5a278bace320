package vm

import (
	"sv39vm/defs"
	"sv39vm/mem"
	"sv39vm/util"
)

// CreatePageTable allocates a zeroed frame and returns it as a fresh,
// empty root.
func CreatePageTable(alloc mem.FrameAllocator) (mem.PA, defs.Err_t) {
	pa, ok := alloc.Alloc4K()
	if !ok {
		return 0, defs.ENOMEM
	}
	return pa, defs.EOK
}

// freeWalk recursively releases interior node frames back to the
// allocator. All leaf mappings must already have been removed by the
// unmap phase of FreeAll; a leaf encountered here means that phase was
// skipped or the tree is corrupt, which is a protocol violation.
func freeWalk(alloc mem.FrameAllocator, pa mem.PA) {
	node := nodeAt(alloc, pa)
	for i := range node {
		pte := node[i]
		if !IsValid(pte) {
			continue
		}
		if IsLeaf(pte) {
			panic("vm: free_all: leaf encountered during teardown")
		}
		freeWalk(alloc, PTEPfn(pte))
	}
	alloc.Free4K(pa)
}

// FreeAll releases every leaf mapping below sz and then the entire
// interior tree rooted at root, finally freeing the root node itself.
func FreeAll(alloc mem.FrameAllocator, root mem.PA, sz uintptr) {
	npages := uint64(util.Roundup(sz, uintptr(mem.FrameSize)) / mem.FrameSize)
	UnmapRange(alloc, root, 0, npages, true)
	freeWalk(alloc, root)
}

// CopyAddressSpace walks src from virtual address 0 up to sz. For
// every leaf found it allocates a new backing frame of matching
// granularity, copies the bytes, and installs the copy into dst with
// the identical permission set, producing a structurally independent
// address space (spec.md testable property 3). A hole (an artifact of
// superpage layout) advances the cursor to the next SuperSize boundary
// rather than failing. On any allocation or map failure, everything
// already installed in dst is unmapped (with freeing) and -1 (here,
// ENOMEM) is returned.
func CopyAddressSpace(alloc mem.FrameAllocator, src, dst mem.PA, sz uintptr) defs.Err_t {
	var cursor uintptr
	for cursor < sz {
		res, err := Walk(alloc, src, cursor)
		if err != defs.EOK {
			panic("vm: copy_address_space: invalid address")
		}
		if res.Kind == AbsentHole {
			cursor = nextSuperBoundary(cursor)
			continue
		}

		pte := *res.Slot
		perm := PTEFlags(pte) &^ FlagV
		srcPA := PTEPfn(pte)

		if res.Kind == Leaf2M {
			newPA, ok := alloc.Alloc2M()
			if !ok {
				rollbackCopy(alloc, dst, cursor)
				return defs.ENOMEM
			}
			*alloc.DmapSuper(newPA) = *alloc.DmapSuper(srcPA)
			if merr := MapRange(alloc, dst, true, cursor, mem.SuperSize, newPA, perm); merr != defs.EOK {
				alloc.Free2M(newPA)
				rollbackCopy(alloc, dst, cursor)
				return merr
			}
			cursor += mem.SuperSize
		} else {
			newPA, ok := alloc.Alloc4K()
			if !ok {
				rollbackCopy(alloc, dst, cursor)
				return defs.ENOMEM
			}
			*alloc.Dmap(newPA) = *alloc.Dmap(srcPA)
			if merr := MapRange(alloc, dst, false, cursor, mem.FrameSize, newPA, perm); merr != defs.EOK {
				alloc.Free4K(newPA)
				rollbackCopy(alloc, dst, cursor)
				return merr
			}
			cursor += mem.FrameSize
		}
	}
	return defs.EOK
}

// rollbackCopy unmaps and frees everything installed in dst so far;
// cursor is always FrameSize-aligned at each loop boundary above.
func rollbackCopy(alloc mem.FrameAllocator, dst mem.PA, cursor uintptr) {
	if cursor == 0 {
		return
	}
	UnmapRange(alloc, dst, 0, uint64(cursor)/mem.FrameSize, true)
}
