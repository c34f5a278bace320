package vm

import (
	"sv39vm/defs"
	"sv39vm/mem"
)

// WalkAlloc walks from the root down to the leaf level for va
// (level 0 for a base page, level 1 for a superpage when wantSuper),
// allocating zeroed interior node frames on demand. It returns the
// target leaf slot, ready to receive a leaf PTE.
//
// It is a caller bug (ProtocolViolation, fatal) for the target slot to
// already be valid — a double-map is never legitimate in this design.
//
// On frame-allocator exhaustion this returns ENOMEM without backing
// out any interior allocations already made on this walk; per
// spec.md §4.3 that is safe because interior nodes are only reclaimed
// by full address-space teardown, and the caller of WalkAlloc always
// either keeps populating the address space or tears it all down.
func WalkAlloc(alloc mem.FrameAllocator, root mem.PA, va uintptr, wantSuper bool) (*PTE, defs.Err_t) {
	if va >= mem.MaxVA {
		return nil, defs.EINVAL
	}

	target := 0
	if wantSuper {
		target = 1
	}

	node := nodeAt(alloc, root)
	for level := 2; level > target; level-- {
		pte := &node[Px(level, va)]
		if IsValid(*pte) {
			node = nodeAt(alloc, PTEPfn(*pte))
			continue
		}
		childPA, child, ok := newNode(alloc)
		if !ok {
			return nil, defs.ENOMEM
		}
		_ = child
		*pte = MakePTE(childPA, FlagV)
		node = nodeAt(alloc, childPA)
	}

	slot := &node[Px(target, va)]
	if IsValid(*slot) {
		panic("vm: walk_alloc: pte already allocated")
	}
	return slot, defs.EOK
}
