package vm

import (
	"sv39vm/defs"
	"sv39vm/mem"
)

// WalkKind tags what a Walk found at a virtual address, since the same
// address range may hold leaves at different depths (spec.md §9).
type WalkKind int

const (
	// AbsentHole means no PTE exists for the address at all.
	AbsentHole WalkKind = iota
	// Leaf4K means a base-page leaf was found.
	Leaf4K
	// Leaf2M means a superpage leaf was found.
	Leaf2M
)

// WalkResult is the outcome of a page-table walk.
type WalkResult struct {
	Kind WalkKind
	// Slot is the address of the leaf PTE within its node, valid
	// when Kind != AbsentHole. It lets callers both read and
	// overwrite the PTE in place (the mapper's remove path, the
	// page-fault-free single-writer model this subsystem assumes).
	Slot *PTE
	// Level is 0 for a base-page leaf, 1 for a superpage leaf.
	// Meaningless when Kind == AbsentHole.
	Level int
}

// Walk traverses an existing page table rooted at root to the leaf
// covering va, without allocating anything. It panics if it ever
// encounters a leaf at level 2 (ProtocolViolation: a superpage must
// never live at level 2) since that can only be caused by a bug
// elsewhere in this package, never by caller input.
func Walk(alloc mem.FrameAllocator, root mem.PA, va uintptr) (WalkResult, defs.Err_t) {
	if va >= mem.MaxVA {
		return WalkResult{}, defs.EINVAL
	}

	node := nodeAt(alloc, root)
	for level := 2; level >= 0; level-- {
		pte := &node[Px(level, va)]
		if !IsValid(*pte) {
			return WalkResult{}, defs.EOK
		}
		if IsLeaf(*pte) {
			if level == 2 {
				panic("vm: superpage entry at level 2")
			}
			kind := Leaf4K
			if level == 1 {
				kind = Leaf2M
			}
			return WalkResult{Kind: kind, Slot: pte, Level: level}, defs.EOK
		}
		node = nodeAt(alloc, PTEPfn(*pte))
	}
	// Reached only on a corrupt table: a level-0 PTE that is valid but
	// not a leaf is an interior pointer one level below the deepest
	// possible leaf. UnmapRange relies on this panic to surface a
	// present-but-non-leaf slot.
	panic("vm: walk fell through all levels")
}
