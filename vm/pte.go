// Package vm implements the hierarchical Sv39-equivalent page table:
// the PTE codec, the walker and walk-allocator, the mapper, the
// page-table lifecycle, the user-access bridge, and the growth/shrink
// API. None of it takes locks of its own (spec.md §5) — callers
// serialize mutation of a given root, which AddressSpace does for
// them the way biscuit's Vm_t does with Lock_pmap/Unlock_pmap.
package vm

import "sv39vm/mem"

// PTE is a single 64-bit hardware page-table entry.
type PTE uint64

// Flag bits. A/D/G are preserved but never inspected by this package,
// per spec.md §3.
const (
	FlagV Flag = 1 << 0 // valid
	FlagR Flag = 1 << 1 // readable
	FlagW Flag = 1 << 2 // writable
	FlagX Flag = 1 << 3 // executable
	FlagU Flag = 1 << 4 // user-accessible
	FlagG Flag = 1 << 5 // global
	FlagA Flag = 1 << 6 // accessed
	FlagD Flag = 1 << 7 // dirty
)

// Flag is a combination of PTE permission/attribute bits.
type Flag uint64

// flagMask covers every bit this codec assigns meaning to; the rest of
// the 10 low bits are reserved-for-software and left alone.
const flagMask = Flag(0x3ff)

// pfnShift is where the physical frame number begins once FrameSize
// (4096 = 1<<12) worth of byte-offset bits are discarded.
const pfnShift = 12

// ppnShift is where the PFN is packed into the PTE, leaving the low 10
// bits for flags — matching the Sv39 hardware encoding.
const ppnShift = 10

// MakePTE packs a physical frame address and a flag set into a PTE.
// pa must be FrameSize-aligned; callers (the mapper, the
// walk-allocator) are responsible for that, since this codec performs
// no I/O and has no way to signal a bad caller except by corrupting
// the low bits, which it deliberately leaves alone.
func MakePTE(pa mem.PA, flags Flag) PTE {
	return PTE(uint64(pa)>>pfnShift<<ppnShift) | PTE(flags&flagMask)
}

// PTEPfn extracts the physical frame address encoded in a PTE.
func PTEPfn(pte PTE) mem.PA {
	return mem.PA((uint64(pte) >> ppnShift) << pfnShift)
}

// PTEFlags extracts the flag bits of a PTE.
func PTEFlags(pte PTE) Flag {
	return Flag(pte) & flagMask
}

// IsValid reports whether the V bit is set.
func IsValid(pte PTE) bool {
	return PTEFlags(pte)&FlagV != 0
}

// IsLeaf reports whether pte is a leaf: valid and carrying any of
// R/W/X. A PTE with only V set is an interior pointer to a child node.
func IsLeaf(pte PTE) bool {
	return IsValid(pte) && PTEFlags(pte)&(FlagR|FlagW|FlagX) != 0
}

// Px extracts the index into a level-`level` node for virtual address
// va: level 2 at bit 30, level 1 at bit 21, level 0 at bit 12, each a
// 9-bit (512-entry) field.
func Px(level int, va uintptr) int {
	shift := uint(pfnShift + 9*level)
	return int((va >> shift) & 0x1ff)
}
