package vm

import (
	"sv39vm/defs"
	"sv39vm/mem"
)

// nextSuperBoundary advances cursor to the nearest SuperSize boundary
// strictly greater than cursor itself. A plain round-up is not enough
// here: if cursor already sits on a SuperSize boundary (the common
// case, e.g. cursor == 0) a round-up is a no-op and the hole-skipping
// loops in UnmapRange/CopyAddressSpace would spin forever on an absent
// slot instead of making progress past it.
func nextSuperBoundary(cursor uintptr) uintptr {
	return cursor - cursor%mem.SuperSize + mem.SuperSize
}

// MapRange installs leaf mappings for [va, va+size) backed by
// physical memory starting at pa, with permissions perm.
//
// va and size must be FrameSize-aligned and size must be positive;
// violating that is a caller bug (ProtocolViolation, fatal). When
// allowSuper is true and size >= SuperSize, va and size must also be
// SuperSize-aligned, and the whole range is installed with level-1
// leaves; otherwise every leaf is a level-0 base page. Remapping an
// already-valid slot is fatal.
func MapRange(alloc mem.FrameAllocator, root mem.PA, allowSuper bool, va, size uintptr, pa mem.PA, perm Flag) defs.Err_t {
	if va%mem.FrameSize != 0 {
		panic("vm: map_range: va not aligned")
	}
	if size%mem.FrameSize != 0 {
		panic("vm: map_range: size not aligned")
	}
	if size == 0 {
		panic("vm: map_range: zero size")
	}

	stride := uintptr(mem.FrameSize)
	useSuper := false
	if allowSuper && size >= mem.SuperSize {
		if size%mem.SuperSize != 0 {
			panic("vm: map_range: size not superpage-aligned")
		}
		if va%mem.SuperSize != 0 {
			panic("vm: map_range: va not superpage-aligned")
		}
		stride = mem.SuperSize
		useSuper = true
	}

	a := va
	last := va + size - stride
	for {
		slot, err := WalkAlloc(alloc, root, a, useSuper)
		if err != defs.EOK {
			return err
		}
		if IsValid(*slot) {
			panic("vm: map_range: remap of live slot")
		}
		*slot = MakePTE(pa, perm|FlagV)
		if a == last {
			break
		}
		a += stride
		pa += mem.PA(stride)
	}
	return defs.EOK
}

// UnmapRange removes npages base-page-sized units of mapping starting
// at va, which must be FrameSize-aligned. The range may hold a mix of
// base pages and superpages installed earlier under
// MapRange(allowSuper=true, ...); for each virtual cursor this walks
// the table and, on "not present", advances to the next SuperSize
// boundary rather than treating the hole as an error — that skip
// models the slack a mixed-granularity region can legitimately leave
// behind (spec.md §4.4). When doFree is true the backing frame is
// returned to the allocator at the granularity it was mapped with.
func UnmapRange(alloc mem.FrameAllocator, root mem.PA, va uintptr, npages uint64, doFree bool) {
	if va%mem.FrameSize != 0 {
		panic("vm: unmap_range: va not aligned")
	}

	cursor := va
	last := va + uintptr(npages)*mem.FrameSize
	for cursor < last {
		res, err := Walk(alloc, root, cursor)
		if err != defs.EOK {
			panic("vm: unmap_range: invalid address")
		}
		switch res.Kind {
		case AbsentHole:
			cursor = nextSuperBoundary(cursor)
		case Leaf4K:
			if doFree {
				alloc.Free4K(PTEPfn(*res.Slot))
			}
			*res.Slot = 0
			cursor += mem.FrameSize
		case Leaf2M:
			if doFree {
				alloc.Free2M(PTEPfn(*res.Slot))
			}
			*res.Slot = 0
			cursor += mem.SuperSize
		}
	}
}
