package vm

import (
	"sv39vm/mem"
	"sv39vm/util"
)

// Grow backs a process heap's growth from oldSz to newSz, the way
// sbrk/exec/process-create do. If the size delta is at least
// SuperSize, the whole growth region is installed as superpages with
// SuperSize-aligned boundaries; otherwise it is installed as base
// pages. Superpages demand natural alignment on both endpoints, and
// crossing a superpage boundary with a base-page run first would
// complicate installing a superpage later, so the size delta alone
// decides the granularity for the whole region (spec.md §4.8).
//
// On any failure the partially installed region is shrunk back to
// oldSz and 0 is returned. On success the end of the installed region
// is returned: oldSz rounded up to the stride plus the delta rounded up
// to the stride. That equals newSz only when oldSz and newSz are both
// multiples of the stride; otherwise it is larger than newSz.
func Grow(alloc mem.FrameAllocator, root mem.PA, oldSz, newSz uintptr, extraPerm Flag) uintptr {
	if newSz <= oldSz {
		return oldSz
	}

	delta := newSz - oldSz
	stride := uintptr(mem.FrameSize)
	useSuper := false
	roundFn := func(v uintptr) uintptr { return util.Roundup(v, stride) }
	if delta >= mem.SuperSize {
		stride = mem.SuperSize
		useSuper = true
	}

	start := roundFn(oldSz)
	end := start + roundFn(delta)

	for a := start; a < end; a += stride {
		var pa mem.PA
		var ok bool
		if useSuper {
			pa, ok = alloc.Alloc2M()
		} else {
			pa, ok = alloc.Alloc4K()
		}
		if !ok {
			Shrink(alloc, root, a, start)
			return 0
		}
		if err := MapRange(alloc, root, useSuper, a, stride, pa, FlagR|FlagU|extraPerm); err != 0 {
			if useSuper {
				alloc.Free2M(pa)
			} else {
				alloc.Free4K(pa)
			}
			Shrink(alloc, root, a, start)
			return 0
		}
	}
	return end
}

// Shrink deallocates user pages to bring the process size from oldSz
// down to newSz; it is a no-op when newSz >= oldSz. The unmapped range
// is always expressed in base pages since it may span granularities
// installed by earlier Grow calls; UnmapRange's hole-skip handles the
// superpage slack.
func Shrink(alloc mem.FrameAllocator, root mem.PA, oldSz, newSz uintptr) uintptr {
	if newSz >= oldSz {
		return oldSz
	}
	roundOld := util.Roundup(oldSz, uintptr(mem.FrameSize))
	roundNew := util.Roundup(newSz, uintptr(mem.FrameSize))
	if roundNew < roundOld {
		npages := uint64(roundOld-roundNew) / mem.FrameSize
		UnmapRange(alloc, root, roundNew, npages, true)
	}
	return newSz
}
