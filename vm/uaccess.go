package vm

import (
	"sv39vm/defs"
	"sv39vm/mem"
)

// leafAddr computes the physical address va resolves to within the
// leaf res describes, using the leaf's own granularity (FrameSize or
// SuperSize) to mask the offset. A fixed FrameSize-1 mask would
// silently wrap every 4 KiB inside a 2 MiB leaf instead of indexing
// across the whole region, so the mask width must track res.Kind.
func leafAddr(res WalkResult, va uintptr) mem.PA {
	base := PTEPfn(*res.Slot)
	if res.Kind == Leaf2M {
		return base + mem.PA(va&(mem.SuperSize-1))
	}
	return base + mem.PA(va&(mem.FrameSize-1))
}

// leafView returns the byte slice backing the whole leaf res describes.
func leafView(alloc mem.FrameAllocator, res WalkResult) []byte {
	base := PTEPfn(*res.Slot)
	if res.Kind == Leaf2M {
		pg := alloc.DmapSuper(base)
		return pg[:]
	}
	pg := alloc.Dmap(base)
	return pg[:]
}

// chunkRemaining returns how many bytes remain from va to the next
// FrameSize boundary; no single memory operation below crosses it,
// even when va lies inside a superpage leaf.
func chunkRemaining(va uintptr) uintptr {
	return mem.FrameSize - (va % mem.FrameSize)
}

// TranslateUser looks up va in root and returns the physical address
// it resolves to, or (0, false) unless the leaf is valid and
// user-accessible. Lack of U is treated as unmapped for the purposes
// of user-argument handling (spec.md §4.6).
func TranslateUser(alloc mem.FrameAllocator, root mem.PA, va uintptr) (mem.PA, bool) {
	if va >= mem.MaxVA {
		return 0, false
	}
	res, err := Walk(alloc, root, va)
	if err != defs.EOK || res.Kind == AbsentHole {
		return 0, false
	}
	if PTEFlags(*res.Slot)&FlagU == 0 {
		return 0, false
	}
	return leafAddr(res, va), true
}

// CopyOut copies src into the user address space at dstVA, chunked at
// FrameSize boundaries. Each chunk's leaf must exist and carry W —
// copying into read-only user text is rejected, matching xv6's
// "forbid copyout over read-only user text pages".
func CopyOut(alloc mem.FrameAllocator, root mem.PA, dstVA uintptr, src []byte) defs.Err_t {
	for len(src) > 0 {
		if dstVA >= mem.MaxVA {
			return defs.EFAULT
		}
		res, err := Walk(alloc, root, dstVA)
		if err != defs.EOK || res.Kind == AbsentHole {
			return defs.EFAULT
		}
		if PTEFlags(*res.Slot)&FlagW == 0 {
			return defs.EFAULT
		}

		pa := leafAddr(res, dstVA)
		view := leafView(alloc, res)
		var leafMask uintptr = mem.FrameSize - 1
		if res.Kind == Leaf2M {
			leafMask = mem.SuperSize - 1
		}
		off := uintptr(pa) & leafMask

		n := chunkRemaining(dstVA)
		if n > uintptr(len(src)) {
			n = uintptr(len(src))
		}
		copy(view[off:off+n], src[:n])

		src = src[n:]
		dstVA += n
	}
	return defs.EOK
}

// CopyIn copies len(dst) bytes from the user address space at srcVA
// into dst. It relies entirely on TranslateUser, which already
// enforces U, so no separate permission check is needed here.
func CopyIn(alloc mem.FrameAllocator, root mem.PA, dst []byte, srcVA uintptr) defs.Err_t {
	for len(dst) > 0 {
		pa, ok := TranslateUser(alloc, root, srcVA)
		if !ok {
			return defs.EFAULT
		}
		res, err := Walk(alloc, root, srcVA)
		if err != defs.EOK || res.Kind == AbsentHole {
			return defs.EFAULT
		}
		view := leafView(alloc, res)
		var leafMask uintptr = mem.FrameSize - 1
		if res.Kind == Leaf2M {
			leafMask = mem.SuperSize - 1
		}
		off := uintptr(pa) & leafMask

		n := chunkRemaining(srcVA)
		if n > uintptr(len(dst)) {
			n = uintptr(len(dst))
		}
		copy(dst[:n], view[off:off+n])

		dst = dst[n:]
		srcVA += n
	}
	return defs.EOK
}

// CopyInStr copies a NUL-terminated string from user memory at srcVA
// into dst, stopping at the first NUL byte or after max bytes,
// whichever comes first. It returns EOK iff a NUL was found within
// max bytes, in which case dst holds a NUL-terminated result;
// otherwise it returns EFAULT (unmapped page) or ENAMETOOLONG (max
// exhausted without a NUL).
func CopyInStr(alloc mem.FrameAllocator, root mem.PA, dst []byte, srcVA uintptr, max int) (int, defs.Err_t) {
	written := 0
	for max > 0 {
		pa, ok := TranslateUser(alloc, root, srcVA)
		if !ok {
			return written, defs.EFAULT
		}
		res, _ := Walk(alloc, root, srcVA)
		view := leafView(alloc, res)
		var leafMask uintptr = mem.FrameSize - 1
		if res.Kind == Leaf2M {
			leafMask = mem.SuperSize - 1
		}
		off := uintptr(pa) & leafMask

		n := int(chunkRemaining(srcVA))
		if n > max {
			n = max
		}

		for i := 0; i < n; i++ {
			c := view[int(off)+i]
			if written >= len(dst) {
				return written, defs.ENAMETOOLONG
			}
			dst[written] = c
			written++
			max--
			if c == 0 {
				return written, defs.EOK
			}
		}
		srcVA += uintptr(n)
	}
	return written, defs.ENAMETOOLONG
}
