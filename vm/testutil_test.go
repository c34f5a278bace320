package vm

import "sv39vm/mem"

// limitedAlloc wraps a *mem.Arena and starts failing 4K/2M allocations
// once the given limits are exhausted, letting tests exercise the
// rollback paths in WalkAlloc/MapRange/Grow/CopyAddressSpace the way
// gopher-os's vmm tests swap in a failing allocFn.
type limitedAlloc struct {
	*mem.Arena
	n4K, n2M     int
	limit4K      int
	limit2M      int
}

func newLimitedAlloc(minBytes, limit4K, limit2M int) *limitedAlloc {
	return &limitedAlloc{Arena: mem.NewArena(minBytes), limit4K: limit4K, limit2M: limit2M}
}

func (l *limitedAlloc) Alloc4K() (mem.PA, bool) {
	if l.limit4K >= 0 && l.n4K >= l.limit4K {
		return 0, false
	}
	l.n4K++
	return l.Arena.Alloc4K()
}

func (l *limitedAlloc) Alloc2M() (mem.PA, bool) {
	if l.limit2M >= 0 && l.n2M >= l.limit2M {
		return 0, false
	}
	l.n2M++
	return l.Arena.Alloc2M()
}
