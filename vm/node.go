package vm

import (
	"unsafe"

	"sv39vm/mem"
)

// Node is a page-table node: a frame holding 512 PTE slots.
type Node [512]PTE

// nodeAt reinterprets the direct-mapped frame at pa as a page-table
// node, mirroring biscuit's Pg2bytes/pg2pmap unsafe-pointer casts
// between its Pg_t/Pmap_t/Bytepg_t views of the same frame.
func nodeAt(alloc mem.FrameAllocator, pa mem.PA) *Node {
	return (*Node)(unsafe.Pointer(alloc.Dmap(pa)))
}

// newNode allocates a fresh, zeroed interior node frame.
func newNode(alloc mem.FrameAllocator) (mem.PA, *Node, bool) {
	pa, ok := alloc.Alloc4K()
	if !ok {
		return 0, nil, false
	}
	return pa, nodeAt(alloc, pa), true
}
