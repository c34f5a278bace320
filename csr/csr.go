// Package csr stands in for the architecture register interface spec.md
// §6 consumes (fence_vma, write_satp). There is no real hart register
// file behind it: CurrentSATP simply records the last installed value
// so tests can observe that installation happened and was correctly bracketed by fences,
// the same way gopher-os keeps cpu.ReadCR2/cpu.FlushTLBEntry behind
// swappable function variables rather than inline assembly so that
// kernel-adjacent logic stays unit-testable.
package csr

import "sv39vm/mem"

// FenceCount counts calls to FenceVMA, for tests asserting that
// installation was bracketed by a fence on each side.
var FenceCount int

// CurrentSATP records the value last passed to WriteSATP. Zero means
// no root has ever been installed.
var CurrentSATP uint64

// satpModeSv39 is the mode field written into the encoded root value,
// matching Sv39's MODE=8 in the real register.
const satpModeSv39 = uint64(8) << 60

// FenceVMA models the sfence.vma instruction: it drains in-flight
// writes to page-table memory / invalidates stale TLB entries. It has
// no observable effect here beyond the call count.
func FenceVMA() {
	FenceCount++
}

// EncodeRoot packs a page-table root's physical frame number into the
// satp register encoding (MODE | PPN).
func EncodeRoot(root mem.PA) uint64 {
	return satpModeSv39 | (uint64(root) >> 12)
}

// WriteSATP installs the encoded root into the translation register.
// Callers must bracket this with FenceVMA before and after so the
// switch is atomic from the TLB's point of view (spec.md §4.7/§5).
func WriteSATP(encoded uint64) {
	CurrentSATP = encoded
}
