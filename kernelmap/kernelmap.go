// Package kernelmap builds the kernel's identity-mapped page table and
// installs it into the translation register exactly once, the way
// xv6's kvmmake/kvminit/kvminithart do and biscuit's Dmap_init does
// (a "have we done this yet" guard around a hardware register write
// bracketed by fences). Here the guard lives in an Installer value,
// not in package-level state.
package kernelmap

import (
	"sync"

	"sv39vm/csr"
	"sv39vm/defs"
	"sv39vm/mem"
	"sv39vm/vm"
)

// KernelStackMapper is the process-table collaborator spec.md §4.7
// delegates per-process kernel stack mapping to. It is out of scope
// for this subsystem (spec.md §1); NullStackMapper is the default used
// whenever no process table exists yet (boot, and every test here
// that does not exercise stack mapping itself).
type KernelStackMapper interface {
	MapKernelStacks(alloc mem.FrameAllocator, root mem.PA) defs.Err_t
}

// NullStackMapper maps no kernel stacks at all.
type NullStackMapper struct{}

// MapKernelStacks is a no-op.
func (NullStackMapper) MapKernelStacks(mem.FrameAllocator, mem.PA) defs.Err_t {
	return defs.EOK
}

// Config describes the physical layout the kernel map must cover.
// There is no real MMIO bus or linker script behind these fields in
// this repository — callers (boot code, or a test) supply whatever
// addresses their simulated arena and device stand-ins use.
type Config struct {
	UART0        mem.PA
	VIRTIO0      mem.PA
	PLIC         mem.PA
	KernBase     mem.PA // start of kernel text
	TextEnd      mem.PA // end of kernel text / start of kernel data+RAM
	PhysTop      mem.PA // end of kernel-visible RAM
	TrampolineBy mem.PA // physical frame backing the trampoline page
}

// Build constructs a kernel root whose identity map covers UART and
// virtio MMIO, the interrupt controller, kernel text (R|X), kernel
// data and the remaining usable RAM (R|W), and the trampoline page
// mapped at the architectural highest virtual address (R|X), then
// delegates per-process kernel stack mapping to stacks.
func Build(alloc mem.FrameAllocator, cfg Config, stacks KernelStackMapper) (mem.PA, defs.Err_t) {
	root, err := vm.CreatePageTable(alloc)
	if err != defs.EOK {
		return 0, err
	}

	mmio := []struct {
		pa   mem.PA
		perm vm.Flag
	}{
		{cfg.UART0, vm.FlagR | vm.FlagW},
		{cfg.VIRTIO0, vm.FlagR | vm.FlagW},
		{cfg.PLIC, vm.FlagR | vm.FlagW},
	}
	for _, m := range mmio {
		if err := vm.MapRange(alloc, root, false, uintptr(m.pa), mem.FrameSize, m.pa, m.perm); err != defs.EOK {
			return 0, err
		}
	}

	if err := vm.MapRange(alloc, root, false, uintptr(cfg.KernBase), uintptr(cfg.TextEnd-cfg.KernBase), cfg.KernBase, vm.FlagR|vm.FlagX); err != defs.EOK {
		return 0, err
	}
	if err := vm.MapRange(alloc, root, false, uintptr(cfg.TextEnd), uintptr(cfg.PhysTop-cfg.TextEnd), cfg.TextEnd, vm.FlagR|vm.FlagW); err != defs.EOK {
		return 0, err
	}
	if err := vm.MapRange(alloc, root, false, mem.Trampoline, mem.FrameSize, cfg.TrampolineBy, vm.FlagR|vm.FlagX); err != defs.EOK {
		return 0, err
	}

	if err := stacks.MapKernelStacks(alloc, root); err != defs.EOK {
		return 0, err
	}

	return root, defs.EOK
}

// Installer installs a kernel root into the translation register
// exactly once; it is bundled as a value (rather than package-level
// globals) so tests can create a fresh one instead of sharing process
// state.
type Installer struct {
	once      sync.Once
	Root      mem.PA
	Installed bool
}

// Install brackets the satp write with fences so the switch is atomic
// from the TLB's point of view (spec.md §4.7/§5). Subsequent calls are
// no-ops: the kernel root is installed once, at boot, and never again.
func (ki *Installer) Install(root mem.PA) {
	ki.once.Do(func() {
		csr.FenceVMA()
		csr.WriteSATP(csr.EncodeRoot(root))
		csr.FenceVMA()
		ki.Root = root
		ki.Installed = true
	})
}
