// Interactive shell surface over the memory core
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package shell is the only consumer allowed to format memory-core
// diagnostics for the operator console. Every function here is a thin
// wrapper around kernel/core: it locks the relevant singleton, reads or
// mutates it, and returns a small struct or a plain error string. No
// allocation-path logic lives in this package; it exists so that the core
// itself never has to know how to print.
package shell

import (
	"github.com/tinyos/tinyos/kernel/core"
	"github.com/tinyos/tinyos/memory/block"
	"github.com/tinyos/tinyos/memory/cow"
	"github.com/tinyos/tinyos/memory/dynmem"
	"github.com/tinyos/tinyos/memory/userspace"
	"github.com/tinyos/tinyos/memory/vmm"
)

// MemoryStatus summarizes the block allocator and VMM state for the
// "meminfo" shell command.
type MemoryStatus struct {
	block.Stats
	MMUEnabled bool
}

// Status reports allocator occupancy and whether the MMU is currently
// enabled.
func Status() MemoryStatus {
	var status MemoryStatus

	core.WithBlockAllocator(func(a *block.Allocator) {
		status.Stats = a.Stats()
	})
	core.WithVMM(func(v *vmm.VMM) {
		status.MMUEnabled = v.IsMMUEnabled()
	})

	return status
}

// EnableMMU turns stage-1 translation on.
func EnableMMU() {
	core.WithVMM(func(v *vmm.VMM) { v.EnableMMU() })
}

// DisableMMU turns stage-1 translation off.
func DisableMMU() {
	core.WithVMM(func(v *vmm.VMM) { v.DisableMMU() })
}

// MMUEnabled reports whether stage-1 translation is currently on.
func MMUEnabled() bool {
	var enabled bool
	core.WithVMM(func(v *vmm.VMM) { enabled = v.IsMMUEnabled() })
	return enabled
}

// Translate resolves a virtual address through the active VMM root table.
func Translate(va uint64) (uint64, error) {
	var pa uint64
	var outErr error

	core.WithVMM(func(v *vmm.VMM) {
		resolved, err := v.Translate(va)
		if err != nil {
			outErr = err
			return
		}
		pa = resolved
	})

	return pa, outErr
}

// FlushTLB invalidates every TLB entry.
func FlushTLB() {
	core.WithVMM(func(v *vmm.VMM) { v.InvalidateTLB() })
}

// COWDiagnostics reports the reference count and protection state of the
// COW record covering the frame at pa, if any.
type COWDiagnostics struct {
	Found     bool
	RefCount  int
	Protected bool
}

// COWStatus inspects the COW record for the frame at pa.
func COWStatus(pa uint64) COWDiagnostics {
	var diag COWDiagnostics

	core.WithCOWManager(func(m *cow.Manager) {
		refCount, ok := m.RefCount(pa)
		if !ok {
			return
		}
		protected, _ := m.IsCOW(pa)

		diag.Found = true
		diag.RefCount = refCount
		diag.Protected = protected
	})

	return diag
}

// ProcessMemory reports the mapped-page count of a process's page table,
// addressed by the table index returned from creating it.
func ProcessMemory(tableIndex int) (uint32, error) {
	var pages uint32
	var outErr error

	core.WithUserSpaceManager(func(m *userspace.Manager) {
		n, err := m.MappedPages(tableIndex)
		if err != nil {
			outErr = err
			return
		}
		pages = n
	})

	return pages, outErr
}

// DynamicMemoryCounters summarizes free memory and the pressure level it
// classifies to, for the "dynmeminfo" shell command.
type DynamicMemoryCounters struct {
	FreeBytes     uint64
	PressureLevel string
}

// DynamicMemoryStatus reports current free bytes and the pressure level
// that classification currently assigns them.
func DynamicMemoryStatus() DynamicMemoryCounters {
	var counters DynamicMemoryCounters

	core.WithBlockAllocator(func(a *block.Allocator) {
		counters.FreeBytes = a.Stats().FreeBytes
	})
	counters.PressureLevel = dynmem.ClassifyPressure(counters.FreeBytes).String()

	return counters
}

// StackSize reports the current size of the dynamic stack identified by
// id.
func StackSize(id uint32) (uint64, error) {
	var size uint64
	var outErr error

	core.WithDynamicMemoryManager(func(d *core.DynamicMemoryManager) {
		n, err := d.Stacks.CurrentSize(id)
		if err != nil {
			outErr = err
			return
		}
		size = n
	})

	return size, outErr
}
