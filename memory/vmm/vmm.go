// ARM64 stage-1 virtual memory manager
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package vmm implements TinyOS's virtual memory manager: the two L1 root
// tables (kernel/TTBR1 and user/TTBR0), 2 MiB block-granular map/unmap,
// MMU enable/disable, and address translation.
//
// Register-level hardware access goes through package arm64 by way of a
// small set of package-level function variables (var writeMAIRFn =
// arm64.WriteMAIR, and so on) so
// the map/unmap/translate logic can be exercised by host-side tests
// without executing MSR instructions that are only legal at EL1 on real
// hardware.
package vmm

import (
	"github.com/tinyos/tinyos/arm64"
	"github.com/tinyos/tinyos/kernel"
	"github.com/tinyos/tinyos/memory/layout"
	"github.com/tinyos/tinyos/memory/pte"
)

const (
	l1IndexMask  = 0x1FF
	l1IndexShift = 21
	blockOffsetMask = layout.BlockMappingSize - 1

	// MAIR_EL1 attribute-table byte values, indexed by pte.MemoryAttribute.
	mairNormal   = pte.MAIRNormal
	mairDevice   = pte.MAIRDevice
	mairNormalNC = pte.MAIRNormalNC
)

// hardware hooks, overridden by tests.
var (
	writeMAIRFn      = arm64.WriteMAIR
	writeTCRFn       = arm64.WriteTCR
	writeTTBR0Fn     = arm64.WriteTTBR0
	writeTTBR1Fn     = arm64.WriteTTBR1
	enableMMUBitFn   = arm64.EnableMMUBit
	disableMMUBitFn  = arm64.DisableMMUBit
	barrierFn        = arm64.Barrier
	invalidateTLBFn  = arm64.InvalidateTLBAll
)

// VMM is TinyOS's virtual memory manager: two L1 root tables and the
// software-tracked MMU-enabled flag.
type VMM struct {
	kernelTable pte.Table
	userTable   pte.Table

	// KernelTablePhys and UserTablePhys are the arena addresses assigned
	// to each root table; they are reserved from the top of the heap at
	// Init and are the values programmed into TTBR1/TTBR0.
	KernelTablePhys uint64
	UserTablePhys   uint64

	enabled bool
}

// New constructs a VMM whose root tables live at the fixed arena offsets
// carved from the top of the heap (layout.PageTableArenaStart).
func New() *VMM {
	return &VMM{
		KernelTablePhys: uint64(layout.PageTableArenaStart),
		UserTablePhys:   uint64(layout.PageTableArenaStart + 4096),
	}
}

// Init clears both L1 tables and installs the initial identity mapping:
// kernel image as KernelCode/Normal, kernel heap as KernelData/Normal, and
// 16 MiB of peripheral space as Device. The kernel image and heap regions
// are widened to the enclosing 2 MiB blocks; where they share a block, the
// later heap mapping overwrites the kernel image entry.
func (v *VMM) Init() *kernel.Error {
	v.kernelTable.Clear()
	v.userTable.Clear()

	kernelBase := uint64(layout.KernelStart) &^ blockOffsetMask
	if err := v.MapRegion(
		kernelBase, kernelBase,
		roundUpBlock(uint64(layout.KernelEnd)-kernelBase),
		pte.Normal, pte.KernelCode, true,
	); err != nil {
		return err
	}

	heapBase := uint64(layout.HeapStart) &^ blockOffsetMask
	if err := v.MapRegion(
		heapBase, heapBase,
		roundUpBlock(uint64(layout.HeapEnd)-heapBase),
		pte.Normal, pte.KernelData, true,
	); err != nil {
		return err
	}

	return v.MapRegion(
		uint64(layout.PeripheralBase), uint64(layout.PeripheralBase),
		16*1024*1024,
		pte.Device, pte.DeviceRegion, true,
	)
}

func roundUpBlock(size uint64) uint64 {
	return (size + layout.BlockMappingSize - 1) &^ (layout.BlockMappingSize - 1)
}

func l1Index(va uint64) int {
	return int((va >> l1IndexShift) & l1IndexMask)
}

// MapRegion writes blocks = ceil(size / 2 MiB) consecutive L1 block
// entries starting at the index derived from va, into the kernel or user
// table per isKernel. va, pa and size must be 2 MiB-aligned.
func (v *VMM) MapRegion(va, pa, size uint64, attr pte.MemoryAttribute, region pte.RegionType, isKernel bool) *kernel.Error {
	if size == 0 || size%layout.BlockMappingSize != 0 {
		return kernel.ErrUnalignedRegion
	}
	if va%layout.BlockMappingSize != 0 || pa%layout.BlockMappingSize != 0 {
		return kernel.ErrUnalignedRegion
	}

	table := v.tableFor(isKernel)
	blocks := size / layout.BlockMappingSize
	baseIndex := l1Index(va)

	for i := uint64(0); i < blocks; i++ {
		idx := baseIndex + int(i)
		if idx >= pte.TableEntries {
			return kernel.ErrInvalidTableIndex
		}
		entry := pte.NewBlockPTE(pa+i*layout.BlockMappingSize, attr, region)
		if err := table.SetEntry(idx, entry); err != nil {
			return err
		}
	}

	return nil
}

// UnmapRegion invalidates every 2 MiB slot covered by [va, va+size), flushes
// both tables to memory, and invalidates the entire TLB.
func (v *VMM) UnmapRegion(va, size uint64) *kernel.Error {
	if size == 0 || size%layout.BlockMappingSize != 0 {
		return kernel.ErrUnalignedRegion
	}

	table := v.tableForVA(va)
	blocks := size / layout.BlockMappingSize
	baseIndex := l1Index(va)

	for i := uint64(0); i < blocks; i++ {
		idx := baseIndex + int(i)
		if idx >= pte.TableEntries {
			return kernel.ErrInvalidTableIndex
		}
		if err := table.SetEntry(idx, pte.PTE{}); err != nil {
			return err
		}
	}

	barrierFn()
	invalidateTLBFn()

	return nil
}

// tableFor selects the kernel or user root table explicitly.
func (v *VMM) tableFor(isKernel bool) *pte.Table {
	if isKernel {
		return &v.kernelTable
	}
	return &v.userTable
}

// tableForVA selects the root table by the sign of bit 63 of va: kernel
// addresses have bit 63 set by ARM64 convention.
func (v *VMM) tableForVA(va uint64) *pte.Table {
	return v.tableFor(va&(1<<63) != 0)
}

// EnableMMU programs MAIR/TCR/TTBR1/TTBR0, barriers, and sets SCTLR_EL1.M.
// Idempotent.
func (v *VMM) EnableMMU() {
	mair := uint64(mairNormal) | uint64(mairDevice)<<8 | uint64(mairNormalNC)<<16
	writeMAIRFn(mair)
	writeTCRFn(tcrValue())
	writeTTBR1Fn(v.KernelTablePhys)
	writeTTBR0Fn(v.UserTablePhys)

	barrierFn()
	enableMMUBitFn()
	barrierFn()

	v.enabled = true
}

// tcrValue composes TCR_EL1 for a 48-bit VA space on both TTBR0 and TTBR1,
// 4 KiB granule on both, and 48-bit IPS, with both table walks enabled.
func tcrValue() uint64 {
	const (
		t0sz = 16 // 48-bit VA: 64-16
		t1sz = 16
		tg0_4k  = 0b00 << 14
		tg1_4k  = 0b10 << 30
		ips_48  = 0b101 << 32
		epd0_en = 0 << 7
		epd1_en = 0 << 23
	)
	return uint64(t0sz) | uint64(t1sz)<<16 | tg0_4k | tg1_4k | ips_48
}

// DisableMMU clears SCTLR_EL1.M and re-barriers. Idempotent.
func (v *VMM) DisableMMU() {
	barrierFn()
	disableMMUBitFn()
	barrierFn()

	v.enabled = false
}

// IsMMUEnabled reports the software-tracked enabled flag, updated alongside
// every EnableMMU/DisableMMU call.
func (v *VMM) IsMMUEnabled() bool {
	return v.enabled
}

// Translate resolves a virtual address through the active root table. If
// the MMU is disabled it returns va unchanged.
func (v *VMM) Translate(va uint64) (uint64, *kernel.Error) {
	if !v.enabled {
		return va, nil
	}

	table := v.tableForVA(va)
	idx := l1Index(va)

	entry, err := table.Entry(idx)
	if err != nil {
		return 0, err
	}
	if !entry.IsValid() || entry.Type() != pte.Block {
		return 0, kernel.ErrTranslationFailed
	}

	return (entry.PhysAddr() &^ blockOffsetMask) | (va & blockOffsetMask), nil
}

// InvalidateTLB issues an all-entries EL1 TLB invalidation with barriers.
func (v *VMM) InvalidateTLB() {
	invalidateTLBFn()
}
