// Raspberry Pi 4/5 physical memory layout
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package layout defines the fixed physical regions of the TinyOS memory
// map: the kernel image, the managed heap, the page-table arena carved from
// it, and the peripheral MMIO window. Every other memory package is built on
// top of these constants; none of them are computed at runtime.
package layout

const (
	// KernelStart and KernelEnd bound the loaded kernel image.
	KernelStart = 0x80000
	KernelEnd   = 0x100000

	// HeapStart and HeapEnd bound the managed heap from which the block
	// allocator carves frames. HeapSize is 4 MiB.
	HeapStart = 0x100000
	HeapEnd   = 0x500000
	HeapSize  = HeapEnd - HeapStart

	// BlockSize is the physical allocation granule of the block allocator.
	BlockSize = 64

	// TotalBlocks is the number of BlockSize-sized frames the heap holds.
	TotalBlocks = HeapSize / BlockSize

	// PageTableArenaSize is the slice of the top of the heap reserved for
	// translation tables (L1 kernel root, L1 user root, and any
	// subsequently allocated tables).
	PageTableArenaSize = 64 * 1024
	PageTableArenaStart = HeapEnd - PageTableArenaSize

	// PeripheralBase and PeripheralSize bound the Device-mapped MMIO
	// window shared by all peripherals on BCM2711/BCM2712.
	PeripheralBase = 0xFE000000
	PeripheralSize = 0x01000000

	// Fixed peripheral MMIO bases, per the external boot contract.
	UARTBase  = 0xFE201000
	GPIOBase  = 0xFE200000
	TimerBase = 0xFE003000

	// GICDBase and GICRBase are the GICv3 distributor and redistributor
	// absolute addresses (GIC-400 integration on BCM2711/BCM2712, outside
	// the 0xFE000000 legacy peripheral window covered by PeripheralSize).
	GICDBase = 0xFF841000
	GICRBase = 0xFF842000

	// PageSize is the native MMU page granule (4 KiB) used throughout
	// the user-space and lazy-allocation subsystems, even though the
	// VMM's own initial mappings operate on 2 MiB L1 blocks.
	PageSize = 4096

	// BlockMappingSize is the size of a single L1 block mapping.
	BlockMappingSize = 2 * 1024 * 1024

	// UserSpaceSize is the size of the low half of the 48-bit virtual
	// address space available to TTBR0 mappings (2^47).
	UserSpaceSize = 1 << 47
)
