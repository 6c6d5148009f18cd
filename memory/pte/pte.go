// ARM64 stage-1 page table entries
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pte models the ARM64 stage-1 page table entry as a tagged 64-bit
// word: a sum type over {Invalid, Block, TableOrPage} recovered from the
// low two bits. Bit layout follows the ARMv8-A stage-1 descriptor format:
// AP[2:1] at bits[7:6], PXN at bit 53, UXN at bit 54, MAIR index at
// bits[4:2], access flag at bit 10, physical base at bits[47:12].
package pte

import "github.com/tinyos/tinyos/kernel"

// MemoryAttribute indexes the MAIR_EL1 attribute table.
type MemoryAttribute int

const (
	Normal MemoryAttribute = iota
	Device
	NormalNC
)

// MAIR_EL1 attribute encodings for the three supported indices.
const (
	MAIRNormal   = 0b11111111
	MAIRDevice   = 0b00000100
	MAIRNormalNC = 0b01000100
)

// RegionType is the access-policy tag that, combined with MemoryAttribute,
// fully determines a PTE's permission bits.
type RegionType int

const (
	KernelCode RegionType = iota
	KernelData
	UserCode
	UserData
	DeviceRegion
	Shared
)

// PageType is the decoded low-bits tag of a PTE.
type PageType int

const (
	Invalid PageType = iota
	Block
	TableOrPage
)

const (
	physAddrMask = 0xFFFFFFFFF000
	accessFlag   = 1 << 10
	pxnBit       = 1 << 53
	uxnBit       = 1 << 54
)

// PTE is a single 64-bit ARM64 stage-1 translation table entry.
type PTE struct {
	Raw uint64
}

// NewBlockPTE composes a level-1/2 block entry.
func NewBlockPTE(phys uint64, attr MemoryAttribute, region RegionType) PTE {
	entry := phys & physAddrMask
	entry |= uint64(Block)
	entry |= accessPermissions(region)
	entry |= memoryAttributeBits(attr)
	entry |= accessFlag
	return PTE{Raw: entry}
}

// NewPagePTE composes an L3 page entry; identical to a block entry except
// for the low two bits, which read 11 (interpreted as a page at L3).
func NewPagePTE(phys uint64, attr MemoryAttribute, region RegionType) PTE {
	entry := phys & physAddrMask
	entry |= 0b11
	entry |= accessPermissions(region)
	entry |= memoryAttributeBits(attr)
	entry |= accessFlag
	return PTE{Raw: entry}
}

// NewTablePTE composes an entry pointing at the next-level table.
// Permissions live at the leaf, not on table entries.
func NewTablePTE(nextTablePhys uint64) PTE {
	entry := nextTablePhys & physAddrMask
	entry |= 0b11
	entry |= accessFlag
	return PTE{Raw: entry}
}

// IsValid reports whether the entry's low bit is set.
func (e PTE) IsValid() bool {
	return e.Raw&0x1 != 0
}

// Type decodes the entry's low two bits.
func (e PTE) Type() PageType {
	switch e.Raw & 0x3 {
	case 0b00:
		return Invalid
	case 0b01:
		return Block
	case 0b11:
		return TableOrPage
	default:
		return Invalid
	}
}

// PhysAddr returns the physical base (block, page, or next-table address)
// held in bits [47:12].
func (e PTE) PhysAddr() uint64 {
	return e.Raw & physAddrMask
}

func accessPermissions(region RegionType) uint64 {
	switch region {
	case KernelCode:
		return (0b10 << 6) // EL1 read-only, no EL0 access, executable
	case KernelData:
		return 0 << 6 // EL1 read-write, no EL0 access, AP[2:1]=00
	case UserCode:
		return (0b11 << 6) // EL0/EL1 read-only, executable (UXN left clear)
	case UserData:
		return (0b01 << 6) | uxnBit
	case DeviceRegion:
		return pxnBit | uxnBit
	case Shared:
		return (0b01 << 6) | uxnBit
	default:
		return pxnBit | uxnBit
	}
}

func memoryAttributeBits(attr MemoryAttribute) uint64 {
	switch attr {
	case Normal:
		return 0 << 2
	case Device:
		return 1 << 2
	case NormalNC:
		return 2 << 2
	default:
		return 0 << 2
	}
}

// TableEntries is the fixed fan-out of a single translation table level.
const TableEntries = 512

// Table is a 512-entry, 4 KiB translation table. Its physical address is
// its identity: tables live in the arena carved out by the VMM and are
// addressed directly, never copied.
type Table struct {
	entries [TableEntries]PTE
}

// Entry returns the entry at index i.
func (t *Table) Entry(i int) (PTE, *kernel.Error) {
	if i < 0 || i >= TableEntries {
		return PTE{}, kernel.ErrInvalidTableIndex
	}
	return t.entries[i], nil
}

// SetEntry writes the entry at index i, bounds-checked to TableEntries.
func (t *Table) SetEntry(i int, e PTE) *kernel.Error {
	if i < 0 || i >= TableEntries {
		return kernel.ErrInvalidTableIndex
	}
	t.entries[i] = e
	return nil
}

// Clear resets every entry in the table to Invalid.
func (t *Table) Clear() {
	for i := range t.entries {
		t.entries[i] = PTE{}
	}
}
