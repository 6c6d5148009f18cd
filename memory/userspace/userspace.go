// Per-process user-space page tables
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package userspace implements TinyOS's user-space manager: up to 32
// per-process page tables, each with its own ASID and a bounded VMA list,
// with at most one table active (programmed into TTBR0) at a time.
package userspace

import (
	"github.com/tinyos/tinyos/arm64"
	"github.com/tinyos/tinyos/kernel"
	"github.com/tinyos/tinyos/memory/layout"
	"github.com/tinyos/tinyos/memory/pte"
)

const (
	// maxTables is the fixed capacity of the user-space manager.
	maxTables = 32

	// maxVMAs bounds the VMA list owned by a single table.
	maxVMAs = 16
)

// hardware hooks, overridden by tests.
var (
	writeTTBR0Fn       = arm64.WriteTTBR0
	invalidateASIDFn   = arm64.InvalidateTLBASID
)

// VMAType tags the purpose of a virtual memory area.
type VMAType int

const (
	Code VMAType = iota
	Data
	Heap
	Stack
	Shared
	MmapFile
	MmapAnon
)

func (t VMAType) String() string {
	switch t {
	case Code:
		return "code"
	case Data:
		return "data"
	case Heap:
		return "heap"
	case Stack:
		return "stack"
	case Shared:
		return "shared"
	case MmapFile:
		return "mmap-file"
	default:
		return "mmap-anon"
	}
}

// VMA is a single virtual memory area within a process's address space.
type VMA struct {
	Start, End  uint64
	Type        VMAType
	Region      pte.RegionType
	PhysBase    uint64
	Mapped      bool
	MappedPages uint32
}

type procTable struct {
	inUse      bool
	processID  uint32
	asid       uint16
	l0PhysAddr uint64
	isActive   bool

	vmas     [maxVMAs]VMA
	vmaCount int

	mappedPages     uint32
	allocatedVMSize uint64
}

// Manager is TinyOS's user-space page table manager.
type Manager struct {
	tables      [maxTables]procTable
	nextASID    uint16
	activeIndex int
}

// New constructs an empty Manager with no active table and the ASID
// allocator primed to hand out 1 first.
func New() *Manager {
	return &Manager{nextASID: 1, activeIndex: -1}
}

func (m *Manager) allocASID() uint16 {
	asid := m.nextASID
	next := m.nextASID + 1
	if next == 0 {
		next = 1
	}
	m.nextASID = next
	return asid
}

// CreateTable allocates a slot for processID rooted at l0PhysAddr and
// assigns it the next monotonic ASID.
func (m *Manager) CreateTable(processID uint32, l0PhysAddr uint64) (int, *kernel.Error) {
	for i := range m.tables {
		if !m.tables[i].inUse {
			m.tables[i] = procTable{
				inUse:      true,
				processID:  processID,
				asid:       m.allocASID(),
				l0PhysAddr: l0PhysAddr,
			}
			return i, nil
		}
	}
	return -1, kernel.ErrNoAvailableSlots
}

func (m *Manager) table(idx int) (*procTable, *kernel.Error) {
	if idx < 0 || idx >= maxTables || !m.tables[idx].inUse {
		return nil, kernel.ErrProcessNotFound
	}
	return &m.tables[idx], nil
}

// ASID returns the ASID assigned to the table at idx.
func (m *Manager) ASID(idx int) (uint16, *kernel.Error) {
	t, err := m.table(idx)
	if err != nil {
		return 0, err
	}
	return t.asid, nil
}

// ActivateTable programs TTBR0 with the table's L0 physical address and
// invalidates the TLB for its ASID, deactivating any previously active
// table first.
func (m *Manager) ActivateTable(idx int) *kernel.Error {
	t, err := m.table(idx)
	if err != nil {
		return err
	}

	if m.activeIndex >= 0 {
		m.tables[m.activeIndex].isActive = false
	}

	t.isActive = true
	m.activeIndex = idx

	writeTTBR0Fn(t.l0PhysAddr)
	invalidateASIDFn(uint64(t.asid))

	return nil
}

// DeactivateActive clears the active table, if any, without touching its
// slot.
func (m *Manager) DeactivateActive() {
	if m.activeIndex < 0 {
		return
	}
	m.tables[m.activeIndex].isActive = false
	m.activeIndex = -1
}

// DestroyTable deactivates the table at idx if it is active, then frees its
// slot. The ASID is not reused.
func (m *Manager) DestroyTable(idx int) *kernel.Error {
	if _, err := m.table(idx); err != nil {
		return err
	}
	if m.activeIndex == idx {
		m.DeactivateActive()
	}
	m.tables[idx] = procTable{}
	return nil
}

// AddVMA aligns [start, start+size) to 4 KiB, requires it to lie within the
// user half of the address space, rejects overlap with any existing VMA on
// the table, and appends it.
func (m *Manager) AddVMA(idx int, start, size uint64, vtype VMAType, region pte.RegionType) (int, *kernel.Error) {
	t, err := m.table(idx)
	if err != nil {
		return -1, err
	}

	alignedStart := start &^ (layout.PageSize - 1)
	alignedEnd := (start + size + layout.PageSize - 1) &^ (layout.PageSize - 1)

	if alignedEnd > layout.UserSpaceSize {
		return -1, kernel.ErrOutsideUserSpace
	}

	for i := 0; i < t.vmaCount; i++ {
		existing := t.vmas[i]
		if alignedStart < existing.End && existing.Start < alignedEnd {
			return -1, kernel.ErrVMAOverlap
		}
	}

	if t.vmaCount >= maxVMAs {
		return -1, kernel.ErrNoAvailableSlots
	}

	t.vmas[t.vmaCount] = VMA{Start: alignedStart, End: alignedEnd, Type: vtype, Region: region}
	t.vmaCount++
	t.allocatedVMSize += alignedEnd - alignedStart

	return t.vmaCount - 1, nil
}

// MapVMA records the physical base for the VMA at vmaIndex and updates the
// table's mapped-page count. It does not write any page-table entry; the
// mapping exists only in the VMA list that Translate walks.
func (m *Manager) MapVMA(idx, vmaIndex int, pa uint64) *kernel.Error {
	t, err := m.table(idx)
	if err != nil {
		return err
	}
	if vmaIndex < 0 || vmaIndex >= t.vmaCount {
		return kernel.ErrVMANotFound
	}

	v := &t.vmas[vmaIndex]
	if v.Mapped {
		return kernel.ErrVMAAlreadyMapped
	}

	pages := uint32((v.End - v.Start) / layout.PageSize)
	v.PhysBase = pa
	v.Mapped = true
	v.MappedPages = pages
	t.mappedPages += pages

	return nil
}

// Translate walks the table's VMA list for containment and adds the
// in-VMA offset to its physical base.
func (m *Manager) Translate(idx int, va uint64) (uint64, *kernel.Error) {
	t, err := m.table(idx)
	if err != nil {
		return 0, err
	}

	for i := 0; i < t.vmaCount; i++ {
		v := t.vmas[i]
		if va >= v.Start && va < v.End {
			if !v.Mapped {
				return 0, kernel.ErrVMANotMapped
			}
			return v.PhysBase + (va - v.Start), nil
		}
	}

	return 0, kernel.ErrVMANotFound
}

// FindVMA returns the kind and owning process of the VMA containing va in
// the currently active table, if any. This is the lookup
// kernel/mmufault's stack-growth dispatch relies on.
func (m *Manager) FindVMA(va uint64) (kind string, procID uint32, ok bool) {
	if m.activeIndex < 0 {
		return "", 0, false
	}

	t := &m.tables[m.activeIndex]
	for i := 0; i < t.vmaCount; i++ {
		v := t.vmas[i]
		if va >= v.Start && va < v.End {
			return v.Type.String(), t.processID, true
		}
	}

	return "", 0, false
}

// MappedPages reports the number of mapped pages for the table at idx.
func (m *Manager) MappedPages(idx int) (uint32, *kernel.Error) {
	t, err := m.table(idx)
	if err != nil {
		return 0, err
	}
	return t.mappedPages, nil
}
