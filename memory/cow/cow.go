// Copy-on-write page manager
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package cow implements TinyOS's copy-on-write manager: a bounded table of
// shared-frame records keyed by physical base address, reference-counted
// across the virtual mappings that share them.
package cow

import (
	"github.com/tinyos/tinyos/kernel"
	"github.com/tinyos/tinyos/memory/block"
	"github.com/tinyos/tinyos/memory/layout"
	"github.com/tinyos/tinyos/memory/pte"
)

const (
	// maxRecords is the fixed capacity of the COW table.
	maxRecords = 64

	// maxMappingsPerRecord bounds how many (virtual address, process)
	// pairs a single shared frame can track.
	maxMappingsPerRecord = 8

	// framePages is the number of block.BlockSize-granule frames that
	// make up one COW page.
	framePages = layout.PageSize / block.BlockSize
)

// Fault describes a page fault the caller believes may be COW-related.
type Fault struct {
	PA    uint64
	VA    uint64
	PID   uint32
	Write bool
}

type mapping struct {
	va  uint64
	pid uint32
}

type record struct {
	inUse    bool
	physAddr uint64
	refCount int
	isCOW    bool
	region   pte.RegionType

	mappings     [maxMappingsPerRecord]mapping
	mappingCount int
}

// AddressTranslator resolves a virtual address to its current physical
// mapping. Satisfied by *memory/vmm.VMM.
type AddressTranslator interface {
	Translate(va uint64) (uint64, *kernel.Error)
}

// Manager is TinyOS's copy-on-write table, backed by the physical block
// allocator for fresh-frame allocation on fault.
type Manager struct {
	frames     *block.Allocator
	translator AddressTranslator
	records    [maxRecords]record
}

// New constructs a Manager that allocates replacement frames through
// frames and resolves fault virtual addresses to physical records through
// translator.
func New(frames *block.Allocator, translator AddressTranslator) *Manager {
	return &Manager{frames: frames, translator: translator}
}

func (m *Manager) find(pa uint64) *record {
	for i := range m.records {
		if m.records[i].inUse && m.records[i].physAddr == pa {
			return &m.records[i]
		}
	}
	return nil
}

func (m *Manager) allocRecord(pa uint64, region pte.RegionType) *record {
	for i := range m.records {
		if !m.records[i].inUse {
			m.records[i] = record{inUse: true, physAddr: pa, region: region}
			return &m.records[i]
		}
	}
	return nil
}

// RegisterPage creates the record for pa on first use, or increments the
// existing record's reference count, appending (va, pid) to its mapping
// list. is_cow becomes true once ref_count reaches 2.
func (m *Manager) RegisterPage(pa, va uint64, region pte.RegionType, pid uint32) *kernel.Error {
	r := m.find(pa)
	if r == nil {
		r = m.allocRecord(pa, region)
		if r == nil {
			return kernel.ErrCOWTableFull
		}
	}

	if r.mappingCount >= maxMappingsPerRecord {
		return kernel.ErrCOWTableFull
	}

	r.mappings[r.mappingCount] = mapping{va: va, pid: pid}
	r.mappingCount++
	r.refCount++

	if r.refCount >= 2 {
		r.isCOW = true
	}

	return nil
}

// UnregisterPage decrements the record for pa, removing the (va, pid)
// mapping. is_cow clears when the count falls to 1; the record is deleted
// when the count reaches 0. The returned bool reports whether the record
// was removed.
func (m *Manager) UnregisterPage(pa, va uint64, pid uint32) (bool, *kernel.Error) {
	r := m.find(pa)
	if r == nil {
		return false, kernel.ErrCOWPageNotFound
	}

	for i := 0; i < r.mappingCount; i++ {
		if r.mappings[i].va == va && r.mappings[i].pid == pid {
			r.mappings[i] = r.mappings[r.mappingCount-1]
			r.mappingCount--
			break
		}
	}

	if r.refCount > 0 {
		r.refCount--
	}

	switch {
	case r.refCount == 0:
		*r = record{}
		return true, nil
	case r.refCount == 1:
		r.isCOW = false
	}

	return false, nil
}

// HandleCOWFault services a write fault on a COW-protected frame: it
// allocates a fresh frame, copies the source frame byte-for-byte, detaches
// (fault.VA, fault.PID) from the shared record, and registers the new frame
// for that same mapping under the original region type. The caller is
// responsible for repointing the page table at the returned address.
func (m *Manager) HandleCOWFault(fault Fault) (uint64, *kernel.Error) {
	r := m.find(fault.PA)
	if r == nil {
		return 0, kernel.ErrCOWPageNotFound
	}
	if !r.isCOW {
		return 0, kernel.ErrNotCOWProtected
	}
	if !fault.Write {
		return 0, kernel.ErrNotAWriteFault
	}

	region := r.region

	newAddr, ok := m.frames.AllocateBlocks(framePages)
	if !ok {
		return 0, kernel.ErrOutOfMemory
	}

	buf := make([]byte, layout.PageSize)
	m.frames.ReadAt(uintptr(fault.PA), buf)
	m.frames.WriteAt(newAddr, buf)

	if _, err := m.UnregisterPage(fault.PA, fault.VA, fault.PID); err != nil {
		return 0, err
	}
	if err := m.RegisterPage(uint64(newAddr), fault.VA, region, fault.PID); err != nil {
		return 0, err
	}

	return uint64(newAddr), nil
}

// ForceCOWProtection marks the record at pa as COW-protected regardless of
// its reference count. Administrative/diagnostic use only.
func (m *Manager) ForceCOWProtection(pa uint64) *kernel.Error {
	r := m.find(pa)
	if r == nil {
		return kernel.ErrCOWPageNotFound
	}
	r.isCOW = true
	return nil
}

// RemoveCOWProtection clears the COW flag on the record at pa without
// altering its reference count. Administrative/diagnostic use only.
func (m *Manager) RemoveCOWProtection(pa uint64) *kernel.Error {
	r := m.find(pa)
	if r == nil {
		return kernel.ErrCOWPageNotFound
	}
	r.isCOW = false
	return nil
}

// RefCount reports the reference count of the record at pa, for
// diagnostics and tests.
func (m *Manager) RefCount(pa uint64) (int, bool) {
	r := m.find(pa)
	if r == nil {
		return 0, false
	}
	return r.refCount, true
}

// IsCOW reports whether the record at pa is currently COW-protected.
func (m *Manager) IsCOW(pa uint64) (bool, bool) {
	r := m.find(pa)
	if r == nil {
		return false, false
	}
	return r.isCOW, true
}

// HandleFault implements kernel/mmufault.COWFaults: it resolves the
// faulting virtual address to its current physical mapping through the
// translator, aligns it down to its block-allocator frame, and looks up the
// COW record keyed by that frame address. Callers that
// already know the physical mapping should prefer HandleCOWFault
// directly; this method exists for wiring into the generic dispatcher.
func (m *Manager) HandleFault(va uint64) (bool, *kernel.Error) {
	if m.translator == nil {
		return false, kernel.ErrTranslationFailed
	}

	resolved, err := m.translator.Translate(va)
	if err != nil {
		return false, err
	}
	pa := resolved &^ (block.BlockSize - 1)

	r := m.find(pa)
	if r == nil || !r.isCOW {
		return false, nil
	}

	if _, err := m.HandleCOWFault(Fault{PA: pa, VA: va, Write: true}); err != nil {
		return false, err
	}
	return true, nil
}
