package userspace

import (
	"testing"

	"github.com/tinyos/tinyos/memory/layout"
	"github.com/tinyos/tinyos/memory/pte"
)

func withNoopHardware(t *testing.T) {
	t.Helper()

	origWrite, origInvalidate := writeTTBR0Fn, invalidateASIDFn
	writeTTBR0Fn = func(uint64) {}
	invalidateASIDFn = func(uint64) {}

	t.Cleanup(func() {
		writeTTBR0Fn, invalidateASIDFn = origWrite, origInvalidate
	})
}

func TestCreateTableAssignsMonotonicASIDSkippingZero(t *testing.T) {
	m := New()

	idx1, err := m.CreateTable(1, 0x180000)
	if err != nil {
		t.Fatalf("CreateTable(1) failed: %v", err)
	}
	asid1, _ := m.ASID(idx1)
	if asid1 != 1 {
		t.Fatalf("first ASID = %d, want 1", asid1)
	}

	idx2, _ := m.CreateTable(2, 0x181000)
	asid2, _ := m.ASID(idx2)
	if asid2 != 2 {
		t.Fatalf("second ASID = %d, want 2", asid2)
	}
}

func TestASIDWrapsSkippingZero(t *testing.T) {
	m := New()
	m.nextASID = 65535

	idx, _ := m.CreateTable(1, 0x180000)
	asid, _ := m.ASID(idx)
	if asid != 65535 {
		t.Fatalf("ASID = %d, want 65535", asid)
	}
	if m.nextASID != 1 {
		t.Fatalf("nextASID after wrap = %d, want 1", m.nextASID)
	}
}

func TestActivateTableDeactivatesPrevious(t *testing.T) {
	withNoopHardware(t)

	m := New()
	idx1, _ := m.CreateTable(1, 0x180000)
	idx2, _ := m.CreateTable(2, 0x181000)

	if err := m.ActivateTable(idx1); err != nil {
		t.Fatalf("ActivateTable(idx1) failed: %v", err)
	}
	if !m.tables[idx1].isActive {
		t.Fatal("table 1 not marked active")
	}

	if err := m.ActivateTable(idx2); err != nil {
		t.Fatalf("ActivateTable(idx2) failed: %v", err)
	}
	if m.tables[idx1].isActive {
		t.Fatal("table 1 remained active after table 2 was activated")
	}
	if !m.tables[idx2].isActive {
		t.Fatal("table 2 not marked active")
	}
}

func TestAddVMARejectsOverlap(t *testing.T) {
	m := New()
	idx, _ := m.CreateTable(1, 0x180000)

	if _, err := m.AddVMA(idx, 0x10000000, 0x2000, Data, pte.UserData); err != nil {
		t.Fatalf("first AddVMA failed: %v", err)
	}
	if _, err := m.AddVMA(idx, 0x10001000, 0x2000, Data, pte.UserData); err == nil {
		t.Fatal("AddVMA accepted an overlapping region")
	}
}

func TestAddVMARejectsOutsideUserSpace(t *testing.T) {
	m := New()
	idx, _ := m.CreateTable(1, 0x180000)

	if _, err := m.AddVMA(idx, layout.UserSpaceSize, 0x1000, Data, pte.UserData); err == nil {
		t.Fatal("AddVMA accepted a region outside the user half of the address space")
	}
}

func TestMapVMAAndTranslate(t *testing.T) {
	m := New()
	idx, _ := m.CreateTable(1, 0x180000)

	vmaIdx, err := m.AddVMA(idx, 0x20000000, 0x3000, Data, pte.UserData)
	if err != nil {
		t.Fatalf("AddVMA failed: %v", err)
	}

	if err := m.MapVMA(idx, vmaIdx, 0x90000000); err != nil {
		t.Fatalf("MapVMA failed: %v", err)
	}

	got, err := m.Translate(idx, 0x20000123)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if want := uint64(0x90000123); got != want {
		t.Fatalf("Translate() = %#x, want %#x", got, want)
	}
}

func TestTranslateUnmappedVMAFails(t *testing.T) {
	m := New()
	idx, _ := m.CreateTable(1, 0x180000)
	m.AddVMA(idx, 0x20000000, 0x3000, Data, pte.UserData)

	if _, err := m.Translate(idx, 0x20000123); err == nil {
		t.Fatal("Translate succeeded on an unmapped VMA")
	}
}

func TestFindVMALooksAtActiveTableOnly(t *testing.T) {
	withNoopHardware(t)

	m := New()
	idx, _ := m.CreateTable(42, 0x180000)
	m.AddVMA(idx, 0x7FFF0000, 0x10000, Stack, pte.UserData)

	if _, _, ok := m.FindVMA(0x7FFF1000); ok {
		t.Fatal("FindVMA found a VMA before its table was activated")
	}

	m.ActivateTable(idx)

	kind, procID, ok := m.FindVMA(0x7FFF1000)
	if !ok {
		t.Fatal("FindVMA did not find the stack VMA")
	}
	if kind != "stack" {
		t.Fatalf("kind = %q, want %q", kind, "stack")
	}
	if procID != 42 {
		t.Fatalf("procID = %d, want 42", procID)
	}
}

func TestDestroyTableDeactivatesFirst(t *testing.T) {
	withNoopHardware(t)

	m := New()
	idx, _ := m.CreateTable(1, 0x180000)
	m.ActivateTable(idx)

	if err := m.DestroyTable(idx); err != nil {
		t.Fatalf("DestroyTable failed: %v", err)
	}
	if m.activeIndex != -1 {
		t.Fatal("activeIndex not reset after destroying the active table")
	}
}
