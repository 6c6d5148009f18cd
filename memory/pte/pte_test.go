package pte

import "testing"

func TestNewBlockPTERoundTrips(t *testing.T) {
	e := NewBlockPTE(0xA0000000, Normal, UserData)

	if !e.IsValid() {
		t.Fatal("block entry reports invalid")
	}
	if e.Type() != Block {
		t.Fatalf("Type() = %v, want Block", e.Type())
	}
	if e.PhysAddr() != 0xA0000000 {
		t.Fatalf("PhysAddr() = %#x, want 0xA0000000", e.PhysAddr())
	}
}

func TestNewTablePTEHasNoPermissionBits(t *testing.T) {
	e := NewTablePTE(0x180000)

	if e.Type() != TableOrPage {
		t.Fatalf("Type() = %v, want TableOrPage", e.Type())
	}
	if e.Raw&(uxnBit|pxnBit) != 0 {
		t.Fatal("table entry carries permission bits, which belong only on leaves")
	}
}

func TestInvalidEntryZeroValue(t *testing.T) {
	var e PTE
	if e.IsValid() {
		t.Fatal("zero-value entry reports valid")
	}
	if e.Type() != Invalid {
		t.Fatalf("Type() = %v, want Invalid", e.Type())
	}
}

func TestTableSetEntryBounds(t *testing.T) {
	var tab Table

	if err := tab.SetEntry(-1, PTE{}); err == nil {
		t.Fatal("SetEntry accepted a negative index")
	}
	if err := tab.SetEntry(TableEntries, PTE{}); err == nil {
		t.Fatal("SetEntry accepted an out-of-range index")
	}

	e := NewBlockPTE(0x1000, Normal, KernelData)
	if err := tab.SetEntry(5, e); err != nil {
		t.Fatalf("SetEntry(5, ...) failed: %v", err)
	}

	got, err := tab.Entry(5)
	if err != nil {
		t.Fatalf("Entry(5) failed: %v", err)
	}
	if got.Raw != e.Raw {
		t.Fatalf("Entry(5) = %#x, want %#x", got.Raw, e.Raw)
	}
}

func TestDeviceRegionIsPrivilegedNonExecutable(t *testing.T) {
	e := NewBlockPTE(0xFE201000, Device, DeviceRegion)
	if e.Raw&uxnBit == 0 || e.Raw&pxnBit == 0 {
		t.Fatal("device region entry must set both UXN and PXN")
	}
}

func TestKernelCodeIsEL1ReadOnlyWithNoEL0Access(t *testing.T) {
	e := NewBlockPTE(0x80000, Normal, KernelCode)

	if ap := (e.Raw >> 6) & 0x3; ap != 0b10 {
		t.Fatalf("AP[2:1] = %02b, want 10 (EL1 read-only, no EL0 access)", ap)
	}
	if e.Raw&uxnBit != 0 {
		t.Fatal("kernel code entry must leave UXN clear to remain executable")
	}
}

func TestUserCodeIsReadOnlyAndReachableFromEL0(t *testing.T) {
	e := NewBlockPTE(0x200000, Normal, UserCode)

	if ap := (e.Raw >> 6) & 0x3; ap != 0b11 {
		t.Fatalf("AP[2:1] = %02b, want 11 (EL0/EL1 read-only)", ap)
	}
	if e.Raw&uxnBit != 0 {
		t.Fatal("user code entry must leave UXN clear to remain executable")
	}
}
