package vmm

import (
	"testing"

	"github.com/tinyos/tinyos/memory/layout"
	"github.com/tinyos/tinyos/memory/pte"
)

// withNoopHardware replaces the register-access hooks with no-ops for the
// duration of a test, restoring the real arm64-backed ones afterward.
func withNoopHardware(t *testing.T) {
	t.Helper()

	origMAIR, origTCR, origTTBR0, origTTBR1 := writeMAIRFn, writeTCRFn, writeTTBR0Fn, writeTTBR1Fn
	origEnable, origDisable, origBarrier, origInvalidate := enableMMUBitFn, disableMMUBitFn, barrierFn, invalidateTLBFn

	writeMAIRFn = func(uint64) {}
	writeTCRFn = func(uint64) {}
	writeTTBR0Fn = func(uint64) {}
	writeTTBR1Fn = func(uint64) {}
	enableMMUBitFn = func() {}
	disableMMUBitFn = func() {}
	barrierFn = func() {}
	invalidateTLBFn = func() {}

	t.Cleanup(func() {
		writeMAIRFn, writeTCRFn, writeTTBR0Fn, writeTTBR1Fn = origMAIR, origTCR, origTTBR0, origTTBR1
		enableMMUBitFn, disableMMUBitFn, barrierFn, invalidateTLBFn = origEnable, origDisable, origBarrier, origInvalidate
	})
}

func TestInitInstallsIdentityMappings(t *testing.T) {
	v := New()
	if err := v.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	idx := l1Index(uint64(layout.KernelStart))
	entry, err := v.kernelTable.Entry(idx)
	if err != nil {
		t.Fatalf("Entry(%d) failed: %v", idx, err)
	}
	if !entry.IsValid() {
		t.Fatal("kernel image mapping is not valid after Init")
	}
	if entry.PhysAddr() != uint64(layout.KernelStart)&^(layout.BlockMappingSize-1) {
		t.Fatalf("kernel image PhysAddr() = %#x, want identity", entry.PhysAddr())
	}

	periphIdx := l1Index(uint64(layout.PeripheralBase))
	periphEntry, err := v.kernelTable.Entry(periphIdx)
	if err != nil {
		t.Fatalf("Entry(%d) failed: %v", periphIdx, err)
	}
	if !periphEntry.IsValid() {
		t.Fatal("peripheral mapping is not valid after Init")
	}
}

func TestMapRegionRejectsUnalignedInputs(t *testing.T) {
	v := New()

	if err := v.MapRegion(0x1000, 0x1000, layout.BlockMappingSize, pte.Normal, pte.UserData, false); err == nil {
		t.Fatal("MapRegion accepted a va not aligned to the block mapping size")
	}
	if err := v.MapRegion(0, 0, layout.BlockMappingSize-1, pte.Normal, pte.UserData, false); err == nil {
		t.Fatal("MapRegion accepted a size not a multiple of the block mapping size")
	}
}

func TestMapUnmapRoundTrip(t *testing.T) {
	withNoopHardware(t)

	v := New()
	va := uint64(layout.BlockMappingSize * 3)
	pa := uint64(layout.BlockMappingSize * 5)

	if err := v.MapRegion(va, pa, layout.BlockMappingSize*2, pte.Normal, pte.UserData, false); err != nil {
		t.Fatalf("MapRegion failed: %v", err)
	}

	v.enabled = true
	got, err := v.Translate(va + 0x123)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if want := pa + 0x123; got != want {
		t.Fatalf("Translate() = %#x, want %#x", got, want)
	}

	if err := v.UnmapRegion(va, layout.BlockMappingSize*2); err != nil {
		t.Fatalf("UnmapRegion failed: %v", err)
	}

	if _, err := v.Translate(va + 0x123); err == nil {
		t.Fatal("Translate succeeded after UnmapRegion")
	}
}

func TestTranslateWithMMUDisabledIsIdentity(t *testing.T) {
	v := New()
	got, err := v.Translate(0xDEADBEEF)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("Translate() = %#x, want identity when MMU disabled", got)
	}
}

func TestEnableDisableMMUTracksSoftwareState(t *testing.T) {
	withNoopHardware(t)

	v := New()
	if v.IsMMUEnabled() {
		t.Fatal("new VMM reports MMU enabled")
	}

	v.EnableMMU()
	if !v.IsMMUEnabled() {
		t.Fatal("EnableMMU did not set the enabled flag")
	}

	v.DisableMMU()
	if v.IsMMUEnabled() {
		t.Fatal("DisableMMU did not clear the enabled flag")
	}
}

func TestTableSelectionBySignBit(t *testing.T) {
	withNoopHardware(t)

	v := New()
	const kernelVA = uint64(1) << 63

	if err := v.MapRegion(kernelVA, 0x40000000, layout.BlockMappingSize, pte.Normal, pte.KernelData, true); err != nil {
		t.Fatalf("MapRegion (kernel) failed: %v", err)
	}

	idx := l1Index(kernelVA)
	if _, err := v.userTable.Entry(idx); err != nil {
		t.Fatalf("Entry on user table failed: %v", err)
	}
	entry, _ := v.userTable.Entry(idx)
	if entry.IsValid() {
		t.Fatal("kernel-space mapping leaked into the user table")
	}

	kEntry, _ := v.kernelTable.Entry(idx)
	if !kEntry.IsValid() {
		t.Fatal("kernel-space mapping did not land in the kernel table")
	}
}
