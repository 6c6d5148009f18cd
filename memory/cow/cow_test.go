package cow

import (
	"testing"

	"github.com/tinyos/tinyos/kernel"
	"github.com/tinyos/tinyos/memory/block"
	"github.com/tinyos/tinyos/memory/layout"
	"github.com/tinyos/tinyos/memory/pte"
)

// identityTranslator maps every virtual address straight to itself, for
// tests that exercise HandleFault without a real VMM.
type identityTranslator struct{}

func (identityTranslator) Translate(va uint64) (uint64, *kernel.Error) {
	return va, nil
}

func newTestManager(t *testing.T) (*Manager, *block.Allocator, uint64) {
	t.Helper()

	const heapSize = 64 * 1024
	mem := make([]byte, heapSize)
	alloc := block.New(0x100000, mem)

	pa, ok := alloc.AllocateBlocks(framePages)
	if !ok {
		t.Fatal("failed to allocate the shared source frame")
	}

	return New(alloc, identityTranslator{}), alloc, uint64(pa)
}

func TestRegisterPageSharedBecomesCOW(t *testing.T) {
	m, _, pa := newTestManager(t)

	if err := m.RegisterPage(pa, 0x10000000, pte.UserData, 1); err != nil {
		t.Fatalf("RegisterPage(p1) failed: %v", err)
	}
	if err := m.RegisterPage(pa, 0x10001000, pte.UserData, 2); err != nil {
		t.Fatalf("RegisterPage(p2) failed: %v", err)
	}

	count, ok := m.RefCount(pa)
	if !ok || count != 2 {
		t.Fatalf("RefCount() = (%d, %v), want (2, true)", count, ok)
	}
	isCOW, _ := m.IsCOW(pa)
	if !isCOW {
		t.Fatal("record did not become COW-protected at ref_count == 2")
	}
}

func TestHandleCOWFaultCopiesAndSplits(t *testing.T) {
	m, alloc, pa := newTestManager(t)

	source := make([]byte, layout.PageSize)
	for i := range source {
		source[i] = byte(i)
	}
	alloc.WriteAt(uintptr(pa), source)

	if err := m.RegisterPage(pa, 0x10000000, pte.UserData, 1); err != nil {
		t.Fatalf("RegisterPage(p1) failed: %v", err)
	}
	if err := m.RegisterPage(pa, 0x10001000, pte.UserData, 2); err != nil {
		t.Fatalf("RegisterPage(p2) failed: %v", err)
	}

	newPA, err := m.HandleCOWFault(Fault{PA: pa, VA: 0x10000000, PID: 1, Write: true})
	if err != nil {
		t.Fatalf("HandleCOWFault failed: %v", err)
	}
	if newPA == pa {
		t.Fatal("HandleCOWFault returned the original physical address")
	}

	copied := make([]byte, layout.PageSize)
	alloc.ReadAt(uintptr(newPA), copied)
	for i := range source {
		if copied[i] != source[i] {
			t.Fatalf("copied frame differs at byte %d: got %d, want %d", i, copied[i], source[i])
			break
		}
	}

	oldCount, ok := m.RefCount(pa)
	if !ok || oldCount != 1 {
		t.Fatalf("old record RefCount() = (%d, %v), want (1, true)", oldCount, ok)
	}
	oldCOW, _ := m.IsCOW(pa)
	if oldCOW {
		t.Fatal("old record remained COW-protected after the fault")
	}

	newCount, ok := m.RefCount(newPA)
	if !ok || newCount != 1 {
		t.Fatalf("new record RefCount() = (%d, %v), want (1, true)", newCount, ok)
	}
}

func TestHandleCOWFaultRejectsReadFault(t *testing.T) {
	m, _, pa := newTestManager(t)

	m.RegisterPage(pa, 0x10000000, pte.UserData, 1)
	m.RegisterPage(pa, 0x10001000, pte.UserData, 2)

	if _, err := m.HandleCOWFault(Fault{PA: pa, VA: 0x10000000, PID: 1, Write: false}); err == nil {
		t.Fatal("HandleCOWFault accepted a non-write fault")
	}
}

func TestHandleCOWFaultRejectsUnsharedPage(t *testing.T) {
	m, _, pa := newTestManager(t)

	m.RegisterPage(pa, 0x10000000, pte.UserData, 1)

	if _, err := m.HandleCOWFault(Fault{PA: pa, VA: 0x10000000, PID: 1, Write: true}); err == nil {
		t.Fatal("HandleCOWFault accepted a fault on a non-shared record")
	}
}

func TestUnregisterPageRemovesEmptyRecord(t *testing.T) {
	m, _, pa := newTestManager(t)

	m.RegisterPage(pa, 0x10000000, pte.UserData, 1)

	removed, err := m.UnregisterPage(pa, 0x10000000, 1)
	if err != nil {
		t.Fatalf("UnregisterPage failed: %v", err)
	}
	if !removed {
		t.Fatal("UnregisterPage did not report removal when ref_count reached 0")
	}

	if _, ok := m.RefCount(pa); ok {
		t.Fatal("record still present after its only mapping was unregistered")
	}
}

func TestHandleFaultTranslatesVAThroughVMMBeforeLookup(t *testing.T) {
	m, _, pa := newTestManager(t)

	const va = 0x10000000
	m.RegisterPage(pa, va, pte.UserData, 1)
	m.RegisterPage(pa, 0x10001000, pte.UserData, 2)

	// translator maps va to pa, a different address: HandleFault must use
	// the translated physical address, not va itself, as the lookup key.
	m.translator = fakeTranslator{pa: pa}

	handled, err := m.HandleFault(va)
	if err != nil {
		t.Fatalf("HandleFault failed: %v", err)
	}
	if !handled {
		t.Fatal("HandleFault did not recognize the COW-protected frame behind the translated VA")
	}
}

func TestHandleFaultFailsWithoutTranslator(t *testing.T) {
	m, _, pa := newTestManager(t)
	m.translator = nil

	m.RegisterPage(pa, 0x10000000, pte.UserData, 1)
	m.RegisterPage(pa, 0x10001000, pte.UserData, 2)

	if _, err := m.HandleFault(0x10000000); err == nil {
		t.Fatal("HandleFault succeeded with no address translator wired")
	}
}

type fakeTranslator struct {
	pa uint64
}

func (f fakeTranslator) Translate(uint64) (uint64, *kernel.Error) {
	return f.pa, nil
}

func TestRegisterPageRejectsWhenTableFull(t *testing.T) {
	m, _, _ := newTestManager(t)

	for i := 0; i < maxRecords; i++ {
		if err := m.RegisterPage(uint64(i+1)*layout.PageSize, 0x10000000, pte.UserData, 1); err != nil {
			t.Fatalf("RegisterPage(%d) failed: %v", i, err)
		}
	}

	if err := m.RegisterPage(uint64(maxRecords+1)*layout.PageSize, 0x10000000, pte.UserData, 1); err == nil {
		t.Fatal("RegisterPage accepted a 65th record")
	}
}
