package mmufault

import (
	"testing"

	"github.com/tinyos/tinyos/kernel"
)

func TestParseTranslationFaultLevel0(t *testing.T) {
	exc := ParseMMUException(0x96000004, 0x200000, 0x80100, true)

	if exc.Class != DataAbort {
		t.Fatalf("Class = %v, want DataAbort", exc.Class)
	}
	if exc.Write {
		t.Fatal("Write = true, want false")
	}
	if exc.Type != Translation {
		t.Fatalf("Type = %v, want Translation", exc.Type)
	}
	if exc.Level != 0 {
		t.Fatalf("Level = %d, want 0", exc.Level)
	}
}

func TestParsePermissionFaultLevel1(t *testing.T) {
	exc := ParseMMUException(0x9200000D, 0x300000, 0x80100, false)

	if exc.Type != Permission {
		t.Fatalf("Type = %v, want Permission", exc.Type)
	}
	if exc.Level != 1 {
		t.Fatalf("Level = %d, want 1", exc.Level)
	}
}

type fakeVMALookup struct {
	kind   string
	procID uint32
	ok     bool
}

func (f fakeVMALookup) FindVMA(uint64) (string, uint32, bool) {
	return f.kind, f.procID, f.ok
}

type fakeLazyPages struct {
	called bool
	handle bool
}

func (f *fakeLazyPages) HandleFault(uint64) (bool, *kernel.Error) {
	f.called = true
	return f.handle, nil
}

type fakeStackGrower struct {
	called bool
	grow   bool
}

func (f *fakeStackGrower) GrowStackForVMA(uint32, uint64) (bool, *kernel.Error) {
	f.called = true
	return f.grow, nil
}

type fakeCOWFaults struct {
	called bool
	handle bool
}

func (f *fakeCOWFaults) HandleFault(uint64) (bool, *kernel.Error) {
	f.called = true
	return f.handle, nil
}

func TestDispatchLazyPageAllocationGrantsContinue(t *testing.T) {
	lazy := &fakeLazyPages{handle: true}
	h := &Handler{
		VMAs: fakeVMALookup{ok: false},
		Lazy: lazy,
	}

	exc := ParseMMUException(0x96000004, 0x200000, 0x80100, true)
	if got := h.Dispatch(exc); got != Continue {
		t.Fatalf("Dispatch() = %v, want Continue", got)
	}
	if !lazy.called {
		t.Fatal("lazy-page handler was not consulted")
	}
}

func TestDispatchStackGrowthTakesPriorityOverLazy(t *testing.T) {
	lazy := &fakeLazyPages{handle: true}
	stacks := &fakeStackGrower{grow: true}
	h := &Handler{
		VMAs:   fakeVMALookup{kind: stackVMAKind, procID: 7, ok: true},
		Lazy:   lazy,
		Stacks: stacks,
	}

	exc := ParseMMUException(0x96000004, 0x7FFFF000, 0x80100, true)
	if got := h.Dispatch(exc); got != Continue {
		t.Fatalf("Dispatch() = %v, want Continue", got)
	}
	if !stacks.called {
		t.Fatal("stack grower was not consulted")
	}
	if lazy.called {
		t.Fatal("lazy-page handler should not run once the VMA is claimed by the stack")
	}
}

func TestDispatchUnresolvedTranslationFaultTerminatesUserProcess(t *testing.T) {
	h := &Handler{Lazy: &fakeLazyPages{handle: false}}

	exc := ParseMMUException(0x96000004, 0xBAD00000, 0x80100, true)
	if got := h.Dispatch(exc); got != TerminateProcess {
		t.Fatalf("Dispatch() = %v, want TerminateProcess", got)
	}
}

func TestDispatchUnresolvedTranslationFaultPanicsInKernelMode(t *testing.T) {
	h := &Handler{Lazy: &fakeLazyPages{handle: false}}

	exc := ParseMMUException(0x96000004, 0xBAD00000, 0x80100, false)
	if got := h.Dispatch(exc); got != SystemPanic {
		t.Fatalf("Dispatch() = %v, want SystemPanic", got)
	}
}

func TestDispatchWritePermissionFaultConsultsCOW(t *testing.T) {
	cow := &fakeCOWFaults{handle: true}
	h := &Handler{COW: cow}

	exc := ParseMMUException(0x9200000D, 0x300000, 0x80100, true)
	exc.Write = true
	if got := h.Dispatch(exc); got != Retry {
		t.Fatalf("Dispatch() = %v, want Retry", got)
	}
	if !cow.called {
		t.Fatal("COW handler was not consulted on a write permission fault")
	}
}

func TestDispatchAccessFlagFaultAlwaysRetries(t *testing.T) {
	h := &Handler{}

	exc := ParseMMUException(0x96000008, 0x300000, 0x80100, true)
	if got := h.Dispatch(exc); got != Retry {
		t.Fatalf("Dispatch() = %v, want Retry", got)
	}

	exc = ParseMMUException(0x96000008, 0x300000, 0x80100, false)
	if got := h.Dispatch(exc); got != Retry {
		t.Fatalf("Dispatch() = %v, want Retry (kernel mode)", got)
	}
}

func TestDispatchReadPermissionFaultNeverConsultsCOW(t *testing.T) {
	cow := &fakeCOWFaults{handle: true}
	h := &Handler{COW: cow}

	exc := ParseMMUException(0x9200000D, 0x300000, 0x80100, true)
	exc.Write = false
	h.Dispatch(exc)
	if cow.called {
		t.Fatal("COW handler must not run on a read-only permission fault")
	}
}
