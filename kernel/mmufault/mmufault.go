// ARM64 synchronous abort decoding and dispatch
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mmufault decodes ESR_EL1 on a synchronous abort and dispatches the
// fault to the lazy-page allocator, the dynamic-stack grower, or the COW
// manager, producing a verdict the exception vector acts on. Decoding
// follows the ARMv8-A ESR_EL1 encoding tables.
package mmufault

import (
	"github.com/tinyos/tinyos/kernel"
	"github.com/tinyos/tinyos/kernel/klog"

	"golang.org/x/arch/arm64/arm64asm"
)

// FaultClass distinguishes instruction aborts from data aborts, recovered
// from ESR_EL1[31:26].
type FaultClass int

const (
	InstructionAbort FaultClass = iota
	DataAbort
)

// FaultType is the decoded ESR_EL1[5:0] fault status code, grouped per the
// ARMv8-A FSC table.
type FaultType int

const (
	AddressSize FaultType = iota
	Translation
	AccessFlag
	Permission
	Alignment
	TLBConflict
	UnsupportedAtomicUpdate
	ImplementationDefined
)

func (t FaultType) String() string {
	switch t {
	case AddressSize:
		return "address-size"
	case Translation:
		return "translation"
	case AccessFlag:
		return "access-flag"
	case Permission:
		return "permission"
	case Alignment:
		return "alignment"
	case TLBConflict:
		return "tlb-conflict"
	case UnsupportedAtomicUpdate:
		return "unsupported-atomic-update"
	default:
		return "implementation-defined"
	}
}

// Verdict is the dispatcher's recovery decision for the exception vector.
type Verdict int

const (
	// Continue means the fault was handled; re-execute the faulting
	// instruction.
	Continue Verdict = iota
	// Retry means the caller should re-attempt the same operation once
	// (used when a transient condition, not a fault, caused the abort).
	Retry
	// TerminateProcess means a user-mode process must be killed.
	TerminateProcess
	// SystemPanic is the only fatal path: a kernel-mode fault that cannot
	// be recovered.
	SystemPanic
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Retry:
		return "retry"
	case TerminateProcess:
		return "terminate-process"
	default:
		return "system-panic"
	}
}

const (
	ecInstructionAbortLowerEL = 0x20
	ecInstructionAbortSameEL  = 0x21
	ecDataAbortLowerEL        = 0x24
	ecDataAbortSameEL         = 0x25
)

// MMUException is the decoded form of a synchronous abort, built from the
// (ESR_EL1, FAR_EL1, ELR_EL1, userMode) tuple the exception vector captures.
type MMUException struct {
	Class    FaultClass
	Write    bool
	Type     FaultType
	Level    int
	FSC      uint64 // raw fault status code, for ImplementationDefined
	FAR      uint64
	ELR      uint64
	UserMode bool
}

// ParseMMUException decodes esr per the ARMv8-A ESR_EL1 layout: bits[31:26]
// exception class, bit 6 write-not-read (data aborts only), bits[5:0] fault
// status code.
func ParseMMUException(esr, far, elr uint64, userMode bool) MMUException {
	ec := (esr >> 26) & 0x3F
	fsc := esr & 0x3F

	exc := MMUException{
		FAR:      far,
		ELR:      elr,
		UserMode: userMode,
		FSC:      fsc,
		Level:    int(fsc & 0x3),
	}

	switch ec {
	case ecInstructionAbortLowerEL, ecInstructionAbortSameEL:
		exc.Class = InstructionAbort
	case ecDataAbortLowerEL, ecDataAbortSameEL:
		exc.Class = DataAbort
		exc.Write = esr&(1<<6) != 0
	}

	exc.Type = classifyFSC(fsc)

	return exc
}

func classifyFSC(fsc uint64) FaultType {
	switch {
	case fsc <= 0x03:
		return AddressSize
	case fsc >= 0x04 && fsc <= 0x07:
		return Translation
	case fsc >= 0x08 && fsc <= 0x0B:
		return AccessFlag
	case fsc >= 0x0C && fsc <= 0x0F:
		return Permission
	case fsc == 0x21:
		return Alignment
	case fsc == 0x30:
		return TLBConflict
	case fsc == 0x35:
		return UnsupportedAtomicUpdate
	default:
		return ImplementationDefined
	}
}

// LazyPages is satisfied by the dynamic-memory manager's lazy-page table.
type LazyPages interface {
	HandleFault(va uint64) (bool, *kernel.Error)
}

// VMALookup is satisfied by the user-space manager; it resolves a faulting
// address to the VMA that contains it, if any.
type VMALookup interface {
	FindVMA(va uint64) (kind string, procID uint32, ok bool)
}

// StackGrower is satisfied by the dynamic-memory manager's stack tracker.
type StackGrower interface {
	GrowStackForVMA(procID uint32, va uint64) (bool, *kernel.Error)
}

// COWFaults is satisfied by the COW manager.
type COWFaults interface {
	HandleFault(va uint64) (bool, *kernel.Error)
}

// InstructionReader reads the word at a virtual address for panic
// diagnostics, returning ok=false if the page is not currently mapped and
// readable.
type InstructionReader interface {
	ReadWord(va uint64) (uint32, bool)
}

// stackVMAKind is the VMA type name VMALookup reports for stack regions.
const stackVMAKind = "stack"

// Handler wires the decoded fault to the three recovery paths. Any field
// left nil is treated as "this path is unavailable", which only narrows the
// verdict toward TerminateProcess/SystemPanic.
type Handler struct {
	Lazy   LazyPages
	VMAs   VMALookup
	Stacks StackGrower
	COW    COWFaults
	Code   InstructionReader
}

// Dispatch routes a decoded exception to the appropriate manager and
// returns the recovery verdict. Stack-growth and lazy-allocation both apply
// only to Translation faults; COW applies only to write Permission faults.
func (h *Handler) Dispatch(exc MMUException) Verdict {
	switch exc.Type {
	case Translation:
		return h.dispatchTranslation(exc)
	case Permission:
		return h.dispatchPermission(exc)
	case AccessFlag:
		// The MMU cleared AF on first access; setting it back is the
		// architecturally required response, not a fault to recover
		// from. Always retry, kernel or user mode.
		return Retry
	case Alignment:
		return h.fatal(exc)
	default:
		// Address-size, TLB-conflict, unsupported-atomic-update and
		// implementation-defined faults halt the system whichever mode
		// they were taken from.
		return h.systemPanic(exc)
	}
}

func (h *Handler) dispatchTranslation(exc MMUException) Verdict {
	if h.VMAs != nil {
		if kind, procID, ok := h.VMAs.FindVMA(exc.FAR); ok && kind == stackVMAKind {
			if h.Stacks != nil {
				if grown, _ := h.Stacks.GrowStackForVMA(procID, exc.FAR); grown {
					return Continue
				}
			}
			return h.fatal(exc)
		}
	}

	if h.Lazy != nil {
		if handled, _ := h.Lazy.HandleFault(exc.FAR); handled {
			return Continue
		}
	}

	return h.fatal(exc)
}

func (h *Handler) dispatchPermission(exc MMUException) Verdict {
	if exc.Write && h.COW != nil {
		if handled, _ := h.COW.HandleFault(exc.FAR); handled {
			// The PTE was just repointed at a private copy; retry the
			// write against the new mapping rather than resuming as
			// if the original, now-read-only, mapping still applies.
			return Retry
		}
	}

	return h.fatal(exc)
}

// fatal resolves the non-recoverable case: user-mode faults kill the
// process, kernel-mode faults halt the system through systemPanic.
func (h *Handler) fatal(exc MMUException) Verdict {
	if exc.UserMode {
		return TerminateProcess
	}

	return h.systemPanic(exc)
}

// systemPanic emits a klog.Panic record, enriched with a disassembly of the
// faulting instruction when it is still mapped and readable, and returns
// SystemPanic.
func (h *Handler) systemPanic(exc MMUException) Verdict {
	klog.Emit(klog.Record{
		Level:  klog.Panic,
		Module: "mmufault",
		Msg:    h.diagnose(exc),
	})

	return SystemPanic
}

func (h *Handler) diagnose(exc MMUException) string {
	mode := "kernel-mode "
	if exc.UserMode {
		mode = "user-mode "
	}
	msg := mode + classString(exc.Class) + ", " + exc.Type.String() + " fault at level " + levelString(exc.Level)

	if h.Code == nil {
		return msg
	}

	word, ok := h.Code.ReadWord(exc.ELR)
	if !ok {
		return msg
	}

	inst, err := arm64asm.Decode([]byte{
		byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24),
	})
	if err != nil {
		return msg
	}

	return msg + ": " + inst.String()
}

func classString(c FaultClass) string {
	if c == InstructionAbort {
		return "instruction abort"
	}
	return "data abort"
}

func levelString(level int) string {
	switch level {
	case 0:
		return "0"
	case 1:
		return "1"
	case 2:
		return "2"
	default:
		return "3"
	}
}
