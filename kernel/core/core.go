// Kernel memory-subsystem coordinator
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package core sequences and owns the process-wide memory-subsystem
// singletons: the block allocator, the VMM, the MMU exception handler, the
// COW manager, the user-space manager, and the dynamic-memory managers. It
// installs arm64.SystemExceptionHandler as the wiring seam between the
// exception vectors and kernel/mmufault, and exposes each singleton
// through a "with-manager" closure that panics on reentrant access.
package core

import (
	"sync"

	"github.com/tinyos/tinyos/arm64"
	"github.com/tinyos/tinyos/kernel/klog"
	"github.com/tinyos/tinyos/kernel/mmufault"
	"github.com/tinyos/tinyos/memory/block"
	"github.com/tinyos/tinyos/memory/cow"
	"github.com/tinyos/tinyos/memory/dynmem"
	"github.com/tinyos/tinyos/memory/layout"
	"github.com/tinyos/tinyos/memory/userspace"
	"github.com/tinyos/tinyos/memory/vmm"
)

var (
	blockMu       sync.Mutex
	blockBusy     bool
	blockInstance *block.Allocator

	vmmMu       sync.Mutex
	vmmBusy     bool
	vmmInstance *vmm.VMM

	faultMu       sync.Mutex
	faultBusy     bool
	faultInstance *mmufault.Handler

	cowMu       sync.Mutex
	cowBusy     bool
	cowInstance *cow.Manager

	userspaceMu       sync.Mutex
	userspaceBusy     bool
	userspaceInstance *userspace.Manager

	dynmemMu       sync.Mutex
	dynmemBusy     bool
	dynmemInstance *DynamicMemoryManager
)

// DynamicMemoryManager bundles the lazy allocator, the dynamic-stack
// tracker, and the pressure handler behind a single singleton, since they
// share the same underlying frame accounting.
type DynamicMemoryManager struct {
	Lazy     *dynmem.LazyAllocator
	Stacks   *dynmem.StackManager
	Pressure *dynmem.PressureHandler
}

// WithBlockAllocator runs fn with exclusive access to the block allocator
// singleton. Reentrant calls panic: an exception taken while fn is running
// must never be allowed to silently corrupt the bitmap.
func WithBlockAllocator(fn func(*block.Allocator)) {
	blockMu.Lock()
	defer blockMu.Unlock()
	if blockBusy {
		panic("core: reentrant WithBlockAllocator call")
	}
	blockBusy = true
	defer func() { blockBusy = false }()
	fn(blockInstance)
}

// WithVMM runs fn with exclusive access to the VMM singleton.
func WithVMM(fn func(*vmm.VMM)) {
	vmmMu.Lock()
	defer vmmMu.Unlock()
	if vmmBusy {
		panic("core: reentrant WithVMM call")
	}
	vmmBusy = true
	defer func() { vmmBusy = false }()
	fn(vmmInstance)
}

// WithMMUFaultHandler runs fn with exclusive access to the MMU exception
// handler singleton.
func WithMMUFaultHandler(fn func(*mmufault.Handler)) {
	faultMu.Lock()
	defer faultMu.Unlock()
	if faultBusy {
		panic("core: reentrant WithMMUFaultHandler call")
	}
	faultBusy = true
	defer func() { faultBusy = false }()
	fn(faultInstance)
}

// WithCOWManager runs fn with exclusive access to the COW manager
// singleton.
func WithCOWManager(fn func(*cow.Manager)) {
	cowMu.Lock()
	defer cowMu.Unlock()
	if cowBusy {
		panic("core: reentrant WithCOWManager call")
	}
	cowBusy = true
	defer func() { cowBusy = false }()
	fn(cowInstance)
}

// WithUserSpaceManager runs fn with exclusive access to the user-space
// manager singleton.
func WithUserSpaceManager(fn func(*userspace.Manager)) {
	userspaceMu.Lock()
	defer userspaceMu.Unlock()
	if userspaceBusy {
		panic("core: reentrant WithUserSpaceManager call")
	}
	userspaceBusy = true
	defer func() { userspaceBusy = false }()
	fn(userspaceInstance)
}

// WithDynamicMemoryManager runs fn with exclusive access to the bundled
// lazy/stack/pressure singleton.
func WithDynamicMemoryManager(fn func(*DynamicMemoryManager)) {
	dynmemMu.Lock()
	defer dynmemMu.Unlock()
	if dynmemBusy {
		panic("core: reentrant WithDynamicMemoryManager call")
	}
	dynmemBusy = true
	defer func() { dynmemBusy = false }()
	fn(dynmemInstance)
}

// Init brings up the memory subsystem in dependency order: block allocator,
// then VMM (which reserves page-table storage from the heap end and
// installs the kernel identity mappings), then the user-space/COW/dynamic-
// memory managers, then the MMU exception handler wired to them. It then
// installs the dispatcher into arm64.SystemExceptionHandler and finally
// enables the MMU.
func Init() {
	blockInstance = block.NewAtPhysicalAddress(layout.HeapStart, layout.HeapSize)
	klog.N("core", "block allocator initialized")

	vmmInstance = vmm.New()
	if err := vmmInstance.Init(); err != nil {
		klog.Emit(klog.Record{Level: klog.Panic, Module: "core", Msg: "VMM init failed: " + err.Error()})
		return
	}
	klog.N("core", "VMM initialized")

	userspaceInstance = userspace.New()
	cowInstance = cow.New(blockInstance, vmmInstance)
	dynmemInstance = &DynamicMemoryManager{
		Lazy:   dynmem.NewLazyAllocator(blockInstance),
		Stacks: dynmem.NewStackManager(),
	}
	dynmemInstance.Pressure = dynmem.NewPressureHandler(dynmemInstance.Stacks)

	faultInstance = &mmufault.Handler{
		Lazy:   dynmemInstance.Lazy,
		VMAs:   userspaceInstance,
		Stacks: dynmemInstance.Stacks,
		COW:    cowInstance,
	}
	klog.N("core", "MMU exception handler initialized")

	arm64.SystemExceptionHandler = dispatchSyncAbort

	vmmInstance.EnableMMU()
	klog.N("core", "MMU enabled")
}

// dispatchSyncAbort is installed as arm64.SystemExceptionHandler: it
// decodes the captured abort, dispatches it through the MMU exception
// handler, and falls back to arm64.DefaultExceptionHandler on any verdict
// that is not recoverable in place.
func dispatchSyncAbort(abort arm64.SyncAbort) {
	exc := mmufault.ParseMMUException(abort.ESR, abort.FAR, uint64(abort.ELR), abort.UserMode)

	var verdict mmufault.Verdict
	WithMMUFaultHandler(func(h *mmufault.Handler) {
		verdict = h.Dispatch(exc)
	})

	switch verdict {
	case mmufault.Continue, mmufault.Retry:
		return
	case mmufault.TerminateProcess:
		klog.W("core", "terminating user process on unrecoverable fault")
		return
	default:
		arm64.DefaultExceptionHandler(abort)
	}
}
