// TinyOS kernel error values
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

// Error describes a kernel error as a value, never a panic. All kernel
// errors are package-level variables pointing at an Error so that callers
// can compare by identity (==) as well as by code, without requiring an
// allocation from errors.New.
type Error struct {
	// Module names the component that raised the error (e.g. "block",
	// "vmm", "cow").
	Module string

	// Code is a short, comparable identifier for the failure, stable
	// across messages (e.g. "out-of-memory").
	Code string

	// Message is the human-readable description, surfaced by the shell.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}

// Is reports whether the error carries the given code.
func (e *Error) Is(code string) bool {
	return e != nil && e.Code == code
}

// Block allocator errors.
var (
	ErrOutOfMemory          = &Error{Module: "block", Code: "out-of-memory", Message: "no contiguous free blocks available"}
	ErrUnsupportedAlignment = &Error{Module: "block", Code: "unsupported-alignment", Message: "alignment exceeds block granularity"}
)

// Virtual memory manager errors.
var (
	ErrTranslationFailed  = &Error{Module: "vmm", Code: "translation-failed", Message: "address translation failed"}
	ErrInvalidTableIndex  = &Error{Module: "vmm", Code: "invalid-table-index", Message: "invalid table index"}
	ErrUnalignedRegion    = &Error{Module: "vmm", Code: "unaligned-region", Message: "region address or size is not block-aligned"}
)

// Copy-on-write manager errors.
var (
	ErrCOWPageNotFound  = &Error{Module: "cow", Code: "page-not-found", Message: "COW page not found"}
	ErrNotCOWProtected  = &Error{Module: "cow", Code: "not-cow-protected", Message: "page is not COW-protected"}
	ErrNotAWriteFault   = &Error{Module: "cow", Code: "not-a-write-fault", Message: "COW fault on non-write access"}
	ErrCOWTableFull     = &Error{Module: "cow", Code: "table-full", Message: "COW page table full"}
)

// User-space and dynamic-memory errors.
var (
	ErrNoAvailableSlots   = &Error{Module: "userspace", Code: "no-available-slots", Message: "no available slots"}
	ErrOutsideUserSpace   = &Error{Module: "userspace", Code: "outside-user-space", Message: "address outside user space"}
	ErrVMAOverlap         = &Error{Module: "userspace", Code: "vma-overlap", Message: "VMA overlaps an existing region"}
	ErrVMANotMapped       = &Error{Module: "userspace", Code: "vma-not-mapped", Message: "VMA is not mapped"}
	ErrVMAAlreadyMapped   = &Error{Module: "userspace", Code: "vma-already-mapped", Message: "VMA is already mapped"}
	ErrVMANotFound        = &Error{Module: "userspace", Code: "vma-not-found", Message: "no VMA contains the given address"}
	ErrProcessNotFound    = &Error{Module: "userspace", Code: "process-not-found", Message: "no page table for process"}
	ErrLazyPageExists     = &Error{Module: "dynmem", Code: "lazy-page-exists", Message: "lazy page already allocated"}
	ErrLazyPageNotFound   = &Error{Module: "dynmem", Code: "lazy-page-not-found", Message: "lazy page not registered"}
	ErrStackNotFound      = &Error{Module: "dynmem", Code: "stack-not-found", Message: "dynamic stack not found"}
	ErrStackAtMax         = &Error{Module: "dynmem", Code: "stack-at-max", Message: "dynamic stack growth would exceed maximum size"}
)
