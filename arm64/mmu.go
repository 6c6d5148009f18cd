// ARM64 stage-1 MMU register access
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

// Register fields programmed by memory/vmm at EnableMMU/DisableMMU. The
// core (memory/vmm) owns the values; this package only owns the mechanism
// of getting them into the CPU, declared here and implemented in
// mmuregs.s, matching cache.go/cache.s and timer.go/timer.s.
const (
	// SCTLR_EL1 bit 0: MMU enable.
	SCTLR_M = 1 << 0
)

// defined in mmuregs.s
func write_mair_el1(val uint64)
func write_tcr_el1(val uint64)
func write_ttbr0_el1(addr uint64)
func write_ttbr1_el1(addr uint64)
func read_sctlr_el1() uint64
func write_sctlr_el1(val uint64)
func dsb_sy()
func isb()
func tlbi_alle1()
func tlbi_aside1(asid uint64)

// WriteMAIR programs MAIR_EL1.
func WriteMAIR(val uint64) { write_mair_el1(val) }

// WriteTCR programs TCR_EL1.
func WriteTCR(val uint64) { write_tcr_el1(val) }

// WriteTTBR0 programs the user (low-half) translation table base register.
func WriteTTBR0(addr uint64) { write_ttbr0_el1(addr) }

// WriteTTBR1 programs the kernel (high-half) translation table base
// register.
func WriteTTBR1(addr uint64) { write_ttbr1_el1(addr) }

// EnableMMUBit sets the SCTLR_EL1.M bit, turning stage-1 translation on.
func EnableMMUBit() {
	write_sctlr_el1(read_sctlr_el1() | SCTLR_M)
}

// DisableMMUBit clears the SCTLR_EL1.M bit.
func DisableMMUBit() {
	write_sctlr_el1(read_sctlr_el1() &^ SCTLR_M)
}

// MMUEnabled reports whether SCTLR_EL1.M is currently set.
func MMUEnabled() bool {
	return read_sctlr_el1()&SCTLR_M != 0
}

// Barrier issues a system-wide data synchronization barrier followed by an
// instruction synchronization barrier, the sequence required after any
// page-table edit or control-register write that must be visible before
// the next speculative access.
func Barrier() {
	dsb_sy()
	isb()
}

// InvalidateTLBAll issues an all-entries EL1 TLB invalidation followed by
// the barrier sequence.
func InvalidateTLBAll() {
	tlbi_alle1()
	Barrier()
}

// InvalidateTLBASID issues a TLB invalidation scoped to a single ASID,
// followed by the barrier sequence, used when activating a user page
// table (see memory/userspace).
func InvalidateTLBASID(asid uint64) {
	tlbi_aside1(asid << 48)
	Barrier()
}
