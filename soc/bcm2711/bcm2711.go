// BCM2711/BCM2712 SoC support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package bcm2711 provides the low-level peripheral bring-up shared by the
// Raspberry Pi 4 (BCM2711) and Raspberry Pi 5 (BCM2712): the mini-UART
// console, GPIO lines, the watchdog, and the generic timer handoff to
// package arm64. Per-model peripheral base addresses live in the
// board/raspberrypi/pi4 and pi5 packages; this package is parameterized by
// PeripheralBase rather than hard-coding either model's address.
package bcm2711

import (
	// using go:linkname
	_ "unsafe"

	"github.com/tinyos/tinyos/arm64"
	"github.com/tinyos/tinyos/arm64/gic"
	"github.com/tinyos/tinyos/memory/layout"
)

// PeripheralBase is the MMIO base address of the peripheral block, set by
// the calling board package before HardwareInit runs. It differs between
// BCM2711 (Pi 4) and BCM2712 (Pi 5).
//
//go:linkname PeripheralBase runtime.PeripheralBase
var PeripheralBase uint32

// PeripheralAddress resolves a peripheral-relative register offset to its
// absolute MMIO address under the current PeripheralBase.
func PeripheralAddress(offset uint32) uint32 {
	return PeripheralBase + offset
}

// CPU is the ARM64 core instance backing the generic timer and cache
// control used during hardware bring-up.
var CPU = &arm64.CPU{}

// GIC is the GICv3 instance wired to the BCM2711/BCM2712 distributor and
// redistributor at their fixed absolute addresses (layout.GICDBase and
// layout.GICRBase, outside the layout.PeripheralBase window).
// kernel/mmufault dispatches synchronous aborts, not IRQs, so GIC.Init is
// ambient board bring-up rather than something the memory core depends on.
var GIC = &gic.GIC{
	GICD: layout.GICDBase,
	GICR: layout.GICRBase,
}

// timerFreq is the BCM2711/BCM2712 generic timer reference frequency (Hz),
// fixed by the SoC and independent of CPU clock scaling.
const timerFreq = 54000000

//go:linkname nanotime1 runtime.nanotime1
func nanotime1() int64 {
	return CPU.GetTime()
}

// HardwareInit takes care of the lower level SoC initialization.
//
// Triggered early in runtime setup, care must be taken to ensure that
// no heap allocation is performed (e.g. defer is not possible).
func HardwareInit(peripheralBase uint32) {
	// The peripheral base address differs by board.
	PeripheralBase = peripheralBase

	CPU.EnableFP()
	CPU.EnableCache()
	CPU.InitGenericTimers(0, timerFreq)

	uartInit()

	GIC.Init()
}
