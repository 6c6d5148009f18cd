// Raspberry Pi 4 support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pi4 provides hardware initialization, automatically on import,
// for the Raspberry Pi 4 (BCM2711, Cortex-A72) single board computer.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go.
package pi4

import (
	_ "unsafe"

	pi "github.com/tinyos/tinyos/board/raspberrypi"
	"github.com/tinyos/tinyos/kernel/core"
	"github.com/tinyos/tinyos/kernel/klog"
	"github.com/tinyos/tinyos/soc/bcm2711"
)

// peripheralBase is the BCM2711 peripheral MMIO base address, matching
// memory/layout.PeripheralBase.
const peripheralBase = 0xFE000000

type board struct{}

// Board provides access to the capabilities of the Pi 4.
var Board pi.Board = &board{}

// Init takes care of the lower level SoC initialization triggered early in
// runtime setup.
//
//go:linkname Init runtime.hwinit
func Init() {
	bcm2711.HardwareInit(peripheralBase)
	klog.SetOutput(bcm2711.MiniUART)
}

// MemoryInit brings up the memory core after the Go runtime has started.
// It is the board's hwinit1 hook, separate from Init's hwinit0 because the
// block allocator and VMM need the heap and arena carved out by
// memory/layout, which is only safe to touch once the runtime's own
// bookkeeping is live.
//
//go:linkname MemoryInit runtime.hwinit1
func MemoryInit() {
	core.Init()
}
