// Raspberry Pi 5 support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pi5 provides hardware initialization, automatically on import,
// for the Raspberry Pi 5 (BCM2712, Cortex-A76) single board computer.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go.
package pi5

import (
	_ "unsafe"

	pi "github.com/tinyos/tinyos/board/raspberrypi"
	"github.com/tinyos/tinyos/kernel/core"
	"github.com/tinyos/tinyos/kernel/klog"
	"github.com/tinyos/tinyos/soc/bcm2711"
)

// peripheralBase is the BCM2712 legacy peripheral MMIO base address; it is
// the same window BCM2711 uses for the blocks this kernel drives
// (mini-UART, GPIO, watchdog). The RP1 southbridge's separate MMIO window
// is out of scope.
const peripheralBase = 0xFE000000

type board struct{}

// Board provides access to the capabilities of the Pi 5.
var Board pi.Board = &board{}

// Init takes care of the lower level SoC initialization triggered early in
// runtime setup.
//
//go:linkname Init runtime.hwinit
func Init() {
	bcm2711.HardwareInit(peripheralBase)
	klog.SetOutput(bcm2711.MiniUART)
}

// MemoryInit brings up the memory core once the Go runtime has started.
//
//go:linkname MemoryInit runtime.hwinit1
func MemoryInit() {
	core.Init()
}
