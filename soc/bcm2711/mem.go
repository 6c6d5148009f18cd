// BCM2711/BCM2712 SoC support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !linkramstart

package bcm2711

import (
	_ "unsafe"
)

//go:linkname ramStart runtime.ramStart
var ramStart uint32 = 0x00100000

// WatchdogPeriod is the tick period of the BCM2711/BCM2712 power-management
// watchdog counter, which runs at 1/16 of the 1 MHz reference clock.
const WatchdogPeriod = 16000 // nanoseconds per tick
