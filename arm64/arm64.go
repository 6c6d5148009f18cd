// ARM64 processor support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arm64 provides the Cortex-A72/A76 register-level primitives the
// memory core and board bring-up build on: exception vector installation,
// stage-1 MMU control registers, cache/IRQ control, and the generic timer.
//
// This package targets GOOS=tamago GOARCH=arm64 bare-metal Go.
package arm64

import (
	"runtime"
)

// CPU instance
type CPU struct {
	// Timer multiplier
	TimerMultiplier float64
	// Timer offset in nanoseconds
	TimerOffset int64
}

// defined in arm64.s
func exit(int32)

// Init performs early per-core initialization: it installs exit as the
// runtime's exit hook and sets the exception vector table base. vbar is
// honored only when the application has not already reserved a vector
// table area via vecTableStart.
func (cpu *CPU) Init(vbar uint32) {
	runtime.Exit = exit

	if vecTableStart == 0 {
		vecTableStart = uint64(vbar)
	}

	cpu.initVectorTable()
}
