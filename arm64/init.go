// ARM64 processor support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

import (
	_ "unsafe"
)

// Init takes care of the lower level initialization triggered before runtime
// setup (pre World start): floating point and the exception vector table.
// Stage-1 translation setup is the memory core's job (kernel/core.Init,
// wired in from board hwinit1) rather than this package's: the core needs
// the heap layout and the block allocator up first, neither of which exist
// yet this early.
//
//go:linkname Init runtime/goos.Hwinit0
func Init() {
	fp_enable()

	cpu := &CPU{}
	cpu.initVectorTable()
}
