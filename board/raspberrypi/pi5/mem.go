// Raspberry Pi 5 memory configuration
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !linkramsize

package pi5

import (
	_ "unsafe"
)

// ramSize is capped just under the 4 GiB a uint32 byte count can express;
// the smallest shipped Pi 5 configuration has 4 GiB, so this reserves the
// last few pages rather than wrapping.
//
//go:linkname ramSize runtime/goos.RamSize
var ramSize uint32 = 0xFFFFF000
