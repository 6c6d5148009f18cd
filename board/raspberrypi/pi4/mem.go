// Raspberry Pi 4 memory configuration
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !linkramsize

package pi4

import (
	_ "unsafe"
)

// ramSize covers the smallest shipped Pi 4 configuration (1 GiB); boards
// with more RAM still boot correctly, they simply leave the rest unmanaged
// by memory/layout's fixed heap window.
//
//go:linkname ramSize runtime/goos.RamSize
var ramSize uint32 = 0x40000000
