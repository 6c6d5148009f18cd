// BCM2711/BCM2712 UART support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package bcm2711

// UART is a common interface for UARTs.
//
// The BCM2711/BCM2712 ship both a PL011 UART and the mini-UART, with very
// different register layouts. This interface is the common surface
// kernel/klog and the shell console need from either.
type UART interface {
	Init()
	Tx(c byte)
	Write(buf []byte) (int, error)
}
