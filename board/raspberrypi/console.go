// Raspberry Pi support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !linkprintk
// +build !linkprintk

package pi

import (
	_ "unsafe"

	"github.com/tinyos/tinyos/soc/bcm2711"
)

//go:linkname printk runtime.printk
func printk(c byte) {
	bcm2711.MiniUART.Tx(c)
}
