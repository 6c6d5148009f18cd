// Raspberry Pi support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pi provides the shared abstraction board/raspberrypi/pi4 and
// board/raspberrypi/pi5 each implement for their model.
package pi

// Board provides a basic abstraction over the different models of Pi.
type Board interface {
	LED(name string, on bool) (err error)
}
