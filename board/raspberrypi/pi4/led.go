// Raspberry Pi 4 LED support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pi4

import (
	"errors"

	"github.com/tinyos/tinyos/soc/bcm2711"
)

// LED GPIO lines. On the Pi 4 both LEDs are routed through the VideoCore
// GPIO expander rather than the main SoC's GPIO block on most revisions;
// this uses the SoC-side line that is still wired on earlier boards.
const (
	ACTIVITY = 42
)

var activity *bcm2711.GPIO

func init() {
	var err error

	activity, err = bcm2711.NewGPIO(ACTIVITY)
	if err != nil {
		panic(err)
	}

	activity.Out()
}

// LED turns on/off an LED by name.
func (b *board) LED(name string, on bool) (err error) {
	var led *bcm2711.GPIO

	switch name {
	case "activity", "Activity", "ACTIVITY":
		led = activity
	default:
		return errors.New("invalid LED")
	}

	if on {
		led.High()
	} else {
		led.Low()
	}

	return
}
