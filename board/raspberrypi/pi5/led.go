// Raspberry Pi 5 LED support
// https://github.com/tinyos/tinyos
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pi5

import (
	"errors"

	"github.com/tinyos/tinyos/soc/bcm2711"
)

// ACTIVITY is the SoC-side activity LED GPIO line.
const ACTIVITY = 29

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
