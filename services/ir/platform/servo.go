package platform

import "irremote-go/x/mathx"

// Standard hobby servo pulse range at 50 Hz.
const (
	ServoMinUs    = 500
	ServoMaxUs    = 2500
	ServoPeriodNs = 20_000_000
)

// AngleToMicros converts 0..180 degrees to a pulse width. Larger angles
// saturate at ServoMaxUs.
func AngleToMicros(deg uint8) uint16 {
	return mathx.MapU16(uint16(deg), 0, 180, ServoMinUs, ServoMaxUs)
}
