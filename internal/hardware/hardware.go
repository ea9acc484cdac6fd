// Package hardware abstracts the physical devices behind capability
// interfaces so the controller and its tests never touch real pins.
// The real implementations use the Linux GPIO character device and SPI;
// simulated implementations are selected automatically when hardware is
// absent, keeping the rest of the system functional on a desktop machine.
package hardware

import "errors"

// ErrUnavailable indicates the underlying device is missing or failed.
var ErrUnavailable = errors.New("hardware unavailable")

// Actuator drives the light output (LED or relay).
type Actuator interface {
	// Set drives the output to the requested logical level.
	Set(on bool) error

	// Close releases hardware resources.
	Close() error
}

// MotionSensor reads the PIR digital input.
type MotionSensor interface {
	// Read returns the instantaneous digital state: true = motion present.
	Read() (bool, error)

	// Close releases hardware resources.
	Close() error
}

// AmbientSensor reads the ambient light level from the ADC.
type AmbientSensor interface {
	// Level returns the raw brightness, 0 (dark) to 255 (bright).
	Level() (uint8, error)

	// Close releases hardware resources.
	Close() error
}

// IsDark reports whether the ambient level is below the threshold.
func IsDark(level, threshold uint8) bool {
	return level < threshold
}
