//go:build !linux

package hardware

import "fmt"

// RealActuator is not available on non-Linux platforms.
type RealActuator struct{}

// NewRealActuator returns ErrUnavailable on non-Linux platforms.
func NewRealActuator(chipName string, pin int) (*RealActuator, error) {
	return nil, fmt.Errorf("gpio requires Linux: %w", ErrUnavailable)
}

func (a *RealActuator) Set(on bool) error { return ErrUnavailable }
func (a *RealActuator) Close() error      { return nil }

// RealMotionSensor is not available on non-Linux platforms.
type RealMotionSensor struct{}

// NewRealMotionSensor returns ErrUnavailable on non-Linux platforms.
func NewRealMotionSensor(chipName string, pin int) (*RealMotionSensor, error) {
	return nil, fmt.Errorf("gpio requires Linux: %w", ErrUnavailable)
}

func (s *RealMotionSensor) Read() (bool, error) { return false, ErrUnavailable }
func (s *RealMotionSensor) Close() error        { return nil }
