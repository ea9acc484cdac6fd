//go:build linux

package hardware

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealActuator drives an output line using the Linux GPIO character device.
type RealActuator struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealActuator requests the LED line as output, initially low.
func NewRealActuator(chipName string, pin int) (*RealActuator, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request LED pin %d: %w", pin, err)
	}

	return &RealActuator{chip: chip, line: line}, nil
}

// Set drives the output to the requested logical level.
func (a *RealActuator) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := a.line.SetValue(v); err != nil {
		return fmt.Errorf("set LED pin: %w", err)
	}
	return nil
}

// Close drives the output low and releases GPIO resources.
func (a *RealActuator) Close() error {
	var errs []error
	if a.line != nil {
		// Leave the light off on shutdown
		if err := a.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear LED pin: %w", err))
		}
		if err := a.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close LED pin: %w", err))
		}
	}
	if a.chip != nil {
		if err := a.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealMotionSensor reads a PIR input line using the Linux GPIO character device.
type RealMotionSensor struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealMotionSensor requests the PIR line as input with pull-down, matching
// the HC-SR501's active-high output.
func NewRealMotionSensor(chipName string, pin int) (*RealMotionSensor, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request PIR pin %d: %w", pin, err)
	}

	return &RealMotionSensor{chip: chip, line: line}, nil
}

// Read returns true while the PIR reports motion.
func (s *RealMotionSensor) Read() (bool, error) {
	v, err := s.line.Value()
	if err != nil {
		return false, fmt.Errorf("read PIR pin: %w", err)
	}
	return v != 0, nil
}

// Close releases GPIO resources.
func (s *RealMotionSensor) Close() error {
	var errs []error
	if s.line != nil {
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close PIR pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
