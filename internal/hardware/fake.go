package hardware

import "errors"

// FakeActuator is a test double that records every Set call.
type FakeActuator struct {
	// Levels contains the sequence of levels set.
	Levels []bool

	// SetError, if set, will be returned by Set()
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// Set records the requested level.
func (f *FakeActuator) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, on)
	return nil
}

// Close marks the actuator as closed.
func (f *FakeActuator) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recent level set, or false if none.
func (f *FakeActuator) Last() bool {
	if len(f.Levels) == 0 {
		return false
	}
	return f.Levels[len(f.Levels)-1]
}

// FakeMotionSensor is a test double that returns scripted readings.
type FakeMotionSensor struct {
	// Samples contains scripted readings. Each Read consumes the next one;
	// when exhausted, the last sample repeats.
	Samples []bool

	index int

	// ReadError, if set, will be returned by Read()
	ReadError error

	// Closed tracks if Close was called
	Closed bool
}

// Read returns the next scripted sample.
func (f *FakeMotionSensor) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}
	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Close marks the sensor as closed.
func (f *FakeMotionSensor) Close() error {
	f.Closed = true
	return nil
}
