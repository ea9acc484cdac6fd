package hardware

import "sync"

// SimActuator is an in-memory actuator used when no GPIO hardware is
// available. Actuation calls are accepted and remembered so the rest of the
// system keeps working.
type SimActuator struct {
	mu sync.Mutex
	on bool
}

// NewSimActuator creates a simulated actuator, initially off.
func NewSimActuator() *SimActuator {
	return &SimActuator{}
}

// Set records the requested level.
func (a *SimActuator) Set(on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.on = on
	return nil
}

// IsOn reports the last level set.
func (a *SimActuator) IsOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

// Close is a no-op.
func (a *SimActuator) Close() error { return nil }

// SimMotionSensor is an in-memory PIR stand-in. Motion can be injected
// through Trigger, which holds the signal for one read (used by the
// /motion/simulate endpoint and tests).
type SimMotionSensor struct {
	mu      sync.Mutex
	present bool
}

// NewSimMotionSensor creates a simulated motion sensor with no motion.
func NewSimMotionSensor() *SimMotionSensor {
	return &SimMotionSensor{}
}

// Trigger injects a single motion pulse.
func (s *SimMotionSensor) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.present = true
}

// Read returns the injected state and clears it, so one Trigger produces
// one motion reading.
func (s *SimMotionSensor) Read() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	present := s.present
	s.present = false
	return present, nil
}

// Close is a no-op.
func (s *SimMotionSensor) Close() error { return nil }

// SimAmbientSensor reports a fixed mid-scale brightness.
type SimAmbientSensor struct {
	level uint8
}

// NewSimAmbientSensor creates a simulated ambient sensor.
func NewSimAmbientSensor() *SimAmbientSensor {
	return &SimAmbientSensor{level: 128}
}

// Level returns the fixed simulated brightness.
func (s *SimAmbientSensor) Level() (uint8, error) {
	return s.level, nil
}

// Close is a no-op.
func (s *SimAmbientSensor) Close() error { return nil }
