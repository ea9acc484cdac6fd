package hardware

import (
	"errors"
	"testing"
)

func TestSimActuator(t *testing.T) {
	a := NewSimActuator()
	if a.IsOn() {
		t.Error("actuator starts on")
	}
	if err := a.Set(true); err != nil {
		t.Fatal(err)
	}
	if !a.IsOn() {
		t.Error("Set(true) not reflected")
	}
	if err := a.Set(false); err != nil {
		t.Fatal(err)
	}
	if a.IsOn() {
		t.Error("Set(false) not reflected")
	}
}

func TestSimMotionSensorTriggerOnce(t *testing.T) {
	s := NewSimMotionSensor()

	if present, _ := s.Read(); present {
		t.Error("motion present without trigger")
	}

	s.Trigger()
	if present, _ := s.Read(); !present {
		t.Error("trigger not visible on next read")
	}
	// One trigger yields exactly one reading
	if present, _ := s.Read(); present {
		t.Error("trigger visible on second read")
	}
}

func TestFakeActuatorRecordsLevels(t *testing.T) {
	f := &FakeActuator{}

	f.Set(true)
	f.Set(false)
	f.Set(true)

	if len(f.Levels) != 3 || !f.Last() {
		t.Errorf("levels = %v", f.Levels)
	}

	f.SetError = errors.New("gpio busy")
	if err := f.Set(false); err == nil {
		t.Error("SetError not returned")
	}
	if len(f.Levels) != 3 {
		t.Error("failed Set recorded a level")
	}
}

func TestFakeMotionSensorRepeatsLastSample(t *testing.T) {
	f := &FakeMotionSensor{Samples: []bool{false, true}}

	want := []bool{false, true, true, true}
	for i, w := range want {
		got, err := f.Read()
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Errorf("read %d = %v, want %v", i, got, w)
		}
	}
}

func TestIsDark(t *testing.T) {
	tests := []struct {
		level     uint8
		threshold uint8
		want      bool
	}{
		{0, 80, true},
		{79, 80, true},
		{80, 80, false},
		{128, 80, false},
		{255, 80, false},
	}
	for _, tt := range tests {
		if got := IsDark(tt.level, tt.threshold); got != tt.want {
			t.Errorf("IsDark(%d, %d) = %v, want %v", tt.level, tt.threshold, got, tt.want)
		}
	}
}

func TestSetupSimMode(t *testing.T) {
	d, err := Setup(ModeSim, "", 18, 27, true, "")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if !d.ActuatorSimulated() || !d.MotionSimulated() {
		t.Error("sim mode did not produce simulated devices")
	}
	if d.Ambient == nil {
		t.Error("ambient enabled but not opened")
	}
	level, err := d.Ambient.Level()
	if err != nil || level != 128 {
		t.Errorf("sim ambient level = %d, %v", level, err)
	}
}

func TestSetupRejectsUnknownMode(t *testing.T) {
	if _, err := Setup("banana", "", 18, 27, false, ""); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestSimCameraSnapshot(t *testing.T) {
	c := NewSimCamera()

	frame, err := c.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	// JPEG SOI marker
	if len(frame) < 2 || frame[0] != 0xFF || frame[1] != 0xD8 {
		t.Error("snapshot is not a JPEG")
	}

	// Frames are cached briefly
	frame2, err := c.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if &frame[0] != &frame2[0] {
		t.Error("snapshot re-encoded inside the cache window")
	}

	st := c.Status()
	if !st.Available || !st.SimulationMode {
		t.Errorf("status = %+v", st)
	}
}
