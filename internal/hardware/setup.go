package hardware

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Mode selects how devices are opened at startup.
const (
	ModeAuto = "auto" // try real hardware, fall back to simulation
	ModeReal = "real" // real hardware or fail
	ModeSim  = "sim"  // simulation only
)

// Devices bundles the opened hardware capabilities. The Sim* fields are set
// when the corresponding device runs simulated, so callers can report the
// mode and inject test signals.
type Devices struct {
	Actuator Actuator
	Motion   MotionSensor
	Ambient  AmbientSensor

	SimActuator *SimActuator
	SimMotion   *SimMotionSensor
}

// ActuatorSimulated reports whether the actuator is the simulated one.
func (d *Devices) ActuatorSimulated() bool { return d.SimActuator != nil }

// MotionSimulated reports whether the motion sensor is the simulated one.
func (d *Devices) MotionSimulated() bool { return d.SimMotion != nil }

// Close releases all devices.
func (d *Devices) Close() {
	if d.Actuator != nil {
		if err := d.Actuator.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close actuator")
		}
	}
	if d.Motion != nil {
		if err := d.Motion.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close motion sensor")
		}
	}
	if d.Ambient != nil {
		if err := d.Ambient.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close ambient sensor")
		}
	}
}

// Setup opens the actuator, motion sensor and (optionally) the ambient
// sensor according to mode. In auto mode each device falls back to its
// simulated counterpart independently, so a missing PIR does not disable
// the LED.
func Setup(mode, chip string, ledPin, pirPin int, ambientEnabled bool, spiDev string) (*Devices, error) {
	d := &Devices{}

	switch mode {
	case ModeSim:
		d.useSimActuator()
		d.useSimMotion()
		if ambientEnabled {
			d.Ambient = NewSimAmbientSensor()
		}
		return d, nil

	case ModeReal, ModeAuto, "":
		// handled below
	default:
		return nil, fmt.Errorf("unknown hardware mode %q", mode)
	}

	act, err := NewRealActuator(chip, ledPin)
	if err != nil {
		if mode == ModeReal {
			return nil, fmt.Errorf("open actuator: %w", err)
		}
		log.Warn().Err(err).Int("pin", ledPin).Msg("GPIO actuator unavailable, using simulation")
		d.useSimActuator()
	} else {
		log.Info().Int("pin", ledPin).Str("chip", chip).Msg("LED actuator initialized")
		d.Actuator = act
	}

	pir, err := NewRealMotionSensor(chip, pirPin)
	if err != nil {
		if mode == ModeReal {
			d.Close()
			return nil, fmt.Errorf("open motion sensor: %w", err)
		}
		log.Warn().Err(err).Int("pin", pirPin).Msg("PIR sensor unavailable, using simulation")
		d.useSimMotion()
	} else {
		log.Info().Int("pin", pirPin).Str("chip", chip).Msg("PIR sensor initialized")
		d.Motion = pir
	}

	if ambientEnabled {
		adc, err := NewADC0834Sensor(spiDev)
		if err != nil {
			if mode == ModeReal {
				d.Close()
				return nil, fmt.Errorf("open ambient sensor: %w", err)
			}
			log.Warn().Err(err).Msg("Ambient sensor unavailable, using simulation")
			d.Ambient = NewSimAmbientSensor()
		} else {
			log.Info().Str("spi", spiDev).Msg("Ambient sensor initialized")
			d.Ambient = adc
		}
	}

	return d, nil
}

func (d *Devices) useSimActuator() {
	d.SimActuator = NewSimActuator()
	d.Actuator = d.SimActuator
}

func (d *Devices) useSimMotion() {
	d.SimMotion = NewSimMotionSensor()
	d.Motion = d.SimMotion
}
