package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartlamp/lampd/internal/api"
	"github.com/smartlamp/lampd/internal/config"
	"github.com/smartlamp/lampd/internal/controller"
	"github.com/smartlamp/lampd/internal/eventbus"
	"github.com/smartlamp/lampd/internal/hardware"
)

var (
	errMotionDisabled = errors.New("motion sensor is disabled")
	errAlertsPaused   = errors.New("alerts are paused")
)

// MotionService polls the PIR sensor and feeds readings into the controller.
// Until the calibration warm-up window has elapsed, readings are treated as
// "no motion" to mask the sensor's power-on transient. Pausing gates both
// alerts and motion-triggered transitions; it never reaches into the
// controller's manual/timer state.
type MotionService struct {
	sensor    hardware.MotionSensor
	simulated bool
	ctrl      *controller.Controller
	bus       *eventbus.Bus

	calibration  time.Duration
	pollInterval time.Duration

	mu           sync.Mutex
	enabled      bool
	paused       bool
	motionActive bool
	startedAt    time.Time
}

// NewMotionService creates the motion service. It does not start polling
// until Start is called.
func NewMotionService(cfg *config.Config, devices *hardware.Devices, ctrl *controller.Controller, bus *eventbus.Bus) *MotionService {
	return &MotionService{
		sensor:       devices.Motion,
		simulated:    devices.MotionSimulated(),
		ctrl:         ctrl,
		bus:          bus,
		calibration:  cfg.Motion.Calibration.Duration(),
		pollInterval: cfg.Motion.PollInterval.Duration(),
		enabled:      cfg.Motion.IsEnabled(),
	}
}

// Start begins the polling loop.
func (s *MotionService) Start(ctx context.Context) {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	if !s.simulated {
		log.Info().Dur("calibration", s.calibration).Msg("PIR calibrating, readings ignored during warm-up")
	}

	go s.run(ctx)
}

func (s *MotionService) run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *MotionService) poll() {
	present, err := s.sensor.Read()
	if err != nil {
		log.Warn().Err(err).Msg("Motion sensor read failed")
		return
	}

	s.mu.Lock()
	s.motionActive = present && s.calibratedLocked()
	enabled := s.enabled
	paused := s.paused
	calibrated := s.calibratedLocked()
	s.mu.Unlock()

	if !present || !enabled || !calibrated || paused {
		return
	}

	s.trigger()
}

// trigger feeds one motion reading to the controller and raises an alert
// on the OFF to on_motion transition.
func (s *MotionService) trigger() {
	snap, fired, err := s.ctrl.MotionDetected()
	if err != nil {
		log.Error().Err(err).Msg("Motion transition failed")
	}
	if !fired {
		return
	}

	log.Info().Time("deadline", snap.Deadline).Msg("Motion detected, light turned on")
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeMotionDetected,
		Data: map[string]interface{}{
			"detected_at": time.Now(),
			"deadline":    snap.Deadline,
		},
	})
}

// Status reports the motion automation state.
func (s *MotionService) Status() api.MotionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return api.MotionStatus{
		Enabled:        s.enabled,
		Calibrated:     s.calibratedLocked(),
		MotionActive:   s.motionActive,
		SimulationMode: s.simulated,
		AlertsPaused:   s.paused,
		TimeoutSeconds: int(s.ctrl.MotionTimeout().Seconds()),
	}
}

// SetEnabled turns motion automation on or off.
func (s *MotionService) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	log.Info().Bool("enabled", enabled).Msg("Motion automation toggled")
}

// SetTimeout updates the motion auto-off duration.
func (s *MotionService) SetTimeout(d time.Duration) error {
	return s.ctrl.SetMotionTimeout(d)
}

// Simulate injects one motion reading, as if the PIR had fired.
func (s *MotionService) Simulate() error {
	s.mu.Lock()
	enabled := s.enabled
	paused := s.paused
	s.mu.Unlock()

	if !enabled {
		return errMotionDisabled
	}
	if paused {
		return errAlertsPaused
	}

	log.Info().Msg("Simulating motion detection")
	s.trigger()
	return nil
}

// PauseAlerts suppresses alerts and motion-triggered transitions, e.g.
// while the user is watching the camera.
func (s *MotionService) PauseAlerts() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	log.Info().Msg("Motion alerts paused")
}

// ResumeAlerts re-enables alerts and motion-triggered transitions.
func (s *MotionService) ResumeAlerts() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	log.Info().Msg("Motion alerts resumed")
}

// calibratedLocked must be called with s.mu held. A simulated sensor needs
// no warm-up.
func (s *MotionService) calibratedLocked() bool {
	if s.simulated {
		return true
	}
	return !s.startedAt.IsZero() && time.Since(s.startedAt) >= s.calibration
}
