// Package controller holds the single authority for the light's state.
// It reconciles three independent trigger sources - manual toggles, a
// timer-based auto-off, and motion detection - into one consistent state
// behind one mutex, so no caller ever observes half of a transition.
//
// Precedence: manual control wins. Motion cannot override a manually lit
// light, and a manual toggle clears any pending deadline.
package controller

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartlamp/lampd/internal/actionlog"
	"github.com/smartlamp/lampd/internal/eventbus"
	"github.com/smartlamp/lampd/internal/hardware"
)

var (
	// ErrLightOff is returned when a timer is armed while the light is off.
	ErrLightOff = errors.New("light is off, cannot arm timer")

	// ErrBadDuration is returned for non-positive timer durations.
	ErrBadDuration = errors.New("timer duration must be positive")
)

// StorageError wraps an action-log append failure. The in-memory state
// change is authoritative even when logging fails; callers report the
// failure instead of rolling back.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("action log append failed: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Mode represents the light's reconciled state.
type Mode int

const (
	ModeOff Mode = iota
	ModeOnManual
	ModeOnTimed
	ModeOnMotion
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeOnManual:
		return "on_manual"
	case ModeOnTimed:
		return "on_timed"
	case ModeOnMotion:
		return "on_motion"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the light state at one instant.
type Snapshot struct {
	On        bool
	Mode      Mode
	ChangedAt time.Time
	ChangedBy actionlog.Actor
	// Deadline is the auto-off deadline; zero means none. Set only while
	// the mode is ModeOnTimed or ModeOnMotion.
	Deadline time.Time
}

// Recorder appends transition entries. Satisfied by *actionlog.Log.
type Recorder interface {
	Append(actionlog.Entry) error
}

// Publisher pushes state-change events. Satisfied by *eventbus.Bus.
type Publisher interface {
	Publish(eventbus.Event)
}

// Controller owns the single light state instance.
type Controller struct {
	mu sync.Mutex

	actuator hardware.Actuator
	rec      Recorder
	bus      Publisher
	now      func() time.Time

	motionTimeout time.Duration

	mode      Mode
	changedAt time.Time
	changedBy actionlog.Actor
	deadline  time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithPublisher attaches an event bus for state-change notifications.
func WithPublisher(bus Publisher) Option {
	return func(c *Controller) { c.bus = bus }
}

// New creates a Controller starting in ModeOff.
func New(actuator hardware.Actuator, rec Recorder, motionTimeout time.Duration, opts ...Option) *Controller {
	c := &Controller{
		actuator:      actuator,
		rec:           rec,
		now:           time.Now,
		motionTimeout: motionTimeout,
		mode:          ModeOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.changedAt = c.now()
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// MotionTimeout returns the current motion auto-off duration.
func (c *Controller) MotionTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motionTimeout
}

// SetMotionTimeout updates the auto-off duration for future motion
// activations. An already armed deadline is left untouched.
func (c *Controller) SetMotionTimeout(d time.Duration) error {
	if d <= 0 {
		return ErrBadDuration
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.motionTimeout = d
	return nil
}

// Toggle flips the light on manual command. Always accepted: OFF goes to
// ModeOnManual, any ON mode goes to OFF with the deadline cleared.
func (c *Controller) Toggle(userID int64, username string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeOff {
		return c.applyLocked(ModeOnManual, actionlog.ActorManual, time.Time{}, actionlog.Entry{
			Actor:    actionlog.ActorManual,
			Action:   actionlog.ActionOn,
			UserID:   &userID,
			Username: username,
			Detail:   "manual_toggle",
		})
	}

	return c.applyLocked(ModeOff, actionlog.ActorManual, time.Time{}, actionlog.Entry{
		Actor:    actionlog.ActorManual,
		Action:   actionlog.ActionOff,
		UserID:   &userID,
		Username: username,
		Detail:   "manual_toggle",
	})
}

// SetTimer arms the auto-off deadline at now+d. Valid only while the light
// is on; returns ErrLightOff otherwise without mutating state or logging.
func (c *Controller) SetTimer(d time.Duration, userID int64, username string) (Snapshot, error) {
	if d <= 0 {
		return Snapshot{}, ErrBadDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeOff {
		return c.snapshotLocked(), ErrLightOff
	}

	deadline := c.now().Add(d)
	return c.applyLocked(ModeOnTimed, actionlog.ActorManual, deadline, actionlog.Entry{
		Actor:    actionlog.ActorManual,
		Action:   actionlog.ActionOn,
		UserID:   &userID,
		Username: username,
		Detail:   fmt.Sprintf("timer_set_%ds", int(d.Seconds())),
	})
}

// MotionDetected reports a motion reading. From OFF it turns the light on
// in ModeOnMotion with the motion-timeout deadline. While already in
// ModeOnMotion it only pushes the deadline forward - debounce by deadline
// refresh, no additional log entry. Manually lit modes are authoritative
// and ignore motion.
//
// The returned bool is true only for the OFF to ModeOnMotion transition.
func (c *Controller) MotionDetected() (Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case ModeOnManual, ModeOnTimed:
		// Manual wins
		return c.snapshotLocked(), false, nil

	case ModeOnMotion:
		c.deadline = c.now().Add(c.motionTimeout)
		return c.snapshotLocked(), false, nil
	}

	deadline := c.now().Add(c.motionTimeout)
	snap, err := c.applyLocked(ModeOnMotion, actionlog.ActorMotion, deadline, actionlog.Entry{
		Actor:  actionlog.ActorMotion,
		Action: actionlog.ActionOn,
		Detail: "motion_detected",
	})
	return snap, err == nil || isStorage(err), err
}

// Tick evaluates the auto-off deadline. When the deadline has passed in
// ModeOnTimed or ModeOnMotion, the light turns off with actor TIMER. A tick
// with no armed deadline, or in OFF/ModeOnManual, is a no-op.
//
// The returned bool is true when the deadline fired.
func (c *Controller) Tick() (Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeOnTimed && c.mode != ModeOnMotion {
		return c.snapshotLocked(), false, nil
	}
	if c.deadline.IsZero() || c.now().Before(c.deadline) {
		return c.snapshotLocked(), false, nil
	}

	snap, err := c.applyLocked(ModeOff, actionlog.ActorTimer, time.Time{}, actionlog.Entry{
		Actor:  actionlog.ActorTimer,
		Action: actionlog.ActionOff,
		Detail: "timer_expired",
	})
	return snap, err == nil || isStorage(err), err
}

// applyLocked performs one atomic transition: actuator first (a hardware
// failure aborts with no state change), then all state fields together,
// then the log append and event publish. A failed append does not roll the
// state back; the error is surfaced to the caller.
func (c *Controller) applyLocked(mode Mode, actor actionlog.Actor, deadline time.Time, entry actionlog.Entry) (Snapshot, error) {
	on := mode != ModeOff
	if err := c.actuator.Set(on); err != nil {
		return c.snapshotLocked(), fmt.Errorf("actuator: %w", err)
	}

	now := c.now()
	c.mode = mode
	c.changedAt = now
	c.changedBy = actor
	c.deadline = deadline

	snap := c.snapshotLocked()
	c.publish(snap)

	entry.OccurredAt = now
	if err := c.rec.Append(entry); err != nil {
		log.Error().Err(err).
			Str("actor", string(entry.Actor)).
			Str("action", string(entry.Action)).
			Msg("Failed to append action log entry")
		return snap, &StorageError{Err: err}
	}

	return snap, nil
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		On:        c.mode != ModeOff,
		Mode:      c.mode,
		ChangedAt: c.changedAt,
		ChangedBy: c.changedBy,
		Deadline:  c.deadline,
	}
}

func (c *Controller) publish(snap Snapshot) {
	if c.bus == nil {
		return
	}
	data := map[string]interface{}{
		"is_on":      snap.On,
		"mode":       snap.Mode.String(),
		"changed_by": string(snap.ChangedBy),
		"changed_at": snap.ChangedAt,
	}
	if !snap.Deadline.IsZero() {
		data["deadline"] = snap.Deadline
	}
	c.bus.Publish(eventbus.Event{Type: eventbus.EventTypeLightChanged, Data: data})
}

func isStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
