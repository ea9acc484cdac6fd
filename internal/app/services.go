package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartlamp/lampd/internal/actionlog"
	"github.com/smartlamp/lampd/internal/api"
	"github.com/smartlamp/lampd/internal/auth"
	"github.com/smartlamp/lampd/internal/config"
	"github.com/smartlamp/lampd/internal/controller"
	"github.com/smartlamp/lampd/internal/db"
	"github.com/smartlamp/lampd/internal/eventbus"
	"github.com/smartlamp/lampd/internal/hardware"
	"github.com/smartlamp/lampd/internal/ws"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB        *db.DB
	ActionLog *actionlog.Log
	Devices   *hardware.Devices
	Camera    hardware.Camera
	Bus       *eventbus.Bus
	Hub       *ws.Hub

	// Auth
	AuthStore *auth.Store
	Auth      *auth.Manager

	// Core logic
	Controller *controller.Controller
	Motion     *MotionService

	// HTTP surface
	API *api.Server
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize action log
	s.ActionLog = actionlog.New(database.DB)

	// Initialize auth
	secret := cfg.Auth.Secret
	if secret == "" {
		// Ephemeral secret: tokens do not survive a restart
		buf := make([]byte, 32)
		rand.Read(buf)
		secret = hex.EncodeToString(buf)
		log.Warn().Msg("No auth secret configured, generated an ephemeral one; set LAMPD_SECRET for stable sessions")
	}
	s.AuthStore = auth.NewStore(database.DB)
	s.Auth = auth.NewManager(s.AuthStore, secret, cfg.Auth.TokenTTL.Duration(), cfg.Auth.MinPassword)

	// Open hardware (falls back to simulation in auto mode)
	s.Devices, err = hardware.Setup(
		cfg.Hardware.Mode,
		cfg.Hardware.Chip,
		cfg.Hardware.LEDPin,
		cfg.Hardware.PIRPin,
		cfg.Ambient.Enabled,
		cfg.Ambient.SPIDev,
	)
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.Camera.Enabled {
		s.Camera = hardware.NewSimCamera()
	}

	// Event bus and WebSocket hub
	s.Bus = eventbus.New()
	s.Hub = ws.NewHub()
	s.wireAlerts()

	// The controller owns the single light state instance
	s.Controller = controller.New(
		s.Devices.Actuator,
		s.ActionLog,
		cfg.Motion.Timeout.Duration(),
		controller.WithPublisher(s.Bus),
	)

	// Motion automation service
	s.Motion = NewMotionService(cfg, s.Devices, s.Controller, s.Bus)

	// HTTP API
	s.API = api.NewServer(cfg.Server.Host, cfg.Server.Port, api.Deps{
		Auth:          s.Auth,
		Controller:    s.Controller,
		Log:           s.ActionLog,
		Motion:        s.Motion,
		Devices:       s.Devices,
		Camera:        s.Camera,
		Hub:           s.Hub,
		DarkThreshold: cfg.Ambient.DarkThreshold,
		LoginRate:     cfg.Auth.LoginRate,
		LoginBurst:    cfg.Auth.LoginBurst,
	})

	return s, nil
}

// wireAlerts routes bus events to connected WebSocket clients.
func (s *Services) wireAlerts() {
	s.Bus.Subscribe(eventbus.EventTypeLightChanged, func(e eventbus.Event) {
		msg := map[string]any{"type": "light_update"}
		for k, v := range e.Data {
			msg[k] = v
		}
		s.Hub.Broadcast(msg)
	})

	s.Bus.Subscribe(eventbus.EventTypeMotionDetected, func(e eventbus.Event) {
		msg := map[string]any{"type": "motion_alert"}
		for k, v := range e.Data {
			msg[k] = v
		}
		s.Hub.Broadcast(msg)
	})
}

// Start starts all background services.
// The onFatalError callback is called when the API server fails.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	go func() {
		if err := s.API.Run(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			onFatalError(err)
		}
	}()

	s.Motion.Start(ctx)

	go s.runTickLoop(ctx)

	return nil
}

// runTickLoop periodically evaluates the auto-off deadline.
func (s *Services) runTickLoop(ctx context.Context) {
	interval := s.cfg.TickInterval.Duration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, fired, err := s.Controller.Tick()
			if err != nil {
				log.Error().Err(err).Msg("Timer tick failed")
				continue
			}
			if fired {
				log.Info().Str("mode", snap.Mode.String()).Msg("Auto-off deadline reached, light turned off")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Hub != nil {
		s.Hub.CloseAll()
	}
	if s.Bus != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(shutdownCtx)
		cancel()
	}
	if s.Camera != nil {
		s.Camera.Close()
	}
	if s.Devices != nil {
		s.Devices.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
