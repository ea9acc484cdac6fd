// Package api translates HTTP requests into controller, auth and sensor
// calls. Route surface mirrors the course frontend: /auth/*, /light/*,
// /motion/*, /camera/*, /ws and /health.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/smartlamp/lampd/internal/actionlog"
	"github.com/smartlamp/lampd/internal/auth"
	"github.com/smartlamp/lampd/internal/controller"
	"github.com/smartlamp/lampd/internal/hardware"
	"github.com/smartlamp/lampd/internal/ws"
)

// Version reported by /health
const Version = "1.0.0"

// MotionStatus describes the motion automation state for API responses.
type MotionStatus struct {
	Enabled        bool `json:"enabled"`
	Calibrated     bool `json:"calibrated"`
	MotionActive   bool `json:"motion_active"`
	SimulationMode bool `json:"simulation_mode"`
	AlertsPaused   bool `json:"alerts_paused"`
	TimeoutSeconds int  `json:"timeout"`
}

// MotionControl is the surface the motion service exposes to the API.
type MotionControl interface {
	Status() MotionStatus
	SetEnabled(enabled bool)
	SetTimeout(d time.Duration) error
	Simulate() error
	PauseAlerts()
	ResumeAlerts()
}

// Deps bundles everything the API layer calls into.
type Deps struct {
	Auth       *auth.Manager
	Controller *controller.Controller
	Log        *actionlog.Log
	Motion     MotionControl
	Devices    *hardware.Devices
	Camera     hardware.Camera // nil when disabled
	Hub        *ws.Hub

	DarkThreshold uint8
	LoginRate     float64
	LoginBurst    int
}

// Server is the HTTP API server.
type Server struct {
	addr       string
	deps       Deps
	httpServer *http.Server
	limiter    *ipLimiter
}

// NewServer creates the API server and wires all routes.
func NewServer(host string, port int, deps Deps) *Server {
	s := &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		deps:    deps,
		limiter: newIPLimiter(deps.LoginRate, deps.LoginBurst),
	}

	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.limiter.wrap(s.handleLogin)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	// Token via query parameter: <img>/WebSocket clients cannot set headers
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(s.requireAuth)

	protected.HandleFunc("/light/status", s.handleLightStatus).Methods(http.MethodGet)
	protected.HandleFunc("/light/toggle", s.handleLightToggle).Methods(http.MethodPost)
	protected.HandleFunc("/light/timer", s.handleLightTimer).Methods(http.MethodPost)
	protected.HandleFunc("/light/history", s.handleLightHistory).Methods(http.MethodGet)
	protected.HandleFunc("/light/ambient", s.handleAmbient).Methods(http.MethodGet)

	protected.HandleFunc("/motion/status", s.handleMotionStatus).Methods(http.MethodGet)
	protected.HandleFunc("/motion/settings", s.handleMotionSettings).Methods(http.MethodPost)
	protected.HandleFunc("/motion/simulate", s.handleMotionSimulate).Methods(http.MethodPost)
	protected.HandleFunc("/motion/pause", s.handleMotionPause).Methods(http.MethodPost)
	protected.HandleFunc("/motion/resume", s.handleMotionResume).Methods(http.MethodPost)

	protected.HandleFunc("/camera/status", s.handleCameraStatus).Methods(http.MethodGet)
	protected.HandleFunc("/camera/snapshot", s.handleCameraSnapshot).Methods(http.MethodGet)
	protected.HandleFunc("/camera/restart", s.handleCameraRestart).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: r,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	log.Info().Str("addr", s.addr).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
