package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smartlamp/lampd/internal/actionlog"
	"github.com/smartlamp/lampd/internal/auth"
	"github.com/smartlamp/lampd/internal/controller"
	"github.com/smartlamp/lampd/internal/hardware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// lightState is the wire form of a controller snapshot
type lightState struct {
	IsOn           bool       `json:"is_on"`
	Mode           string     `json:"mode"`
	ChangedBy      string     `json:"changed_by,omitempty"`
	ChangedAt      time.Time  `json:"changed_at"`
	TimerDeadline  *time.Time `json:"timer_deadline,omitempty"`
	SimulationMode bool       `json:"simulation_mode"`
}

func (s *Server) lightStateJSON(snap controller.Snapshot) lightState {
	ls := lightState{
		IsOn:           snap.On,
		Mode:           snap.Mode.String(),
		ChangedBy:      string(snap.ChangedBy),
		ChangedAt:      snap.ChangedAt,
		SimulationMode: s.deps.Devices.ActuatorSimulated(),
	}
	if !snap.Deadline.IsZero() {
		d := snap.Deadline
		ls.TimerDeadline = &d
	}
	return ls
}

// ============== Authentication ==============

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, token, err := s.deps.Auth.Register(req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusBadRequest, "username or email already registered")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "password too short")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "username and email are required")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, token, err := s.deps.Auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing bearer token")
		return
	}
	if err := s.deps.Auth.Revoke(token); err != nil {
		writeError(w, http.StatusBadRequest, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "successfully logged out"})
}

// ============== Light ==============

func (s *Server) handleLightStatus(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	snap := s.deps.Controller.Snapshot()

	writeJSON(w, http.StatusOK, map[string]any{
		"state": s.lightStateJSON(snap),
		"user":  id.Username,
	})
}

func (s *Server) handleLightToggle(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)

	snap, err := s.deps.Controller.Toggle(id.UserID, id.Username)
	s.writeTransition(w, id.Username, "manual", snap, err)
}

func (s *Server) handleLightTimer(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)

	seconds, ok := intParam(r, "seconds")
	if !ok {
		writeError(w, http.StatusBadRequest, "seconds is required")
		return
	}
	if seconds <= 0 || seconds > 86400 {
		writeError(w, http.StatusBadRequest, "timer must be between 1 second and 24 hours")
		return
	}

	snap, err := s.deps.Controller.SetTimer(time.Duration(seconds)*time.Second, id.UserID, id.Username)
	if errors.Is(err, controller.ErrLightOff) {
		writeError(w, http.StatusBadRequest, "light is off, cannot arm timer")
		return
	}
	s.writeTransition(w, id.Username, "timer", snap, err)
}

// writeTransition maps a transition result to a response. A storage failure
// reports the (authoritative) new state along with a log_error; a hardware
// failure means nothing changed.
func (s *Server) writeTransition(w http.ResponseWriter, username, source string, snap controller.Snapshot, err error) {
	var storErr *controller.StorageError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"state":  s.lightStateJSON(snap),
			"user":   username,
			"source": source,
		})
	case errors.As(err, &storErr):
		writeJSON(w, http.StatusOK, map[string]any{
			"state":     s.lightStateJSON(snap),
			"user":      username,
			"source":    source,
			"log_error": "action was applied but could not be recorded",
		})
	default:
		writeError(w, http.StatusServiceUnavailable, "hardware unavailable")
	}
}

func (s *Server) handleLightHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, ok := intParam(r, "limit"); ok {
		limit = v
	}
	if limit <= 0 || limit > 500 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	var entries []actionlog.Entry
	var err error
	if actor := r.URL.Query().Get("actor"); actor != "" {
		a := actionlog.Actor(strings.ToUpper(actor))
		switch a {
		case actionlog.ActorManual, actionlog.ActorMotion, actionlog.ActorTimer:
		default:
			writeError(w, http.StatusBadRequest, "actor must be one of MANUAL, MOTION, TIMER")
			return
		}
		entries, err = s.deps.Log.ByActor(a, limit)
	} else {
		entries, err = s.deps.Log.Recent(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	type historyEntry struct {
		ID         int64     `json:"id"`
		Actor      string    `json:"actor"`
		Action     string    `json:"action"`
		Username   string    `json:"username,omitempty"`
		Detail     string    `json:"detail,omitempty"`
		OccurredAt time.Time `json:"occurred_at"`
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			ID:         e.ID,
			Actor:      string(e.Actor),
			Action:     string(e.Action),
			Username:   e.Username,
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": out,
		"total":   len(out),
	})
}

func (s *Server) handleAmbient(w http.ResponseWriter, r *http.Request) {
	if s.deps.Devices.Ambient == nil {
		writeError(w, http.StatusServiceUnavailable, "ambient sensor disabled")
		return
	}

	level, err := s.deps.Devices.Ambient.Level()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "ambient sensor read failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"level":     level,
		"percent":   int(float64(level) / 255 * 100),
		"is_dark":   hardware.IsDark(level, s.deps.DarkThreshold),
		"threshold": s.deps.DarkThreshold,
	})
}

// ============== Motion ==============

func (s *Server) handleMotionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Motion.Status())
}

type motionSettingsRequest struct {
	Enabled *bool `json:"enabled"`
	Timeout *int  `json:"timeout"`
}

func (s *Server) handleMotionSettings(w http.ResponseWriter, r *http.Request) {
	var req motionSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Timeout != nil && (*req.Timeout <= 0 || *req.Timeout > 300) {
		writeError(w, http.StatusBadRequest, "timeout must be between 1 and 300 seconds")
		return
	}

	if req.Enabled != nil {
		s.deps.Motion.SetEnabled(*req.Enabled)
	}
	if req.Timeout != nil {
		if err := s.deps.Motion.SetTimeout(time.Duration(*req.Timeout) * time.Second); err != nil {
			writeError(w, http.StatusBadRequest, "invalid timeout")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "motion sensor settings updated",
		"settings": s.deps.Motion.Status(),
	})
}

func (s *Server) handleMotionSimulate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Motion.Simulate(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "motion simulated"})
}

func (s *Server) handleMotionPause(w http.ResponseWriter, r *http.Request) {
	s.deps.Motion.PauseAlerts()
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts_paused": true,
		"message":       "motion alerts paused",
	})
}

func (s *Server) handleMotionResume(w http.ResponseWriter, r *http.Request) {
	s.deps.Motion.ResumeAlerts()
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts_paused": false,
		"message":       "motion alerts resumed",
	})
}

// ============== Camera ==============

func (s *Server) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Camera == nil {
		writeError(w, http.StatusServiceUnavailable, "camera disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Camera.Status())
}

func (s *Server) handleCameraSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.deps.Camera == nil {
		writeError(w, http.StatusServiceUnavailable, "camera disabled")
		return
	}

	frame, err := s.deps.Camera.Snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "camera unavailable")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(frame)
}

func (s *Server) handleCameraRestart(w http.ResponseWriter, r *http.Request) {
	if s.deps.Camera == nil {
		writeError(w, http.StatusServiceUnavailable, "camera disabled")
		return
	}
	if err := s.deps.Camera.Restart(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "camera restart failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "camera restart attempted",
		"status":  s.deps.Camera.Status(),
	})
}

// ============== WebSocket ==============

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "token query parameter required")
		return
	}

	id, err := s.deps.Auth.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	s.deps.Hub.Serve(w, r, id.UserID, id.Username)
}

// ============== Health ==============

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	motion := s.deps.Motion.Status()

	mode := func(sim bool) string {
		if sim {
			return "simulation"
		}
		return "hardware"
	}

	resp := map[string]any{
		"status":                "healthy",
		"version":               Version,
		"light_gpio_mode":       mode(s.deps.Devices.ActuatorSimulated()),
		"motion_sensor_mode":    mode(s.deps.Devices.MotionSimulated()),
		"motion_enabled":        motion.Enabled,
		"motion_calibrated":     motion.Calibrated,
		"motion_alerts_paused":  motion.AlertsPaused,
		"websocket_connections": s.deps.Hub.Count(),
	}
	if s.deps.Camera != nil {
		st := s.deps.Camera.Status()
		resp["camera_mode"] = mode(st.SimulationMode)
		resp["camera_available"] = st.Available
	}

	writeJSON(w, http.StatusOK, resp)
}

// intParam reads an integer from the JSON body field or query parameter of
// the same name. Body wins when both are present.
func intParam(r *http.Request, name string) (int, bool) {
	if r.Body != nil && r.Header.Get("Content-Type") == "application/json" {
		var body map[string]json.Number
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			if v, ok := body[name]; ok {
				if n, err := v.Int64(); err == nil {
					return int(n), true
				}
			}
		}
	}
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}
