package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartlamp/lampd/internal/actionlog"
	"github.com/smartlamp/lampd/internal/auth"
	"github.com/smartlamp/lampd/internal/controller"
	"github.com/smartlamp/lampd/internal/db"
	"github.com/smartlamp/lampd/internal/hardware"
	"github.com/smartlamp/lampd/internal/ws"
)

// fakeMotion implements MotionControl for handler tests
type fakeMotion struct {
	status    MotionStatus
	simulated int
	timeout   time.Duration
}

func (f *fakeMotion) Status() MotionStatus { return f.status }
func (f *fakeMotion) SetEnabled(enabled bool) {
	f.status.Enabled = enabled
}
func (f *fakeMotion) SetTimeout(d time.Duration) error {
	f.timeout = d
	f.status.TimeoutSeconds = int(d.Seconds())
	return nil
}
func (f *fakeMotion) Simulate() error { f.simulated++; return nil }
func (f *fakeMotion) PauseAlerts()    { f.status.AlertsPaused = true }
func (f *fakeMotion) ResumeAlerts()   { f.status.AlertsPaused = false }

type testEnv struct {
	srv    *httptest.Server
	motion *fakeMotion
	ctrl   *controller.Controller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	devices, err := hardware.Setup(hardware.ModeSim, "", 18, 27, true, "")
	if err != nil {
		t.Fatalf("setup hardware: %v", err)
	}

	alog := actionlog.New(database.DB)
	ctrl := controller.New(devices.Actuator, alog, 10*time.Second)
	authMgr := auth.NewManager(auth.NewStore(database.DB), "test-secret", time.Hour, 8)
	motion := &fakeMotion{status: MotionStatus{Enabled: true, Calibrated: true, SimulationMode: true, TimeoutSeconds: 10}}

	server := NewServer("127.0.0.1", 0, Deps{
		Auth:          authMgr,
		Controller:    ctrl,
		Log:           alog,
		Motion:        motion,
		Devices:       devices,
		Camera:        hardware.NewSimCamera(),
		Hub:           ws.NewHub(),
		DarkThreshold: 80,
		LoginRate:     1000,
		LoginBurst:    1000,
	})

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, motion: motion, ctrl: ctrl}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	resp, body := e.request(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correcthorse",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("no access_token in register response")
	}
	return token
}

func TestRegisterLoginFlow(t *testing.T) {
	e := newTestEnv(t)

	e.register(t, "alice")

	// Duplicate registration is rejected
	resp, _ := e.request(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "correcthorse",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate register status = %d, want 400", resp.StatusCode)
	}

	// Login with correct and wrong credentials
	resp, body := e.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "correcthorse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("login status = %d, want 200", resp.StatusCode)
	}
	if body["access_token"] == "" {
		t.Error("login returned no token")
	}

	resp, _ = e.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/light/status", "/motion/status", "/camera/status"} {
		resp, _ := e.request(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token status = %d, want 401", path, resp.StatusCode)
		}
	}

	resp, _ := e.request(t, http.MethodGet, "/light/status", "bogus-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bogus token status = %d, want 401", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	resp, _ := e.request(t, http.MethodPost, "/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp, _ = e.request(t, http.MethodGet, "/light/status", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("revoked token status = %d, want 401", resp.StatusCode)
	}
}

func TestToggleAndStatus(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	resp, body := e.request(t, http.MethodPost, "/light/toggle", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle status = %d", resp.StatusCode)
	}
	state := body["state"].(map[string]any)
	if state["is_on"] != true || state["mode"] != "on_manual" {
		t.Errorf("after toggle: %v", state)
	}
	if state["simulation_mode"] != true {
		t.Error("simulation_mode not reported")
	}

	resp, body = e.request(t, http.MethodGet, "/light/status", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status status = %d", resp.StatusCode)
	}
	state = body["state"].(map[string]any)
	if state["is_on"] != true {
		t.Errorf("status after toggle: %v", state)
	}

	resp, body = e.request(t, http.MethodPost, "/light/toggle", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatal("second toggle failed")
	}
	state = body["state"].(map[string]any)
	if state["is_on"] != false || state["mode"] != "off" {
		t.Errorf("after second toggle: %v", state)
	}
}

func TestTimerEndpoint(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	// Timer while off is a precondition failure
	resp, _ := e.request(t, http.MethodPost, "/light/timer", token, map[string]int{"seconds": 30})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("timer while off status = %d, want 400", resp.StatusCode)
	}

	// Out-of-range durations are rejected
	e.request(t, http.MethodPost, "/light/toggle", token, nil)
	for _, secs := range []int{0, -5, 90000} {
		resp, _ := e.request(t, http.MethodPost, "/light/timer", token, map[string]int{"seconds": secs})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("timer %ds status = %d, want 400", secs, resp.StatusCode)
		}
	}

	resp, body := e.request(t, http.MethodPost, "/light/timer", token, map[string]int{"seconds": 30})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("timer status = %d", resp.StatusCode)
	}
	state := body["state"].(map[string]any)
	if state["mode"] != "on_timed" {
		t.Errorf("mode = %v, want on_timed", state["mode"])
	}
	if state["timer_deadline"] == nil {
		t.Error("no timer_deadline in response")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	e.request(t, http.MethodPost, "/light/toggle", token, nil)
	e.request(t, http.MethodPost, "/light/toggle", token, nil)

	resp, body := e.request(t, http.MethodGet, "/light/history?limit=10", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	history := body["history"].([]any)
	if len(history) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history))
	}
	newest := history[0].(map[string]any)
	if newest["action"] != "OFF" || newest["actor"] != "MANUAL" || newest["username"] != "alice" {
		t.Errorf("newest entry: %v", newest)
	}
}

func TestHistoryFilterByActor(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	if _, _, err := e.ctrl.MotionDetected(); err != nil {
		t.Fatal(err)
	}
	e.request(t, http.MethodPost, "/light/toggle", token, nil)

	resp, body := e.request(t, http.MethodGet, "/light/history?actor=MOTION", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filtered history status = %d", resp.StatusCode)
	}
	history := body["history"].([]any)
	if len(history) != 1 {
		t.Fatalf("MOTION history has %d entries, want 1", len(history))
	}
	entry := history[0].(map[string]any)
	if entry["actor"] != "MOTION" || entry["action"] != "ON" {
		t.Errorf("filtered entry: %v", entry)
	}

	// Filter is case-insensitive
	resp, body = e.request(t, http.MethodGet, "/light/history?actor=manual", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lowercase filter status = %d", resp.StatusCode)
	}
	if len(body["history"].([]any)) != 1 {
		t.Errorf("manual history = %v", body["history"])
	}

	resp, _ = e.request(t, http.MethodGet, "/light/history?actor=banana", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown actor status = %d, want 400", resp.StatusCode)
	}
}

func TestMotionEndpoints(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	resp, body := e.request(t, http.MethodGet, "/motion/status", token, nil)
	if resp.StatusCode != http.StatusOK || body["enabled"] != true {
		t.Errorf("motion status = %d body %v", resp.StatusCode, body)
	}

	resp, _ = e.request(t, http.MethodPost, "/motion/simulate", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("simulate status = %d", resp.StatusCode)
	}
	if e.motion.simulated != 1 {
		t.Errorf("simulate called %d times, want 1", e.motion.simulated)
	}

	// Settings validation
	resp, _ = e.request(t, http.MethodPost, "/motion/settings", token, map[string]int{"timeout": 500})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("timeout 500 status = %d, want 400", resp.StatusCode)
	}
	resp, _ = e.request(t, http.MethodPost, "/motion/settings", token, map[string]int{"timeout": 60})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("timeout 60 status = %d", resp.StatusCode)
	}
	if e.motion.timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s", e.motion.timeout)
	}

	// Pause and resume
	e.request(t, http.MethodPost, "/motion/pause", token, nil)
	if !e.motion.status.AlertsPaused {
		t.Error("pause did not reach the motion service")
	}
	e.request(t, http.MethodPost, "/motion/resume", token, nil)
	if e.motion.status.AlertsPaused {
		t.Error("resume did not reach the motion service")
	}
}

func TestAmbientEndpoint(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	resp, body := e.request(t, http.MethodGet, "/light/ambient", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ambient status = %d", resp.StatusCode)
	}
	if body["level"].(float64) != 128 {
		t.Errorf("level = %v, want 128", body["level"])
	}
	if body["is_dark"] != false {
		t.Errorf("is_dark = %v, want false", body["is_dark"])
	}
}

func TestCameraEndpoints(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	resp, body := e.request(t, http.MethodGet, "/camera/status", token, nil)
	if resp.StatusCode != http.StatusOK || body["simulation_mode"] != true {
		t.Errorf("camera status = %d body %v", resp.StatusCode, body)
	}

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/camera/snapshot", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	snapResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer snapResp.Body.Close()
	if snapResp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot status = %d", snapResp.StatusCode)
	}
	if ct := snapResp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("snapshot content type = %q", ct)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.request(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Errorf("health body: %v", body)
	}
	if body["light_gpio_mode"] != "simulation" {
		t.Errorf("light_gpio_mode = %v, want simulation", body["light_gpio_mode"])
	}
}
