package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/estop-monitor/internal/config"
	"github.com/sweeney/estop-monitor/internal/estop"
	"github.com/sweeney/estop-monitor/internal/logic"
	"github.com/sweeney/estop-monitor/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *config.Store) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Backend:     "gpiocdev",
		DebounceMs:  100,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
	}
	tr := status.NewTracker(start, cfg)
	store := config.NewStore(config.DefaultSettings(), "")
	srv := New(":0", tr, store)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr, store
}

func armed() estop.Status {
	return estop.Status{
		Lifecycle: estop.Armed,
		Config:    logic.PinConfig{Pin: 17, Polarity: logic.ActiveLow, Action: logic.ImmediateHalt},
		Counts:    logic.EventCounts{Edges: 3, Halts: 1},
	}
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(armed(), logic.StatePrinting)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if !sj.Status.Armed {
		t.Error("expected armed=true")
	}
	if sj.Status.Switch.Pin != 17 {
		t.Errorf("Switch.Pin: got %d, want 17", sj.Status.Switch.Pin)
	}
	if sj.Status.Machine != "PRINTING" {
		t.Errorf("machine_state: got %q, want PRINTING", sj.Status.Machine)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Halts != 1 {
		t.Errorf("Counts.Halts: got %d, want 1", sj.Status.Counts.Halts)
	}
	if sj.Status.Config.DebounceMs != 100 {
		t.Errorf("Config.DebounceMs: got %d, want 100", sj.Status.Config.DebounceMs)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(armed(), logic.StatePrinting)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type: got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	html := string(body)
	if !strings.Contains(html, "Emergency Stop") {
		t.Error("expected page title in HTML")
	}
	if !strings.Contains(html, ">ARMED<") {
		t.Error("expected ARMED lifecycle in HTML")
	}
	if strings.Contains(html, "configure the switch pin") {
		t.Error("configured switch should not show the advisory")
	}
}

func TestHTMLShowsAdvisoryWhenUnconfigured(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "not configured") {
		t.Error("expected unconfigured pin in HTML")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestGetSettings(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/settings")
	if err != nil {
		t.Fatalf("GET /settings: %v", err)
	}
	defer resp.Body.Close()

	var s config.Settings
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Pin != -1 || s.Switch != 0 || s.Action != 0 {
		t.Errorf("expected defaults, got %+v", s)
	}
}

func TestPostSettingsRunsSaveHook(t *testing.T) {
	ts, _, store := newTestServer(t)

	var saved []logic.PinConfig
	store.OnSave(func(c logic.PinConfig) { saved = append(saved, c) })

	resp, err := http.Post(ts.URL+"/settings", "application/json", strings.NewReader(`{"pin":17,"switch":1,"action":1}`))
	if err != nil {
		t.Fatalf("POST /settings: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if len(saved) != 1 {
		t.Fatalf("expected one save hook call, got %d", len(saved))
	}
	if saved[0].Pin != 17 || saved[0].Polarity != logic.ActiveHigh || saved[0].Action != logic.GracefulCancel {
		t.Errorf("unexpected config: %+v", saved[0])
	}
	if store.Get().Pin != 17 {
		t.Errorf("store pin: got %d, want 17", store.Get().Pin)
	}
}

func TestPostSettingsPartialKeepsOtherFields(t *testing.T) {
	ts, _, store := newTestServer(t)
	store.Save(config.Settings{Pin: 17, Switch: 1})

	resp, err := http.Post(ts.URL+"/settings", "application/json", strings.NewReader(`{"action":1}`))
	if err != nil {
		t.Fatalf("POST /settings: %v", err)
	}
	resp.Body.Close()

	got := store.Get()
	if got.Pin != 17 || got.Switch != 1 || got.Action != 1 {
		t.Errorf("expected merged settings, got %+v", got)
	}
}

func TestPostSettingsRejectsInvalid(t *testing.T) {
	ts, _, store := newTestServer(t)

	tests := []struct {
		body string
		code int
	}{
		{`{"pin":17,"switch":5}`, http.StatusUnprocessableEntity},
		{`{"pin":"seventeen"}`, http.StatusBadRequest},
		{`{"pinn":17}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, err := http.Post(ts.URL+"/settings", "application/json", strings.NewReader(tt.body))
		if err != nil {
			t.Fatalf("POST /settings: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.code {
			t.Errorf("%s: status got %d, want %d", tt.body, resp.StatusCode, tt.code)
		}
	}

	if store.Get().Pin != -1 {
		t.Error("invalid settings must not be stored")
	}
}

func TestSettingsMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/settings", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /settings: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}
