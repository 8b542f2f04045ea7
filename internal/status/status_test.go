package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/estop-monitor/internal/estop"
	"github.com/sweeney/estop-monitor/internal/logic"
)

func armedStatus() estop.Status {
	return estop.Status{
		Lifecycle:   estop.Armed,
		Config:      logic.PinConfig{Pin: 17, Polarity: logic.ActiveLow, Action: logic.ImmediateHalt},
		PendingHalt: true,
		Counts:      logic.EventCounts{Edges: 5, Suppressed: 2, Qualifying: 1, Halts: 1},
		LastTrigger: time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC),
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{DebounceMs: 100, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.DebounceMs != 100 {
		t.Errorf("Config.DebounceMs: got %d, want 100", snap.Config.DebounceMs)
	}
	if snap.Lifecycle != estop.Uninitialized {
		t.Errorf("Lifecycle: got %q, want UNINITIALIZED", snap.Lifecycle)
	}
	if snap.Pin.Configured() {
		t.Error("expected unconfigured pin initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(armedStatus(), logic.StatePrinting)

	snap := tr.Snapshot()
	if !snap.Armed() {
		t.Error("expected Armed")
	}
	if snap.Pin.Pin != 17 {
		t.Errorf("Pin: got %d, want 17", snap.Pin.Pin)
	}
	if !snap.PendingHalt {
		t.Error("expected PendingHalt=true")
	}
	if snap.Machine != logic.StatePrinting {
		t.Errorf("Machine: got %q, want PRINTING", snap.Machine)
	}
	if snap.Counts.Suppressed != 2 {
		t.Errorf("Counts.Suppressed: got %d, want 2", snap.Counts.Suppressed)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(armedStatus(), logic.StatePrinting)

	snap1 := tr.Snapshot()

	tr.Update(estop.Status{Lifecycle: estop.Disarmed}, logic.StateOffline)

	if !snap1.Armed() {
		t.Error("snapshot should be a copy; Lifecycle was modified")
	}
	if snap1.Machine != logic.StatePrinting {
		t.Error("snapshot should be a copy; Machine was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{Backend: "gpiocdev", DebounceMs: 100, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"})
	tr.Update(armedStatus(), logic.StatePaused)
	tr.SetMQTTConnected(true)
	snap := tr.Snapshot()
	snap.Now = start.Add(15 * time.Minute)

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Lifecycle != "ARMED" || !s.Armed {
		t.Errorf("lifecycle: got %q armed=%v", s.Lifecycle, s.Armed)
	}
	if s.Switch.Pin != 17 || s.Switch.Polarity != "active-low" || s.Switch.Pull != "up" || s.Switch.Action != "halt" {
		t.Errorf("switch: got %+v", s.Switch)
	}
	if !s.PendingHalt {
		t.Error("expected pending_halt=true")
	}
	if s.Machine != "PAUSED" {
		t.Errorf("machine_state: got %q, want PAUSED", s.Machine)
	}
	if s.LastTrigger != "2026-01-01T00:10:00Z" {
		t.Errorf("last_trigger: got %q", s.LastTrigger)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Edges != 5 || s.Counts.Halts != 1 {
		t.Errorf("counts: got %+v", s.Counts)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected empty event/reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONUnconfigured(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})
	data := FormatJSON(tr.Snapshot())

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["last_trigger"]; exists {
		t.Error("last_trigger should be omitted before any trigger")
	}
	sw := status["switch"].(map[string]interface{})
	if sw["pin"].(float64) != -1 {
		t.Errorf("pin: got %v, want -1", sw["pin"])
	}
	if status["machine_state"] != "UNKNOWN" {
		t.Errorf("machine_state: got %v, want UNKNOWN", status["machine_state"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})
	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(estop.Status{Counts: logic.EventCounts{Edges: i}}, logic.StatePrinting)
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}
