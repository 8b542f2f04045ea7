package logic

import (
	"fmt"
	"testing"
	"time"
)

var allStates = []MachineState{
	StateOperational, StatePrinting, StatePaused, StatePausing, StateResuming,
	StateCancelling, StateFinishing, StateConnecting, StateOffline, StateError,
	StateClosed, StateClosedWithError, StateUnknown,
}

func TestQualifyingCrossProduct(t *testing.T) {
	for _, pin := range []int{UnconfiguredPin, 17} {
		for _, pol := range []Polarity{ActiveLow, ActiveHigh} {
			for _, level := range []Level{Low, High} {
				for _, state := range allStates {
					name := fmt.Sprintf("pin=%d/%s/%s/%s", pin, pol, level, state)
					t.Run(name, func(t *testing.T) {
						cfg := PinConfig{Pin: pin, Polarity: pol}

						triggered := (pol == ActiveLow && level == Low) || (pol == ActiveHigh && level == High)
						running := state == StatePrinting || state == StatePaused
						want := pin != UnconfiguredPin && triggered && running

						if got := Qualifying(cfg, level, state); got != want {
							t.Errorf("Qualifying: got %v, want %v", got, want)
						}
					})
				}
			}
		}
	}
}

func TestEvaluateVerdicts(t *testing.T) {
	armed := PinConfig{Pin: 17, Polarity: ActiveLow}

	tests := []struct {
		name  string
		cfg   PinConfig
		level Level
		state MachineState
		want  Verdict
	}{
		{"unconfigured wins over everything", Unconfigured(), Low, StatePrinting, VerdictUnconfigured},
		{"rest level", armed, High, StatePrinting, VerdictAtRest},
		{"triggered while idle", armed, Low, StateOperational, VerdictNotRunning},
		{"triggered while printing", armed, Low, StatePrinting, VerdictQualifying},
		{"triggered while paused", armed, Low, StatePaused, VerdictQualifying},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.cfg, tt.level, tt.state); got != tt.want {
				t.Errorf("Evaluate: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPolarityLevels(t *testing.T) {
	if ActiveLow.ActiveLevel() != Low || ActiveLow.RestLevel() != High {
		t.Error("active-low: expected active=LOW rest=HIGH")
	}
	if ActiveHigh.ActiveLevel() != High || ActiveHigh.RestLevel() != Low {
		t.Error("active-high: expected active=HIGH rest=LOW")
	}
}

func TestEffectivePull(t *testing.T) {
	tests := []struct {
		cfg  PinConfig
		want Pull
	}{
		{PinConfig{Pin: 17, Polarity: ActiveLow}, PullUp},
		{PinConfig{Pin: 17, Polarity: ActiveHigh}, PullDown},
		{PinConfig{Pin: 17, Polarity: ActiveLow, Pull: PullNone}, PullNone},
		{PinConfig{Pin: 17, Polarity: ActiveHigh, Pull: PullUp}, PullUp},
	}
	for _, tt := range tests {
		if got := tt.cfg.EffectivePull(); got != tt.want {
			t.Errorf("%+v: got %s, want %s", tt.cfg, got, tt.want)
		}
	}
}

func TestConfigured(t *testing.T) {
	if Unconfigured().Configured() {
		t.Error("pin -1 should be unconfigured")
	}
	if !(PinConfig{Pin: 0}).Configured() {
		t.Error("pin 0 is a valid line")
	}
}

func TestMachineStateDisconnected(t *testing.T) {
	for _, s := range allStates {
		want := s == StateOffline || s == StateClosed || s == StateClosedWithError
		if got := s.Disconnected(); got != want {
			t.Errorf("%s.Disconnected(): got %v, want %v", s, got, want)
		}
	}
}

func TestHeartbeatInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)

	if hb := h.Check(start.Add(10*time.Minute), 15*time.Minute); hb != nil {
		t.Error("expected no heartbeat before interval")
	}

	hb := h.Check(start.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}

	if hb := h.Check(start.Add(20*time.Minute), 15*time.Minute); hb != nil {
		t.Error("expected no heartbeat 5m after previous")
	}
}

func TestHeartbeatDisabled(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)
	if hb := h.Check(start.Add(time.Hour), 0); hb != nil {
		t.Error("interval 0 should disable heartbeat")
	}
}
