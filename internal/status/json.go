package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Lifecycle     string     `json:"lifecycle"`
	Armed         bool       `json:"armed"`
	Switch        SwitchJSON `json:"switch"`
	PendingHalt   bool       `json:"pending_halt"`
	Machine       string     `json:"machine_state"`
	LastTrigger   string     `json:"last_trigger,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// SwitchJSON describes the switch configuration.
type SwitchJSON struct {
	Pin      int    `json:"pin"`
	Polarity string `json:"polarity"`
	Pull     string `json:"pull"`
	Action   string `json:"action"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Edges      int `json:"edges"`
	Suppressed int `json:"suppressed"`
	Qualifying int `json:"qualifying"`
	Ignored    int `json:"ignored"`
	Halts      int `json:"halts"`
	Cancels    int `json:"cancels"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend            string `json:"backend"`
	DebounceMs         int64  `json:"debounce_ms"`
	HardwareDebounceMs int64  `json:"hardware_debounce_ms"`
	HeartbeatMs        int64  `json:"heartbeat_ms"`
	Broker             string `json:"broker"`
	HTTPAddr           string `json:"http_addr"`
	SerialDevice       string `json:"serial_device,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	machine := string(snap.Machine)
	if machine == "" {
		machine = "UNKNOWN"
	}

	inner := StatusInner{
		Lifecycle: string(snap.Lifecycle),
		Armed:     snap.Armed(),
		Switch: SwitchJSON{
			Pin:      snap.Pin.Pin,
			Polarity: snap.Pin.Polarity.String(),
			Pull:     snap.Pin.EffectivePull().String(),
			Action:   snap.Pin.Action.String(),
		},
		PendingHalt:   snap.PendingHalt,
		Machine:       machine,
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Edges:      snap.Counts.Edges,
			Suppressed: snap.Counts.Suppressed,
			Qualifying: snap.Counts.Qualifying,
			Ignored:    snap.Counts.Ignored,
			Halts:      snap.Counts.Halts,
			Cancels:    snap.Counts.Cancels,
		},
		Config: ConfigJSON{
			Backend:            snap.Config.Backend,
			DebounceMs:         snap.Config.DebounceMs,
			HardwareDebounceMs: snap.Config.HardwareDebounceMs,
			HeartbeatMs:        snap.Config.HeartbeatMs,
			Broker:             snap.Config.Broker,
			HTTPAddr:           snap.Config.HTTPAddr,
			SerialDevice:       snap.Config.SerialDevice,
		},
	}
	if !snap.LastTrigger.IsZero() {
		inner.LastTrigger = snap.LastTrigger.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
