// Package mqtt bridges the controller to the host application over MQTT,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/estop-monitor/internal/estop"
	"github.com/sweeney/estop-monitor/internal/logic"
)

// DefaultPrefix is the topic prefix shared with the host.
const DefaultPrefix = "octoprint/estop"

// Topics are the bridge topics under one prefix.
type Topics struct {
	State    string // host -> daemon: execution state id
	Events   string // host -> daemon: lifecycle events
	Outgoing string // host -> daemon: commands about to be sent
	Send     string // daemon -> host: commands to send to the machine
	Control  string // daemon -> host: cancel requests
	Notify   string // daemon -> host: user advisories
	System   string // daemon lifecycle events
}

// NewTopics derives the topic set from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		State:    prefix + "/state",
		Events:   prefix + "/events",
		Outgoing: prefix + "/gcode/outgoing",
		Send:     prefix + "/gcode/send",
		Control:  prefix + "/control",
		Notify:   prefix + "/notify",
		System:   prefix + "/system",
	}
}

// Client is the host bridge used by the daemon.
type Client interface {
	estop.Commander
	estop.Notifier
	estop.StateSource

	// Bind routes inbound host messages to h.
	Bind(h Hooks)

	// PublishSystem sends a daemon lifecycle event.
	PublishSystem(event SystemEvent) error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Close disconnects from the broker.
	Close() error
}

// Hooks receives host notifications. *estop.Controller implements it.
type Hooks interface {
	InterceptCommand(cmd string) []string
	OnDisconnect()
	OnUserLogin()
	OnPrintStarted()
}

// HostEvent is a lifecycle notification from the host.
type HostEvent string

const (
	EventDisconnected HostEvent = "DISCONNECTED"
	EventUserLoggedIn HostEvent = "USER_LOGGED_IN"
	EventPrintStarted HostEvent = "PRINT_STARTED"
)

// SystemEvent represents a daemon lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ControlPayload is a request for the host's job control.
type ControlPayload struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// FormatCancel creates the cancel request payload.
func FormatCancel(now time.Time) ([]byte, error) {
	return json.Marshal(ControlPayload{Action: "cancel", Timestamp: now.UTC().Format(time.RFC3339)})
}

// FormatAdvisory creates the advisory payload.
func FormatAdvisory(a estop.Advisory) ([]byte, error) {
	return json.Marshal(a)
}

// ParseState reads a state id from a plain-text or JSON payload.
// JSON may carry the id as "state" or "state_id".
func ParseState(payload []byte) logic.MachineState {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		var msg struct {
			State   string `json:"state"`
			StateID string `json:"state_id"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			return logic.StateUnknown
		}
		text = msg.StateID
		if text == "" {
			text = msg.State
		}
	}
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return logic.StateUnknown
	}
	return logic.MachineState(text)
}

// ParseHostEvent reads {"event": "..."}. Host-style names such as
// "UserLoggedIn" are accepted alongside "USER_LOGGED_IN".
func ParseHostEvent(payload []byte) (HostEvent, bool) {
	var msg struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", false
	}
	switch normalizeEvent(msg.Event) {
	case "DISCONNECTED":
		return EventDisconnected, true
	case "USERLOGGEDIN":
		return EventUserLoggedIn, true
	case "PRINTSTARTED":
		return EventPrintStarted, true
	}
	return HostEvent(msg.Event), false
}

func normalizeEvent(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "_", "")
}
