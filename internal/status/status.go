// Package status provides a thread-safe status tracker for the estop-monitor daemon.
// It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/estop-monitor/internal/estop"
	"github.com/sweeney/estop-monitor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Backend            string
	DebounceMs         int64
	HardwareDebounceMs int64
	HeartbeatMs        int64
	Broker             string
	HTTPAddr           string
	SerialDevice       string // empty = disabled
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Lifecycle     estop.Lifecycle
	Pin           logic.PinConfig
	PendingHalt   bool
	Machine       logic.MachineState
	Counts        logic.EventCounts
	LastTrigger   time.Time
	LastError     string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Armed reports whether the switch is being watched.
func (s Snapshot) Armed() bool {
	return s.Lifecycle == estop.Armed
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Lifecycle: estop.Uninitialized,
			Pin:       logic.Unconfigured(),
			Machine:   logic.StateUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the controller status and the host's machine state.
func (t *Tracker) Update(st estop.Status, machine logic.MachineState) {
	t.mu.Lock()
	t.snap.Lifecycle = st.Lifecycle
	t.snap.Pin = st.Config
	t.snap.PendingHalt = st.PendingHalt
	t.snap.Counts = st.Counts
	t.snap.LastTrigger = st.LastTrigger
	t.snap.LastError = st.LastError
	t.snap.Machine = machine
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
