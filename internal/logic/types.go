// Package logic contains pure decision logic for the emergency stop switch.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via timestamp parameters.
package logic

import "time"

// DefaultQuietWindow is the reference debounce interval between accepted edges.
const DefaultQuietWindow = 100 * time.Millisecond

// UnconfiguredPin is the pin sentinel that disables all monitoring.
const UnconfiguredPin = -1

// Level is the electrical level of a digital input.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Polarity selects which electrical level means "switch pressed".
type Polarity int

const (
	// ActiveLow: the switch pulls the line to ground when pressed ("switch: 0").
	ActiveLow Polarity = iota
	// ActiveHigh: the switch drives the line high when pressed ("switch: 1").
	ActiveHigh
)

// ActiveLevel returns the level observed when the switch is triggered.
func (p Polarity) ActiveLevel() Level {
	if p == ActiveHigh {
		return High
	}
	return Low
}

// RestLevel returns the level observed when the switch is in its safe position.
func (p Polarity) RestLevel() Level {
	if p == ActiveHigh {
		return Low
	}
	return High
}

// DefaultPull returns the pull resistor that holds the line at the rest level.
func (p Polarity) DefaultPull() Pull {
	if p == ActiveHigh {
		return PullDown
	}
	return PullUp
}

func (p Polarity) String() string {
	if p == ActiveHigh {
		return "active-high"
	}
	return "active-low"
}

// Pull is the input bias applied to the line.
type Pull int

const (
	// PullAuto derives the bias from the polarity.
	PullAuto Pull = iota
	PullUp
	PullDown
	PullNone
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	case PullNone:
		return "none"
	default:
		return "auto"
	}
}

// Action is the response to a qualifying event.
type Action int

const (
	// ImmediateHalt sends the emergency stop command and keeps reasserting it.
	ImmediateHalt Action = iota
	// GracefulCancel asks the host to cancel the current job.
	GracefulCancel
)

func (a Action) String() string {
	if a == GracefulCancel {
		return "cancel"
	}
	return "halt"
}

// PinConfig is the switch configuration. It is replaced wholesale on every save.
type PinConfig struct {
	Pin      int
	Polarity Polarity
	Action   Action
	Pull     Pull
}

// Unconfigured returns a PinConfig with monitoring disabled.
func Unconfigured() PinConfig {
	return PinConfig{Pin: UnconfiguredPin}
}

// Configured reports whether the config names a hardware line.
func (c PinConfig) Configured() bool {
	return c.Pin >= 0
}

// EffectivePull resolves PullAuto against the polarity.
func (c PinConfig) EffectivePull() Pull {
	if c.Pull == PullAuto {
		return c.Polarity.DefaultPull()
	}
	return c.Pull
}

// MachineState is the host's execution state id, e.g. "PRINTING".
type MachineState string

const (
	StateOperational     MachineState = "OPERATIONAL"
	StatePrinting        MachineState = "PRINTING"
	StatePaused          MachineState = "PAUSED"
	StatePausing         MachineState = "PAUSING"
	StateResuming        MachineState = "RESUMING"
	StateCancelling      MachineState = "CANCELLING"
	StateFinishing       MachineState = "FINISHING"
	StateConnecting      MachineState = "CONNECTING"
	StateOffline         MachineState = "OFFLINE"
	StateError           MachineState = "ERROR"
	StateClosed          MachineState = "CLOSED"
	StateClosedWithError MachineState = "CLOSED_WITH_ERROR"
	StateUnknown         MachineState = "UNKNOWN"
)

// Halting reports whether a job is in progress that the switch may stop.
func (s MachineState) Halting() bool {
	return s == StatePrinting || s == StatePaused
}

// Disconnected reports whether the state means the machine link is gone.
func (s MachineState) Disconnected() bool {
	switch s {
	case StateOffline, StateClosed, StateClosedWithError:
		return true
	}
	return false
}

// EdgeEvent is a single edge notification from the input line.
type EdgeEvent struct {
	Level Level
	// Timestamp is monotonic and only comparable within one subscription.
	Timestamp time.Duration
}

// EventCounts tracks switch activity since startup.
type EventCounts struct {
	Edges      int
	Suppressed int
	Qualifying int
	Ignored    int
	Halts      int
	Cancels    int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
