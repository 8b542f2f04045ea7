// Package estop ties the emergency stop switch to the machine: it owns the
// input subscription, filters and evaluates edges, and dispatches the
// configured action.
package estop

import (
	"errors"

	"github.com/sweeney/estop-monitor/internal/logic"
)

// EmergencyCommand is the G-code that halts motion and heaters immediately.
const EmergencyCommand = "M112"

// Advisory messages shown to users while the switch is not configured.
const (
	AdvisoryLogin      = "Don't forget to configure this plugin."
	AdvisoryPrintStart = "You may have forgotten to configure this plugin."
)

// ErrRegistration wraps failures to bind the input line.
var ErrRegistration = errors.New("estop: input registration failed")

// Commander sends commands to the machine. Both methods must hand off
// without blocking; they are called from the edge callback.
type Commander interface {
	SendCommand(cmd string) error
	RequestCancel() error
}

// StateSource reports the host's current execution state without blocking.
type StateSource interface {
	ExecutionState() logic.MachineState
}

// Advisory is a user-facing notification.
type Advisory struct {
	Type      string `json:"type"`
	AutoClose bool   `json:"autoClose"`
	Msg       string `json:"msg"`
}

// Notifier delivers advisories to the host UI.
type Notifier interface {
	Notify(a Advisory) error
}

// Lifecycle is the state of the controller's input subscription.
type Lifecycle string

const (
	Uninitialized Lifecycle = "UNINITIALIZED"
	Unconfigured  Lifecycle = "UNCONFIGURED"
	Armed         Lifecycle = "ARMED"
	Rearming      Lifecycle = "REARMING"
	Disarmed      Lifecycle = "DISARMED"
)
