package estop

import (
	"log"
	"strings"

	"github.com/sweeney/estop-monitor/internal/logic"
)

// dispatch executes the configured response to a qualifying edge.
// Every qualifying edge dispatches again, including while a halt is pending.
func (c *Controller) dispatch(action logic.Action) {
	switch action {
	case logic.ImmediateHalt:
		c.pendingHalt.Store(true)
		c.sendEmergency()
		c.mu.Lock()
		c.counts.Halts++
		c.mu.Unlock()

	case logic.GracefulCancel:
		log.Printf("estop: cancelling print")
		if err := c.opts.Commander.RequestCancel(); err != nil {
			log.Printf("estop: cancel request failed: %v", err)
		}
		c.mu.Lock()
		c.counts.Cancels++
		c.mu.Unlock()

	default:
		log.Printf("estop: unknown action %d", action)
	}
}

func (c *Controller) sendEmergency() {
	log.Printf("estop: sending emergency stop %s", EmergencyCommand)
	if err := c.opts.Commander.SendCommand(EmergencyCommand); err != nil {
		log.Printf("estop: send %s failed: %v", EmergencyCommand, err)
	}
}

// InterceptCommand is the outgoing-command hook. While a halt is pending
// every command is preceded by the emergency command.
func (c *Controller) InterceptCommand(cmd string) []string {
	if !c.pendingHalt.Load() || isEmergency(cmd) {
		return []string{cmd}
	}
	return []string{EmergencyCommand, cmd}
}

// PendingHalt reports whether the emergency command is being reasserted.
func (c *Controller) PendingHalt() bool {
	return c.pendingHalt.Load()
}

// OnDisconnect clears the pending halt once the machine link is gone.
func (c *Controller) OnDisconnect() {
	if c.pendingHalt.Swap(false) {
		log.Printf("estop: machine disconnected, pending halt cleared")
	}
}

// OnUserLogin reminds users to configure the switch.
func (c *Controller) OnUserLogin() {
	c.advise(AdvisoryLogin)
}

// OnPrintStarted reminds users that the switch is not watching this job.
func (c *Controller) OnPrintStarted() {
	c.advise(AdvisoryPrintStart)
}

func (c *Controller) advise(msg string) {
	if c.opts.Notifier == nil {
		return
	}
	c.mu.Lock()
	configured := c.cfg.Configured()
	c.mu.Unlock()
	if configured {
		return
	}
	if err := c.opts.Notifier.Notify(Advisory{Type: "info", AutoClose: true, Msg: msg}); err != nil {
		log.Printf("estop: advisory failed: %v", err)
	}
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Lifecycle:   c.lifecycle,
		Config:      c.cfg,
		PendingHalt: c.pendingHalt.Load(),
		Counts:      c.counts,
		LastTrigger: c.lastTrigger,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func isEmergency(cmd string) bool {
	fields := strings.Fields(cmd)
	return len(fields) > 0 && strings.EqualFold(fields[0], EmergencyCommand)
}
