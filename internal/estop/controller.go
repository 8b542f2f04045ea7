package estop

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/estop-monitor/internal/gpio"
	"github.com/sweeney/estop-monitor/internal/logic"
)

// Options configures a Controller.
type Options struct {
	Driver    gpio.Driver
	State     StateSource
	Commander Commander
	Notifier  Notifier // optional

	// QuietWindow is the software debounce window; 0 uses logic.DefaultQuietWindow.
	QuietWindow time.Duration
	// DriverDebounce is passed to the driver at registration.
	DriverDebounce time.Duration

	// Now is used for trigger timestamps; nil uses time.Now.
	Now func() time.Time
}

// subscription binds one registered line to its own debounce state.
type subscription struct {
	cfg    logic.PinConfig
	filter *logic.Debouncer
	line   gpio.Subscription
}

// Controller is the lifecycle owner of the switch subscription.
type Controller struct {
	opts Options

	// rebuild serialises Start, Reconfigure and Shutdown.
	rebuild sync.Mutex

	// mu guards the fields below; never held while calling the driver.
	mu          sync.Mutex
	lifecycle   Lifecycle
	cfg         logic.PinConfig
	current     *subscription
	counts      logic.EventCounts
	lastTrigger time.Time
	lastErr     error

	pendingHalt atomic.Bool
}

// Status is a point-in-time view of the controller.
type Status struct {
	Lifecycle   Lifecycle
	Config      logic.PinConfig
	PendingHalt bool
	Counts      logic.EventCounts
	LastTrigger time.Time
	LastError   string
}

// New creates a Controller in the Uninitialized state.
func New(opts Options) *Controller {
	if opts.QuietWindow == 0 {
		opts.QuietWindow = logic.DefaultQuietWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		opts:      opts,
		lifecycle: Uninitialized,
		cfg:       logic.Unconfigured(),
	}
}

// Start applies the initial configuration.
func (c *Controller) Start(cfg logic.PinConfig) {
	c.Reconfigure(cfg)
}

// Reconfigure is the settings-save hook. The existing subscription is
// unregistered before the new configuration is applied.
func (c *Controller) Reconfigure(cfg logic.PinConfig) {
	c.rebuild.Lock()
	defer c.rebuild.Unlock()

	c.detach(Rearming)

	c.mu.Lock()
	c.cfg = cfg
	c.lastErr = nil
	c.mu.Unlock()

	if !cfg.Configured() {
		log.Printf("estop: pin not configured, monitoring inactive")
		c.setLifecycle(Unconfigured)
		return
	}

	if err := c.attach(cfg); err != nil {
		log.Printf("estop: %v", err)
		c.mu.Lock()
		c.lastErr = err
		c.lifecycle = Unconfigured
		c.mu.Unlock()
		return
	}
	log.Printf("estop: emergency stop active on GPIO pin %d (%s, pull=%s, action=%s)",
		cfg.Pin, cfg.Polarity, cfg.EffectivePull(), cfg.Action)
}

// Shutdown unregisters the subscription. The controller can be restarted.
func (c *Controller) Shutdown() {
	c.rebuild.Lock()
	defer c.rebuild.Unlock()
	c.detach(Disarmed)
}

// detach removes the current subscription and waits for the driver to
// release it. Callbacks already in flight see a nil current and are dropped.
func (c *Controller) detach(next Lifecycle) {
	c.mu.Lock()
	old := c.current
	c.current = nil
	if old != nil || next == Disarmed {
		c.lifecycle = next
	}
	c.mu.Unlock()

	if old == nil || old.line == nil {
		return
	}
	if err := old.line.Close(); err != nil {
		log.Printf("estop: unregister pin %d: %v", old.cfg.Pin, err)
	}
}

func (c *Controller) attach(cfg logic.PinConfig) error {
	s := &subscription{
		cfg:    cfg,
		filter: logic.NewDebouncer(c.opts.QuietWindow),
	}

	// Publish s before registering so edges delivered during Watch are kept.
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	line, err := c.opts.Driver.Watch(gpio.WatchConfig{
		Pin:      cfg.Pin,
		Pull:     cfg.EffectivePull(),
		Debounce: c.opts.DriverDebounce,
	}, func(evt logic.EdgeEvent) {
		c.handleEdge(s, evt)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.current = nil
		return fmt.Errorf("%w: pin %d: %v", ErrRegistration, cfg.Pin, err)
	}
	s.line = line
	c.lifecycle = Armed
	return nil
}

func (c *Controller) setLifecycle(l Lifecycle) {
	c.mu.Lock()
	c.lifecycle = l
	c.mu.Unlock()
}

// handleEdge runs on the driver's goroutine.
func (c *Controller) handleEdge(s *subscription, evt logic.EdgeEvent) {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return
	}
	c.counts.Edges++
	if !s.filter.Accept(evt.Timestamp) {
		c.counts.Suppressed++
		c.mu.Unlock()
		return
	}
	cfg := s.cfg
	c.mu.Unlock()

	state := c.opts.State.ExecutionState()
	verdict := logic.Evaluate(cfg, evt.Level, state)
	if verdict != logic.VerdictQualifying {
		c.mu.Lock()
		c.counts.Ignored++
		c.mu.Unlock()
		if verdict == logic.VerdictNotRunning {
			log.Printf("estop: switch triggered while %s, no action", state)
		}
		return
	}

	log.Printf("estop: emergency stop button was triggered (level=%s state=%s)", evt.Level, state)
	c.mu.Lock()
	c.counts.Qualifying++
	c.lastTrigger = c.opts.Now()
	c.mu.Unlock()

	c.dispatch(cfg.Action)
}
