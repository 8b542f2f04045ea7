// Package gpio provides edge-triggered GPIO input with hardware abstraction.
// The real implementations use the Linux GPIO character device (gpiocdev)
// or periph.io. The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/estop-monitor/internal/logic"
)

// Consumer is the label the line is requested under, visible in gpioinfo.
const Consumer = "estop-monitor"

// DefaultChip is the GPIO chip holding the Raspberry Pi header pins.
const DefaultChip = "gpiochip0"

// ErrUnsupported is returned by backends that cannot run on this platform.
var ErrUnsupported = errors.New("gpio: not supported on this platform")

// Handler receives edge events. It is called from the driver's goroutine
// and must not block.
type Handler func(logic.EdgeEvent)

// WatchConfig describes one input line subscription.
type WatchConfig struct {
	Pin  int
	Pull logic.Pull // PullAuto is not valid here; resolve it first
	// Debounce is passed to the driver, 0 disables driver-level debouncing.
	Debounce time.Duration
}

// Driver registers edge callbacks on input lines.
type Driver interface {
	// Watch configures the pin as an input with the given pull and
	// delivers both rising and falling edges to handler.
	Watch(cfg WatchConfig, handler Handler) (Subscription, error)
}

// Subscription is an active edge registration on one line.
type Subscription interface {
	// Level reads the current electrical level of the line.
	Level() (logic.Level, error)

	// Close unregisters the edge callback and releases the line.
	// No handler call starts after Close returns.
	Close() error
}

// Sample reads the current level of a line without handling edges.
func Sample(d Driver, cfg WatchConfig) (logic.Level, error) {
	sub, err := d.Watch(cfg, func(logic.EdgeEvent) {})
	if err != nil {
		return logic.Low, err
	}
	defer sub.Close()

	level, err := sub.Level()
	if err != nil {
		return logic.Low, fmt.Errorf("read pin %d: %w", cfg.Pin, err)
	}
	return level, nil
}

func levelOf(v int) logic.Level {
	if v != 0 {
		return logic.High
	}
	return logic.Low
}
