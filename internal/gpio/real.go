//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/estop-monitor/internal/logic"
)

// RealDriver watches lines on a Linux GPIO character device.
type RealDriver struct {
	chip string
}

// NewRealDriver creates a driver for the named chip, e.g. "gpiochip0".
func NewRealDriver(chip string) *RealDriver {
	if chip == "" {
		chip = DefaultChip
	}
	return &RealDriver{chip: chip}
}

// realSubscription holds a requested line with an edge watcher.
type realSubscription struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// Watch requests the line as an input with edge detection on both edges.
func (d *RealDriver) Watch(cfg WatchConfig, handler Handler) (Subscription, error) {
	chip, err := gpiocdev.NewChip(d.chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", d.chip, err)
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		biasOption(cfg.Pull),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handler(toEdgeEvent(evt))
		}),
	}
	if cfg.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
	}

	line, err := chip.RequestLine(cfg.Pin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", cfg.Pin, err)
	}

	return &realSubscription{chip: chip, line: line, pin: cfg.Pin}, nil
}

// Level reads the raw line value.
func (s *realSubscription) Level() (logic.Level, error) {
	v, err := s.line.Value()
	if err != nil {
		return logic.Low, fmt.Errorf("read pin %d: %w", s.pin, err)
	}
	return levelOf(v), nil
}

// Close releases the line, which stops the event watcher, then the chip.
func (s *realSubscription) Close() error {
	var errs []error

	if s.line != nil {
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", s.pin, err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func toEdgeEvent(evt gpiocdev.LineEvent) logic.EdgeEvent {
	level := logic.Low
	if evt.Type == gpiocdev.LineEventRisingEdge {
		level = logic.High
	}
	return logic.EdgeEvent{Level: level, Timestamp: evt.Timestamp}
}

func biasOption(p logic.Pull) gpiocdev.LineReqOption {
	switch p {
	case logic.PullUp:
		return gpiocdev.WithPullUp
	case logic.PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasDisabled
	}
}
