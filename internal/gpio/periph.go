package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpioutil"
	"periph.io/x/host/v3"

	"github.com/sweeney/estop-monitor/internal/logic"
)

// PeriphDriver watches lines through periph.io.
type PeriphDriver struct{}

var periphInit struct {
	once sync.Once
	err  error
}

// NewPeriphDriver initializes the periph.io host drivers.
func NewPeriphDriver() (*PeriphDriver, error) {
	periphInit.once.Do(func() {
		_, periphInit.err = host.Init()
	})
	if periphInit.err != nil {
		return nil, fmt.Errorf("periph host init: %w", periphInit.err)
	}
	return &PeriphDriver{}, nil
}

// haltTimeout bounds how long Close waits for WaitForEdge to return.
const haltTimeout = time.Second

type periphSubscription struct {
	pin    pgpio.PinIO
	num    int
	closed atomic.Bool
	done   chan struct{}
}

// Watch enables both-edge detection and waits for edges on a goroutine.
func (d *PeriphDriver) Watch(cfg WatchConfig, handler Handler) (Subscription, error) {
	name := fmt.Sprintf("GPIO%d", cfg.Pin)
	var p pgpio.PinIO = gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %d (%s) not found in hardware", cfg.Pin, name)
	}

	if cfg.Debounce > 0 {
		deb, err := gpioutil.Debounce(p, 0, cfg.Debounce, pgpio.BothEdges)
		if err != nil {
			return nil, fmt.Errorf("debounce pin %d: %w", cfg.Pin, err)
		}
		p = deb
	}

	if err := p.In(periphPull(cfg.Pull), pgpio.BothEdges); err != nil {
		return nil, fmt.Errorf("set pin %d to input: %w", cfg.Pin, err)
	}

	s := &periphSubscription{pin: p, num: cfg.Pin, done: make(chan struct{})}
	go s.watch(handler)
	return s, nil
}

func (s *periphSubscription) watch(handler Handler) {
	defer close(s.done)
	start := time.Now()
	for {
		edge := s.pin.WaitForEdge(-1)
		if s.closed.Load() {
			return
		}
		if !edge {
			continue
		}
		handler(logic.EdgeEvent{
			Level:     periphLevel(s.pin.Read()),
			Timestamp: time.Since(start),
		})
	}
}

// Level reads the current pin level.
func (s *periphSubscription) Level() (logic.Level, error) {
	return periphLevel(s.pin.Read()), nil
}

// Close interrupts the edge wait and waits for the watcher to exit.
func (s *periphSubscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.pin.Halt(); err != nil {
		return fmt.Errorf("halt pin %d: %w", s.num, err)
	}
	select {
	case <-s.done:
	case <-time.After(haltTimeout):
		return fmt.Errorf("halt pin %d: watcher did not exit", s.num)
	}
	if err := s.pin.In(pgpio.PullNoChange, pgpio.NoEdge); err != nil {
		return fmt.Errorf("disable edges on pin %d: %w", s.num, err)
	}
	return nil
}

func periphPull(p logic.Pull) pgpio.Pull {
	switch p {
	case logic.PullUp:
		return pgpio.PullUp
	case logic.PullDown:
		return pgpio.PullDown
	default:
		return pgpio.Float
	}
}

func periphLevel(l pgpio.Level) logic.Level {
	if l == pgpio.High {
		return logic.High
	}
	return logic.Low
}
