package gpio

import (
	"sync"

	"github.com/sweeney/estop-monitor/internal/logic"
)

// FakeDriver is a test double that records subscriptions and lets tests
// inject edges.
type FakeDriver struct {
	mu sync.Mutex

	// WatchError, if set, will be returned by Watch.
	WatchError error

	// Watches records every WatchConfig passed to Watch, including failed ones.
	Watches []WatchConfig

	// CurrentLevel is returned by Subscription.Level.
	CurrentLevel logic.Level

	subs []*FakeSubscription
}

// FakeSubscription is a subscription created by FakeDriver.
type FakeSubscription struct {
	driver  *FakeDriver
	Config  WatchConfig
	handler Handler
	Closed  bool
}

// NewFakeDriver creates a FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{CurrentLevel: logic.High}
}

// Watch records the subscription.
func (f *FakeDriver) Watch(cfg WatchConfig, handler Handler) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Watches = append(f.Watches, cfg)
	if f.WatchError != nil {
		return nil, f.WatchError
	}

	s := &FakeSubscription{driver: f, Config: cfg, handler: handler}
	f.subs = append(f.subs, s)
	return s, nil
}

// Emit delivers an edge to every open subscription on pin, synchronously.
// It returns the number of handlers called.
func (f *FakeDriver) Emit(pin int, evt logic.EdgeEvent) int {
	f.mu.Lock()
	f.CurrentLevel = evt.Level
	var handlers []Handler
	for _, s := range f.subs {
		if !s.Closed && s.Config.Pin == pin {
			handlers = append(handlers, s.handler)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(evt)
	}
	return len(handlers)
}

// EmitStale delivers an edge to a subscription even if it was closed,
// simulating a callback that raced with Close.
func (f *FakeDriver) EmitStale(s *FakeSubscription, evt logic.EdgeEvent) {
	s.handler(evt)
}

// Open returns the subscriptions that have not been closed.
func (f *FakeDriver) Open() []*FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	var open []*FakeSubscription
	for _, s := range f.subs {
		if !s.Closed {
			open = append(open, s)
		}
	}
	return open
}

// All returns every subscription created so far.
func (f *FakeDriver) All() []*FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSubscription(nil), f.subs...)
}

// Level returns the driver's current level.
func (s *FakeSubscription) Level() (logic.Level, error) {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return s.driver.CurrentLevel, nil
}

// Close marks the subscription closed.
func (s *FakeSubscription) Close() error {
	s.driver.mu.Lock()
	s.Closed = true
	s.driver.mu.Unlock()
	return nil
}
