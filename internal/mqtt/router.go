package mqtt

import (
	"log"
	"strings"
	"sync"

	"github.com/sweeney/estop-monitor/internal/logic"
)

// publishFunc sends one message; it must not block.
type publishFunc func(topic string, qos byte, retained bool, payload []byte) error

// router dispatches inbound host messages. It is transport independent so
// the real and fake clients share it.
type router struct {
	topics  Topics
	publish publishFunc

	mu    sync.RWMutex
	hooks Hooks
	state logic.MachineState
}

func newRouter(topics Topics, publish publishFunc) *router {
	return &router{topics: topics, publish: publish, state: logic.StateUnknown}
}

func (r *router) bind(h Hooks) {
	r.mu.Lock()
	r.hooks = h
	r.mu.Unlock()
}

// ExecutionState returns the last state reported by the host.
func (r *router) ExecutionState() logic.MachineState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *router) handle(topic string, payload []byte) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()

	switch topic {
	case r.topics.State:
		s := ParseState(payload)
		r.mu.Lock()
		prev := r.state
		r.state = s
		r.mu.Unlock()
		if s != prev {
			log.Printf("mqtt: machine state %s", s)
		}
		if s.Disconnected() && hooks != nil {
			hooks.OnDisconnect()
		}

	case r.topics.Events:
		evt, ok := ParseHostEvent(payload)
		if !ok || hooks == nil {
			return
		}
		switch evt {
		case EventDisconnected:
			r.mu.Lock()
			r.state = logic.StateOffline
			r.mu.Unlock()
			hooks.OnDisconnect()
		case EventUserLoggedIn:
			hooks.OnUserLogin()
		case EventPrintStarted:
			hooks.OnPrintStarted()
		}

	case r.topics.Outgoing:
		cmd := strings.TrimSpace(string(payload))
		if cmd == "" {
			return
		}
		out := []string{cmd}
		if hooks != nil {
			out = hooks.InterceptCommand(cmd)
		}
		for _, c := range out {
			if err := r.publish(r.topics.Send, 1, false, []byte(c)); err != nil {
				log.Printf("mqtt: relay %q: %v", c, err)
			}
		}
	}
}
