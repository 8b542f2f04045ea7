package mqtt

import (
	"sync"

	"github.com/sweeney/estop-monitor/internal/estop"
	"github.com/sweeney/estop-monitor/internal/logic"
)

// Published is one message recorded by FakeClient.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient records bridge traffic for test assertions. Inbound host
// messages are injected with Deliver and go through the same routing as
// the real client.
type FakeClient struct {
	mu sync.Mutex

	// Messages contains every message published, in order.
	Messages []Published

	// Commands contains commands sent via SendCommand.
	Commands []string

	// Cancels counts RequestCancel calls.
	Cancels int

	// Advisories contains advisories sent via Notify.
	Advisories []estop.Advisory

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SendError, if set, will be returned by SendCommand and RequestCancel.
	SendError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	topics Topics
	router *router
}

// NewFakeClient creates a FakeClient using the default topics.
func NewFakeClient() *FakeClient {
	f := &FakeClient{topics: NewTopics(DefaultPrefix)}
	f.router = newRouter(f.topics, f.record)
	return f
}

// Topics returns the topics the fake routes on.
func (f *FakeClient) Topics() Topics {
	return f.topics
}

// Bind sets the hooks that inbound messages are routed to.
func (f *FakeClient) Bind(h Hooks) {
	f.router.bind(h)
}

// Deliver simulates an inbound message from the host.
func (f *FakeClient) Deliver(topic string, payload []byte) {
	f.router.handle(topic, payload)
}

func (f *FakeClient) record(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, Published{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	return nil
}

// SentTo returns the payloads published to topic, as strings.
func (f *FakeClient) SentTo(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.Messages {
		if m.Topic == topic {
			out = append(out, string(m.Payload))
		}
	}
	return out
}

// SendCommand records the command.
func (f *FakeClient) SendCommand(cmd string) error {
	if f.SendError != nil {
		return f.SendError
	}
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)
	f.mu.Unlock()
	return f.record(f.topics.Send, 1, false, []byte(cmd))
}

// RequestCancel records the cancel request.
func (f *FakeClient) RequestCancel() error {
	if f.SendError != nil {
		return f.SendError
	}
	f.mu.Lock()
	f.Cancels++
	f.mu.Unlock()
	return nil
}

// Notify records the advisory.
func (f *FakeClient) Notify(a estop.Advisory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Advisories = append(f.Advisories, a)
	return nil
}

// ExecutionState returns the last state delivered on the state topic.
func (f *FakeClient) ExecutionState() logic.MachineState {
	return f.router.ExecutionState()
}

// PublishSystem records the system event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	return f.Connected
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.Closed = true
	return nil
}
