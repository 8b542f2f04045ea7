package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/estop-monitor/internal/estop"
	"github.com/sweeney/estop-monitor/internal/logic"
)

// bufferCapacity bounds the messages held while the broker is unreachable.
const bufferCapacity = 100

// publishTimeout bounds how long a background publish is watched for errors.
const publishTimeout = 5 * time.Second

// Options configures a RealClient.
type Options struct {
	Broker   string
	ClientID string
	Prefix   string
}

// RealClient is the host bridge over an actual MQTT broker.
type RealClient struct {
	client paho.Client
	topics Topics
	router *router

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealClient creates a client and starts connecting in the background.
// Publishes made before the connection is up are buffered and replayed.
func NewRealClient(opts Options) *RealClient {
	c := &RealClient{
		topics: NewTopics(opts.Prefix),
		buffer: newRingBuffer(bufferCapacity),
	}
	c.router = newRouter(c.topics, c.publish)

	clientID := opts.ClientID
	if clientID == "" {
		clientID = "estop-monitor"
	}

	lwt, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})

	popts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(c.topics.System, string(lwt), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c.client = paho.NewClient(popts)
	c.client.Connect()
	return c
}

func (c *RealClient) onConnect(client paho.Client) {
	log.Printf("mqtt: connected")

	subs := map[string]byte{
		c.topics.State:    1,
		c.topics.Events:   1,
		c.topics.Outgoing: 1,
	}
	token := client.SubscribeMultiple(subs, func(_ paho.Client, m paho.Message) {
		c.router.handle(m.Topic(), m.Payload())
	})
	go watchToken(token, "subscribe")

	c.mu.Lock()
	pending := c.buffer.drainAll()
	c.mu.Unlock()
	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		go watchToken(client.Publish(m.topic, m.qos, m.retained, m.payload), "replay "+m.topic)
	}
}

// publish hands the message to paho without waiting for delivery, or
// buffers it while the connection is down.
func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.buffer.push(bufferedMsg{
			topic:    topic,
			payload:  payload,
			qos:      qos,
			retained: retained,
			priority: c.isPriority(topic, payload),
		})
		c.mu.Unlock()
		return nil
	}
	go watchToken(c.client.Publish(topic, qos, retained, payload), "publish "+topic)
	return nil
}

// isPriority marks halt and cancel traffic so the buffer keeps it longest.
func (c *RealClient) isPriority(topic string, payload []byte) bool {
	if topic == c.topics.Control {
		return true
	}
	return topic == c.topics.Send && string(payload) == estop.EmergencyCommand
}

func watchToken(token paho.Token, what string) {
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("mqtt: %s: timeout", what)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: %s: %v", what, err)
	}
}

// Bind sets the hooks inbound host messages are routed to. Until Bind is
// called, state is tracked and outgoing commands are relayed unchanged.
func (c *RealClient) Bind(h Hooks) {
	c.router.bind(h)
}

// SendCommand publishes a command straight to the machine send topic.
func (c *RealClient) SendCommand(cmd string) error {
	return c.publish(c.topics.Send, 1, false, []byte(cmd))
}

// RequestCancel asks the host to cancel the current job.
func (c *RealClient) RequestCancel() error {
	payload, err := FormatCancel(time.Now())
	if err != nil {
		return fmt.Errorf("format cancel: %w", err)
	}
	return c.publish(c.topics.Control, 1, false, payload)
}

// Notify publishes a user advisory.
func (c *RealClient) Notify(a estop.Advisory) error {
	payload, err := FormatAdvisory(a)
	if err != nil {
		return fmt.Errorf("format advisory: %w", err)
	}
	return c.publish(c.topics.Notify, 0, false, payload)
}

// ExecutionState returns the last state reported by the host.
func (c *RealClient) ExecutionState() logic.MachineState {
	return c.router.ExecutionState()
}

// PublishSystem sends a daemon lifecycle event and waits for delivery.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.buffer.push(bufferedMsg{topic: c.topics.System, payload: payload, qos: 1, retained: event.Retained})
		c.mu.Unlock()
		return nil
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token := c.client.Publish(c.topics.System, 1, event.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout

	c.mu.Lock()
	dropped := c.buffer.len()
	c.mu.Unlock()
	if dropped > 0 {
		log.Printf("mqtt: %d buffered messages dropped on close", dropped)
	}
	return nil
}
