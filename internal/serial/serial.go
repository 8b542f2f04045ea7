// Package serial sends G-code lines straight to the machine controller
// over a serial port, bypassing the host's command queue.
package serial

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/tarm/serial"
)

// queueSize bounds the lines waiting to be written.
const queueSize = 32

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("serial: commander closed")
	// ErrQueueFull is returned when the writer cannot keep up.
	ErrQueueFull = errors.New("serial: write queue full")
)

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0")
	Device string
	Baud   int
	// CancelCommand is written for RequestCancel, e.g. "M524".
	CancelCommand string
}

// Commander writes commands on a background goroutine so callers never
// block on the port.
type Commander struct {
	port   io.WriteCloser
	cancel string
	queue  chan string
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open opens the port and starts the writer.
func Open(cfg Config) (*Commander, error) {
	port, err := serial.OpenPort(&serial.Config{Name: cfg.Device, Baud: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return NewCommander(port, cfg.CancelCommand), nil
}

// NewCommander wraps an already open port.
func NewCommander(port io.WriteCloser, cancelCommand string) *Commander {
	c := &Commander{
		port:   port,
		cancel: cancelCommand,
		queue:  make(chan string, queueSize),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Commander) writeLoop() {
	defer close(c.done)
	for line := range c.queue {
		if _, err := io.WriteString(c.port, line+"\n"); err != nil {
			log.Printf("serial: write %q: %v", line, err)
		}
	}
}

// SendCommand queues a command line.
func (c *Commander) SendCommand(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.queue <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// RequestCancel queues the configured cancel command.
func (c *Commander) RequestCancel() error {
	if c.cancel == "" {
		return errors.New("serial: no cancel command configured")
	}
	return c.SendCommand(c.cancel)
}

// Close flushes queued lines and closes the port.
func (c *Commander) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	<-c.done
	return c.port.Close()
}
