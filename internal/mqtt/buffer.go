package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	// priority messages are evicted only when nothing else is left.
	priority bool
}

// ringBuffer is a bounded FIFO that stores messages while disconnected.
// When full, the oldest non-priority message is dropped first.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf      []bufferedMsg
	capacity int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.capacity <= 0 {
		return
	}
	if len(r.buf) == r.capacity {
		if !r.overflow {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", r.capacity)
			r.overflow = true
		}
		r.evict()
	}
	r.buf = append(r.buf, msg)
}

func (r *ringBuffer) evict() {
	victim := 0
	for i, m := range r.buf {
		if !m.priority {
			victim = i
			break
		}
	}
	copy(r.buf[victim:], r.buf[victim+1:])
	r.buf = r.buf[:len(r.buf)-1]
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if len(r.buf) == 0 {
		return nil
	}

	result := make([]bufferedMsg, len(r.buf))
	copy(result, r.buf)

	r.buf = r.buf[:0]
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return len(r.buf)
}
