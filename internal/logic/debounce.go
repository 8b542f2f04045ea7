package logic

import "time"

// Debouncer drops edges that follow the previously accepted edge too closely.
// One Debouncer belongs to one subscription; it is not safe for concurrent use.
type Debouncer struct {
	window   time.Duration
	last     time.Duration
	accepted bool
}

// NewDebouncer creates a Debouncer with the given quiet window.
// A non-positive window accepts every edge.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Window returns the quiet window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Accept reports whether an edge at ts should be forwarded.
// The first edge is always accepted. The boundary is inclusive: an edge
// exactly one window after the last accepted edge is forwarded.
func (d *Debouncer) Accept(ts time.Duration) bool {
	if d.accepted && ts-d.last < d.window {
		return false
	}
	d.last = ts
	d.accepted = true
	return true
}

// Reset discards timing state.
func (d *Debouncer) Reset() {
	d.last = 0
	d.accepted = false
}
