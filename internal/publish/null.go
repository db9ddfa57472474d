package publish

import (
	"sync"
	"time"
)

// NullSink discards everything it is given while counting pushes. It
// stands in for the RTSP publisher when publishing is disabled and in
// tests.
type NullSink struct {
	mu      sync.Mutex
	active  bool
	frames  uint64
	samples uint64
	lastTS  time.Duration
}

// NewNullSink creates a null sink; active controls what Active reports.
func NewNullSink(active bool) *NullSink {
	return &NullSink{active: active}
}

// Push implements VideoSink.
func (n *NullSink) Push(data []byte, ts time.Duration) error {
	n.mu.Lock()
	n.frames++
	n.lastTS = ts
	n.mu.Unlock()
	return nil
}

// PushSamples implements AudioSink.
func (n *NullSink) PushSamples(data []byte, ts time.Duration) error {
	n.mu.Lock()
	n.samples++
	n.lastTS = ts
	n.mu.Unlock()
	return nil
}

// Active implements VideoSink.
func (n *NullSink) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// SetActive toggles what Active reports.
func (n *NullSink) SetActive(active bool) {
	n.mu.Lock()
	n.active = active
	n.mu.Unlock()
}

// Frames returns how many video frames were pushed.
func (n *NullSink) Frames() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frames
}
