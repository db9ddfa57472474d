package publish

import (
	"time"

	"github.com/depthcast/depthcast/internal/logger"
)

// VideoSink accepts timestamped BGRA frames for publishing. Push blocks
// when the underlying transport applies backpressure; the pipeline driver
// never drops frames on its own initiative.
type VideoSink interface {
	// Push hands one frame to the sink. ts is monotonically increasing
	// within a stream.
	Push(data []byte, ts time.Duration) error

	// Active reports whether anyone is consuming the stream. Pipelines
	// idle their capture while the sink is inactive.
	Active() bool
}

// AudioSink accepts timestamped S16LE interleaved audio for publishing.
type AudioSink interface {
	PushSamples(data []byte, ts time.Duration) error
}

// Tee forwards each frame to a primary sink and mirrors it to secondary
// sinks on a best-effort basis. Only the primary's error propagates;
// mirror failures are logged and otherwise ignored.
type Tee struct {
	primary VideoSink
	mirrors []VideoSink
}

// NewTee wraps primary with best-effort mirrors.
func NewTee(primary VideoSink, mirrors ...VideoSink) *Tee {
	return &Tee{primary: primary, mirrors: mirrors}
}

// Push forwards to active mirrors, then to the primary sink.
func (t *Tee) Push(data []byte, ts time.Duration) error {
	for _, m := range t.mirrors {
		if !m.Active() {
			continue
		}
		if err := m.Push(data, ts); err != nil {
			logger.WithComponent("publish").Debug().Err(err).Msg("Mirror sink push failed")
		}
	}
	return t.primary.Push(data, ts)
}

// Active reports true if the primary or any mirror has a consumer.
func (t *Tee) Active() bool {
	if t.primary.Active() {
		return true
	}
	for _, m := range t.mirrors {
		if m.Active() {
			return true
		}
	}
	return false
}
