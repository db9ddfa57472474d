package sensor

import (
	"context"

	"github.com/depthcast/depthcast/internal/logger"
)

// BufferedInfrared decouples capture pacing from publishing: a pump
// goroutine reads frames from the underlying source into a bounded queue,
// dropping the incoming frame when the consumer falls behind. The consumer
// side still blocks in Next, so downstream backpressure is preserved while
// the device is never stalled.
type BufferedInfrared struct {
	src    InfraredSource
	frames chan *RawFrame
	onDrop func()

	// Written by the pump goroutine before frames is closed; the channel
	// close is the happens-before edge for the reader.
	pumpErr error
}

// NewBufferedInfrared wraps src with a queue of the given capacity and
// starts the pump. The pump stops when src returns an error or ctx is
// cancelled. onDrop, if non-nil, is called from the pump goroutine for each
// dropped frame.
func NewBufferedInfrared(ctx context.Context, src InfraredSource, capacity int, onDrop func()) *BufferedInfrared {
	b := &BufferedInfrared{
		src:    src,
		frames: make(chan *RawFrame, capacity),
		onDrop: onDrop,
	}
	go b.pump(ctx)
	return b
}

func (b *BufferedInfrared) pump(ctx context.Context) {
	log := logger.WithComponent("sensor")
	dropped := 0
	for {
		frame, err := b.src.Next(ctx)
		if err != nil {
			b.pumpErr = err
			close(b.frames)
			if dropped > 0 {
				log.Debug().Int("dropped", dropped).Msg("Infrared capture pump stopped")
			}
			return
		}
		select {
		case b.frames <- frame:
		default:
			dropped++
			if b.onDrop != nil {
				b.onDrop()
			}
			if dropped%30 == 1 {
				log.Warn().Int("dropped", dropped).Msg("Infrared frame queue full, dropping frame")
			}
		}
	}
}

// Next returns the oldest queued frame, blocking until one is available,
// the pump has stopped, or ctx is cancelled.
func (b *BufferedInfrared) Next(ctx context.Context) (*RawFrame, error) {
	select {
	case frame, ok := <-b.frames:
		if !ok {
			return nil, b.pumpErr
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the underlying source; the pump then winds down on its next
// read.
func (b *BufferedInfrared) Close() error {
	return b.src.Close()
}
