package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/depthcast/depthcast/internal/logger"
)

// ErrEndOfStream is returned by a source once no further frames will ever
// be produced. It ends the owning pipeline but is not a process failure.
var ErrEndOfStream = errors.New("sensor: end of stream")

// RawFrame is one infrared frame as delivered by the device: 16-bit
// samples, row-major, Width*Height of them. Consumed read-only by the
// tone-mapping engine and discarded after transform.
type RawFrame struct {
	Samples   []uint16
	Width     int
	Height    int
	Number    uint64
	Timestamp time.Time
}

// ColorFrame is one color frame in BGRA layout, 4 bytes per pixel.
type ColorFrame struct {
	Data      []byte
	Width     int
	Height    int
	Number    uint64
	Timestamp time.Time
}

// AudioChunk is a block of mono float32 samples in [-1, 1].
type AudioChunk struct {
	Samples    []float32
	SampleRate int
	Timestamp  time.Time
}

// InfraredSource produces raw infrared frames at the device cadence.
// Next blocks until a frame is ready, the context is cancelled, or the
// stream ends with ErrEndOfStream.
type InfraredSource interface {
	Next(ctx context.Context) (*RawFrame, error)
	Close() error
}

// ColorSource produces BGRA color frames at the device cadence.
type ColorSource interface {
	Next(ctx context.Context) (*ColorFrame, error)
	Close() error
}

// AudioSource produces audio chunks at the device cadence.
type AudioSource interface {
	Next(ctx context.Context) (*AudioChunk, error)
	Close() error
}

// Availability is implemented by sources that can report device readiness
// before streaming starts.
type Availability interface {
	Available() bool
}

// WaitAvailable polls a source's availability until it is ready, the
// attempts are exhausted, or the context is cancelled. Sources that do not
// implement Availability are considered always ready.
func WaitAvailable(ctx context.Context, src any, attempts int, delay time.Duration) error {
	a, ok := src.(Availability)
	if !ok {
		return nil
	}
	log := logger.WithComponent("sensor")
	for i := 0; i < attempts; i++ {
		if a.Available() {
			return nil
		}
		log.Info().Int("attempt", i+1).Int("max", attempts).
			Msg("Waiting for sensor device to become available")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("sensor device not available after %d attempts", attempts)
}
