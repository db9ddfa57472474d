package sensor

import (
	"context"
	"math"
	"time"
)

// SyntheticInfrared generates infrared frames at a fixed rate without any
// device attached: a horizontal gradient that drifts over time, covering
// the full 16-bit sample range so tone-mapping changes are visible.
type SyntheticInfrared struct {
	width  int
	height int
	ticker *time.Ticker
	count  uint64
}

// NewSyntheticInfrared creates a synthetic infrared source producing
// width x height frames at the given frame rate.
func NewSyntheticInfrared(width, height, fps int) *SyntheticInfrared {
	return &SyntheticInfrared{
		width:  width,
		height: height,
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
	}
}

// Available implements Availability; the synthetic device is always ready.
func (s *SyntheticInfrared) Available() bool { return true }

// Next blocks until the next frame tick and returns a freshly generated
// frame.
func (s *SyntheticInfrared) Next(ctx context.Context) (*RawFrame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ticker.C:
	}

	s.count++
	phase := int(s.count % uint64(s.width))
	samples := make([]uint16, s.width*s.height)
	for y := 0; y < s.height; y++ {
		row := y * s.width
		for x := 0; x < s.width; x++ {
			samples[row+x] = uint16(((x + phase) % s.width) * 65535 / (s.width - 1))
		}
	}
	return &RawFrame{
		Samples:   samples,
		Width:     s.width,
		Height:    s.height,
		Number:    s.count,
		Timestamp: time.Now(),
	}, nil
}

// Close stops the frame ticker.
func (s *SyntheticInfrared) Close() error {
	s.ticker.Stop()
	return nil
}

// SyntheticColor generates BGRA color frames with slowly cycling color
// bars at a fixed rate.
type SyntheticColor struct {
	width  int
	height int
	ticker *time.Ticker
	count  uint64
}

// NewSyntheticColor creates a synthetic color source.
func NewSyntheticColor(width, height, fps int) *SyntheticColor {
	return &SyntheticColor{
		width:  width,
		height: height,
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
	}
}

// Available implements Availability.
func (s *SyntheticColor) Available() bool { return true }

// Next blocks until the next frame tick.
func (s *SyntheticColor) Next(ctx context.Context) (*ColorFrame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ticker.C:
	}

	s.count++
	data := make([]byte, s.width*s.height*4)
	barWidth := s.width / 8
	if barWidth == 0 {
		barWidth = 1
	}
	shift := int(s.count) % 8
	for y := 0; y < s.height; y++ {
		row := y * s.width * 4
		for x := 0; x < s.width; x++ {
			bar := (x/barWidth + shift) % 8
			j := row + x*4
			data[j] = byte(bar * 32)         // B
			data[j+1] = byte(255 - bar*32)   // G
			data[j+2] = byte((bar * 64) % 256) // R
			data[j+3] = 0xff
		}
	}
	return &ColorFrame{
		Data:      data,
		Width:     s.width,
		Height:    s.height,
		Number:    s.count,
		Timestamp: time.Now(),
	}, nil
}

// Close stops the frame ticker.
func (s *SyntheticColor) Close() error {
	s.ticker.Stop()
	return nil
}

// SyntheticAudio generates a 440Hz sine in 100ms chunks of mono float32
// samples.
type SyntheticAudio struct {
	sampleRate int
	ticker     *time.Ticker
	phase      float64
}

// NewSyntheticAudio creates a synthetic audio source at the given sample
// rate.
func NewSyntheticAudio(sampleRate int) *SyntheticAudio {
	return &SyntheticAudio{
		sampleRate: sampleRate,
		ticker:     time.NewTicker(100 * time.Millisecond),
	}
}

// Available implements Availability.
func (s *SyntheticAudio) Available() bool { return true }

// Next blocks until the next chunk tick.
func (s *SyntheticAudio) Next(ctx context.Context) (*AudioChunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ticker.C:
	}

	n := s.sampleRate / 10
	samples := make([]float32, n)
	step := 2 * math.Pi * 440 / float64(s.sampleRate)
	for i := range samples {
		samples[i] = float32(0.2 * math.Sin(s.phase))
		s.phase += step
	}
	if s.phase > 2*math.Pi {
		s.phase -= 2 * math.Pi * math.Floor(s.phase/(2*math.Pi))
	}
	return &AudioChunk{
		Samples:    samples,
		SampleRate: s.sampleRate,
		Timestamp:  time.Now(),
	}, nil
}

// Close stops the chunk ticker.
func (s *SyntheticAudio) Close() error {
	s.ticker.Stop()
	return nil
}
