package sensor

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/depthcast/depthcast/internal/logger"
)

// gstCapture owns one capture pipeline ending in an appsink and hands out
// raw buffer bytes. The concrete source types wrap it with format-specific
// decoding.
type gstCapture struct {
	name string

	mu       sync.Mutex
	pipeline *gst.Pipeline
	sink     *app.Sink
	closed   bool
}

func newGstCapture(name, pipelineStr string) (*gstCapture, error) {
	gst.Init(nil)

	log := logger.WithComponent("sensor")
	log.Debug().Str("source", name).Str("pipeline", pipelineStr).Msg("Creating capture pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return nil, fmt.Errorf("create %s capture pipeline: %w", name, err)
	}
	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return nil, fmt.Errorf("get %s appsink: %w", name, err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.Unref()
		return nil, fmt.Errorf("start %s capture pipeline: %w", name, err)
	}
	log.Info().Str("source", name).Msg("Capture pipeline started")
	return &gstCapture{
		name:     name,
		pipeline: pipeline,
		sink:     app.SinkFromElement(elem),
	}, nil
}

// pull blocks for the next buffer and copies its bytes out. Samples are
// polled with a short timeout so context cancellation is honored without
// CGO callbacks. Returns ErrEndOfStream once the pipeline reaches EOS or
// the capture is closed.
func (c *gstCapture) pull(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		closed, sink := c.closed, c.sink
		c.mu.Unlock()
		if closed {
			return nil, ErrEndOfStream
		}

		sample := sink.TryPullSample(10 * time.Millisecond)
		if sample == nil {
			if sink.IsEOS() {
				return nil, ErrEndOfStream
			}
			continue
		}

		buffer := sample.GetBuffer()
		if buffer == nil {
			return nil, fmt.Errorf("%s capture: sample without buffer", c.name)
		}
		mapInfo := buffer.Map(gst.MapRead)
		if mapInfo == nil {
			return nil, fmt.Errorf("%s capture: buffer map failed", c.name)
		}
		data := append([]byte(nil), mapInfo.Bytes()...)
		buffer.Unmap()
		return data, nil
	}
}

func (c *gstCapture) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.pipeline.SetState(gst.StateNull)
	c.pipeline.Unref()
	c.pipeline = nil
	logger.WithComponent("sensor").Info().Str("source", c.name).Msg("Capture pipeline stopped")
	return nil
}

// deviceReady probes whether a capture element can be constructed, which is
// the closest cheap signal that the camera stack is usable.
func deviceReady(factory string) bool {
	gst.Init(nil)
	e, err := gst.NewElement(factory)
	if err != nil {
		return false
	}
	e.SetState(gst.StateNull)
	return true
}

// GstInfraredSource reads 16-bit grayscale infrared frames from a V4L2
// device exposing GRAY16_LE, such as the IR endpoint of a depth camera.
type GstInfraredSource struct {
	capture *gstCapture
	width   int
	height  int
	number  uint64
}

// NewGstInfraredSource opens the infrared device with the given geometry.
func NewGstInfraredSource(device string, width, height, fps int) (*GstInfraredSource, error) {
	pipelineStr := fmt.Sprintf(
		"v4l2src device=%s ! video/x-raw,format=GRAY16_LE,width=%d,height=%d,framerate=%d/1 "+
			"! queue leaky=downstream max-size-buffers=2 "+
			"! appsink name=sink sync=false max-buffers=2 drop=true",
		device, width, height, fps,
	)
	capture, err := newGstCapture("infrared", pipelineStr)
	if err != nil {
		return nil, err
	}
	return &GstInfraredSource{capture: capture, width: width, height: height}, nil
}

// Available implements Availability.
func (s *GstInfraredSource) Available() bool { return deviceReady("v4l2src") }

// Next implements InfraredSource.
func (s *GstInfraredSource) Next(ctx context.Context) (*RawFrame, error) {
	data, err := s.capture.pull(ctx)
	if err != nil {
		return nil, err
	}
	want := s.width * s.height * 2
	if len(data) != want {
		return nil, fmt.Errorf("infrared capture: frame is %d bytes, want %d", len(data), want)
	}
	samples := make([]uint16, s.width*s.height)
	for i := range samples {
		samples[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	s.number++
	return &RawFrame{
		Samples:   samples,
		Width:     s.width,
		Height:    s.height,
		Number:    s.number,
		Timestamp: time.Now(),
	}, nil
}

// Close implements InfraredSource.
func (s *GstInfraredSource) Close() error { return s.capture.close() }

// GstColorSource reads BGRA color frames from a V4L2 device.
type GstColorSource struct {
	capture *gstCapture
	width   int
	height  int
	number  uint64
}

// NewGstColorSource opens the color device with the given geometry.
func NewGstColorSource(device string, width, height, fps int) (*GstColorSource, error) {
	pipelineStr := fmt.Sprintf(
		"v4l2src device=%s ! videoconvert ! videoscale "+
			"! video/x-raw,format=BGRA,width=%d,height=%d,framerate=%d/1 "+
			"! queue leaky=downstream max-size-buffers=2 "+
			"! appsink name=sink sync=false max-buffers=2 drop=true",
		device, width, height, fps,
	)
	capture, err := newGstCapture("color", pipelineStr)
	if err != nil {
		return nil, err
	}
	return &GstColorSource{capture: capture, width: width, height: height}, nil
}

// Available implements Availability.
func (s *GstColorSource) Available() bool { return deviceReady("v4l2src") }

// Next implements ColorSource.
func (s *GstColorSource) Next(ctx context.Context) (*ColorFrame, error) {
	data, err := s.capture.pull(ctx)
	if err != nil {
		return nil, err
	}
	s.number++
	return &ColorFrame{
		Data:      data,
		Width:     s.width,
		Height:    s.height,
		Number:    s.number,
		Timestamp: time.Now(),
	}, nil
}

// Close implements ColorSource.
func (s *GstColorSource) Close() error { return s.capture.close() }

// GstAudioSource reads mono float32 chunks from the default system
// microphone.
type GstAudioSource struct {
	capture    *gstCapture
	sampleRate int
}

// NewGstAudioSource opens the default audio input at the given rate.
func NewGstAudioSource(sampleRate int) (*GstAudioSource, error) {
	pipelineStr := fmt.Sprintf(
		"autoaudiosrc ! audioconvert ! audioresample "+
			"! audio/x-raw,format=F32LE,layout=interleaved,rate=%d,channels=1 "+
			"! queue leaky=downstream max-size-buffers=4 "+
			"! appsink name=sink sync=false max-buffers=4 drop=true",
		sampleRate,
	)
	capture, err := newGstCapture("audio", pipelineStr)
	if err != nil {
		return nil, err
	}
	return &GstAudioSource{capture: capture, sampleRate: sampleRate}, nil
}

// Available implements Availability.
func (s *GstAudioSource) Available() bool { return deviceReady("autoaudiosrc") }

// Next implements AudioSource.
func (s *GstAudioSource) Next(ctx context.Context) (*AudioChunk, error) {
	data, err := s.capture.pull(ctx)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("audio capture: chunk is %d bytes, not float32 aligned", len(data))
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return &AudioChunk{
		Samples:    samples,
		SampleRate: s.sampleRate,
		Timestamp:  time.Now(),
	}, nil
}

// Close implements AudioSource.
func (s *GstAudioSource) Close() error { return s.capture.close() }
