package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/depthcast/depthcast/internal/logger"
	"github.com/depthcast/depthcast/internal/metrics"
	"github.com/depthcast/depthcast/internal/publish"
	"github.com/depthcast/depthcast/internal/sensor"
)

// Color forwards BGRA color frames to a video sink unmodified.
type Color struct {
	source sensor.ColorSource
	sink   publish.VideoSink
	m      *metrics.Metrics
}

// NewColor wires a color pipeline.
func NewColor(source sensor.ColorSource, sink publish.VideoSink, m *metrics.Metrics) *Color {
	return &Color{source: source, sink: sink, m: m}
}

// Run drives the pipeline until ctx is cancelled or a source/sink error
// occurs. Cancellation returns nil.
func (p *Color) Run(ctx context.Context) error {
	log := logger.WithPipeline("color")

	start := time.Now()
	processed := uint64(0)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !p.sink.Active() {
			if !sleep(ctx, idleInterval) {
				return nil
			}
			continue
		}

		frame, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, sensor.ErrEndOfStream) {
				log.Info().Uint64("frames", processed).Msg("Color source ended")
				return nil
			}
			p.m.PipelineFailures.WithLabelValues("color").Inc()
			return fmt.Errorf("color capture: %w", err)
		}

		if err := p.sink.Push(frame.Data, frame.Timestamp.Sub(start)); err != nil {
			p.m.PipelineFailures.WithLabelValues("color").Inc()
			return fmt.Errorf("color publish: %w", err)
		}

		processed++
		p.m.FramesProcessed.WithLabelValues("color").Inc()
		if processed%progressEvery == 0 {
			log.Debug().Uint64("frames", processed).Msg("Color pipeline progress")
		}
	}
}
