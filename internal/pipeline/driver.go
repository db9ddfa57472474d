// Package pipeline runs the capture loops that pull frames from sensor
// sources, process them, and hand them to publish sinks. Each pipeline is
// a single goroutine owning its processing state; pipelines only meet in
// the supervisor.
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
	"github.com/depthcast/depthcast/internal/tonemap"
)

// idleInterval is how long a pipeline sleeps between consumer checks when
// its sink reports no consumers.
const idleInterval = 100 * time.Millisecond

// progressEvery is the frame interval for periodic progress log lines.
const progressEvery = 30

// Infrared turns raw 16-bit infrared frames into tone-mapped BGRA and
// pushes them to a video sink. The tone-mapping engine is confined to this
// pipeline's goroutine; tuning changes arrive through the engine's store.
type Infrared struct {
	source sensor.InfraredSource
	sink   publish.VideoSink
	engine *tonemap.Engine
	m      *metrics.Metrics
}

// NewInfrared wires an infrared pipeline. engine must not be shared with
// any other goroutine.
func NewInfrared(source sensor.InfraredSource, sink publish.VideoSink, engine *tonemap.Engine, m *metrics.Metrics) *Infrared {
	return &Infrared{source: source, sink: sink, engine: engine, m: m}
}

// Run drives the pipeline until ctx is cancelled or a source/sink error
// occurs. Cancellation returns nil. Before each frame is transformed the
// engine is given a chance to pick up new tuning parameters, so a frame is
// never rendered with a table older than the last adopted change.
func (p *Infrared) Run(ctx context.Context) error {
	log := logger.WithPipeline("infrared")
	p.engine.Init()

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

		if p.engine.MaybeRefresh(time.Now()) {
			p.m.LUTRegenerations.Inc()
		}

		frame, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, sensor.ErrEndOfStream) {
				log.Info().Uint64("frames", processed).Msg("Infrared source ended")
				return nil
			}
			p.m.PipelineFailures.WithLabelValues("infrared").Inc()
			return fmt.Errorf("infrared capture: %w", err)
		}

		tstart := time.Now()
		out := p.engine.Transform(frame.Samples)
		p.m.TransformSeconds.Observe(time.Since(tstart).Seconds())

		if err := p.sink.Push(out, frame.Timestamp.Sub(start)); err != nil {
			p.m.PipelineFailures.WithLabelValues("infrared").Inc()
			return fmt.Errorf("infrared publish: %w", err)
		}

		processed++
		p.m.FramesProcessed.WithLabelValues("infrared").Inc()
		if processed%progressEvery == 0 {
			params := p.engine.ActiveParams()
			log.Debug().
				Uint64("frames", processed).
				Float64("output_min", params.OutputMin).
				Float64("output_max", params.OutputMax).
				Float64("source_scale", params.SourceScale).
				Msg("Infrared pipeline progress")
		}
	}
}

// sleep waits for d or ctx cancellation; it reports false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
