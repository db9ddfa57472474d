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

// Audio converts float32 microphone chunks to S16LE and pushes them to an
// audio sink. The conversion buffer is reused across chunks.
type Audio struct {
	source sensor.AudioSource
	sink   publish.AudioSink
	m      *metrics.Metrics

	buf []byte
}

// NewAudio wires an audio pipeline.
func NewAudio(source sensor.AudioSource, sink publish.AudioSink, m *metrics.Metrics) *Audio {
	return &Audio{source: source, sink: sink, m: m}
}

// Run drives the pipeline until ctx is cancelled or a source/sink error
// occurs. Cancellation returns nil.
func (p *Audio) Run(ctx context.Context) error {
	log := logger.WithPipeline("audio")

	start := time.Now()
	processed := uint64(0)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		chunk, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, sensor.ErrEndOfStream) {
				log.Info().Uint64("chunks", processed).Msg("Audio source ended")
				return nil
			}
			p.m.PipelineFailures.WithLabelValues("audio").Inc()
			return fmt.Errorf("audio capture: %w", err)
		}

		p.buf = publish.ConvertF32ToS16LE(chunk.Samples, p.buf)
		if err := p.sink.PushSamples(p.buf, chunk.Timestamp.Sub(start)); err != nil {
			p.m.PipelineFailures.WithLabelValues("audio").Inc()
			return fmt.Errorf("audio publish: %w", err)
		}

		processed++
		p.m.FramesProcessed.WithLabelValues("audio").Inc()
		if processed%progressEvery == 0 {
			log.Debug().Uint64("chunks", processed).Int("sample_rate", chunk.SampleRate).Msg("Audio pipeline progress")
		}
	}
}
