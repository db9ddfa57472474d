package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/depthcast/depthcast/internal/logger"
	"github.com/depthcast/depthcast/internal/metrics"
	"github.com/depthcast/depthcast/internal/tonemap"
)

// Result is the terminal state of one supervised goroutine. Err is nil for
// a clean exit.
type Result struct {
	Name string
	Err  error
}

// Supervisor runs pipeline goroutines to completion and collects their
// results. A failing pipeline never takes its siblings down; the caller
// decides from the results whether the service should stop.
type Supervisor struct {
	wg      sync.WaitGroup
	results chan Result
}

// NewSupervisor sizes the result channel for up to n goroutines.
func NewSupervisor(n int) *Supervisor {
	return &Supervisor{results: make(chan Result, n)}
}

// Start launches run under the given name. It must not be called after
// Wait.
func (s *Supervisor) Start(ctx context.Context, name string, run func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log := logger.WithPipeline(name)
		log.Info().Msg("Pipeline started")
		err := run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Pipeline failed")
		} else {
			log.Info().Msg("Pipeline stopped")
		}
		s.results <- Result{Name: name, Err: err}
	}()
}

// Results streams terminal states as goroutines finish.
func (s *Supervisor) Results() <-chan Result {
	return s.results
}

// Wait blocks until every started goroutine has finished, then closes the
// result channel.
func (s *Supervisor) Wait() {
	s.wg.Wait()
	close(s.results)
}

// WatchTuning polls the tuning store at the given interval until ctx is
// cancelled. Change detection and adoption live in the store; this loop
// only provides the cadence and counts adopted reloads.
func WatchTuning(ctx context.Context, store *tonemap.Store, interval time.Duration, m *metrics.Metrics) error {
	log := logger.WithComponent("tuning")
	log.Info().Str("path", store.Path()).Dur("interval", interval).Msg("Tuning watcher started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Tuning watcher stopped")
			return nil
		case <-ticker.C:
			if _, changed := store.Poll(); changed {
				m.TuningReloads.Inc()
			}
		}
	}
}
