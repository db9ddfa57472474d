package tonemap

import (
	"time"

	"github.com/depthcast/depthcast/internal/logger"
)

// Engine owns the active lookup table for the infrared pipeline and decides
// when to regenerate it from the store's current snapshot.
//
// The engine is confined to the single goroutine driving the pipeline loop:
// MaybeRefresh must complete before the Transform call that consumes its
// result, and the two are never interleaved. The store itself is the only
// cross-goroutine boundary and is internally synchronized.
type Engine struct {
	store        *Store
	pollInterval time.Duration

	lut      *LUT
	params   Params
	lastPoll time.Time

	// Reused across frames; the sensor geometry is fixed so after the
	// first frame this never reallocates.
	out []byte
}

// NewEngine creates an engine polling store's snapshot at the given
// interval. Call Init before the first Transform.
func NewEngine(store *Store, pollInterval time.Duration) *Engine {
	return &Engine{
		store:        store,
		pollInterval: pollInterval,
	}
}

// Init obtains the initial snapshot and generates the first lookup table.
// This is the only point where generation happens unconditionally.
func (e *Engine) Init() {
	e.params = e.store.Snapshot()
	e.lut = GenerateLUT(e.params)
	logger.WithComponent("tonemap").Debug().
		Float64("min", e.params.OutputMin).
		Float64("max", e.params.OutputMax).
		Float64("scale", e.params.SourceScale).
		Msg("Initial lookup table generated")
}

// MaybeRefresh compares the store's snapshot against the active parameters
// once per poll interval and regenerates the lookup table on change.
// Returns true if the table was regenerated. The unchanged path performs no
// allocation and no table work.
func (e *Engine) MaybeRefresh(now time.Time) bool {
	if !e.lastPoll.IsZero() && now.Sub(e.lastPoll) < e.pollInterval {
		return false
	}
	e.lastPoll = now

	p := e.store.Snapshot()
	if p == e.params {
		return false
	}

	old := e.params
	e.lut = GenerateLUT(p)
	e.params = p
	logger.WithComponent("tonemap").Info().
		Float64("old_min", old.OutputMin).
		Float64("old_max", old.OutputMax).
		Float64("old_scale", old.SourceScale).
		Float64("min", p.OutputMin).
		Float64("max", p.OutputMax).
		Float64("scale", p.SourceScale).
		Msg("Lookup table regenerated")
	return true
}

// Transform maps each 16-bit sample through the active lookup table into a
// BGRA pixel: the luminance byte replicated across the three color channels
// plus full opacity. The returned slice is 4x the sample count and is
// reused across calls; it is valid until the next Transform.
func (e *Engine) Transform(samples []uint16) []byte {
	n := len(samples) * 4
	if cap(e.out) < n {
		e.out = make([]byte, n)
	}
	out := e.out[:n]

	lut := e.lut
	for i, s := range samples {
		v := lut[s]
		j := i * 4
		out[j] = v
		out[j+1] = v
		out[j+2] = v
		out[j+3] = 0xff
	}
	return out
}

// ActiveParams returns the parameters behind the active lookup table.
func (e *Engine) ActiveParams() Params {
	return e.params
}

// ActiveLUT returns the active lookup table. The table is immutable;
// callers on the engine's goroutine may hold the reference across frames to
// observe identity stability.
func (e *Engine) ActiveLUT() *LUT {
	return e.lut
}
