package tonemap

import (
	"testing"
	"time"
)

func newTestEngine(t *testing.T, interval time.Duration) (*Engine, *Store) {
	t.Helper()
	s := NewStore(tuningPath(t))
	s.LoadOrDefault()
	e := NewEngine(s, interval)
	e.Init()
	return e, s
}

func TestEngineNoopRefreshKeepsTable(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	before := e.ActiveLUT()
	now := time.Now()
	for i := 0; i < 5; i++ {
		if e.MaybeRefresh(now.Add(time.Duration(i) * time.Second)) {
			t.Fatal("MaybeRefresh reported a refresh with an unchanged snapshot")
		}
	}
	if e.ActiveLUT() != before {
		t.Error("unchanged snapshot regenerated the lookup table")
	}
}

func TestEngineRefreshOnChange(t *testing.T) {
	e, s := newTestEngine(t, 0)

	want := Params{OutputMin: 0.3, OutputMax: 0.9, SourceScale: 2.0}
	writeTuning(t, s.Path(), `{
		"infrared_output_value_minimum": 0.3,
		"infrared_output_value_maximum": 0.9,
		"infrared_source_scale": 2.0
	}`)
	if _, ok := s.Poll(); !ok {
		t.Fatal("store did not pick up the tuning edit")
	}

	if !e.MaybeRefresh(time.Now()) {
		t.Fatal("MaybeRefresh did not regenerate after a snapshot change")
	}
	if e.ActiveParams() != want {
		t.Errorf("active params = %+v, want %+v", e.ActiveParams(), want)
	}
	if *e.ActiveLUT() != *GenerateLUT(want) {
		t.Error("active lookup table does not match a fresh generation from the new params")
	}
}

func TestEngineRespectsPollInterval(t *testing.T) {
	e, s := newTestEngine(t, 500*time.Millisecond)

	base := time.Now()
	e.MaybeRefresh(base)

	writeTuning(t, s.Path(), `{
		"infrared_output_value_minimum": 0.3,
		"infrared_output_value_maximum": 0.9,
		"infrared_source_scale": 2.0
	}`)
	if _, ok := s.Poll(); !ok {
		t.Fatal("store did not pick up the tuning edit")
	}

	if e.MaybeRefresh(base.Add(100 * time.Millisecond)) {
		t.Error("engine polled the store before its interval elapsed")
	}
	if !e.MaybeRefresh(base.Add(600 * time.Millisecond)) {
		t.Error("engine did not poll once its interval elapsed")
	}
}

func TestEngineTransform(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	samples := []uint16{0, 10000, 30000, 65535}
	out := e.Transform(samples)

	if len(out) != 4*len(samples) {
		t.Fatalf("output length = %d, want %d", len(out), 4*len(samples))
	}

	lut := e.ActiveLUT()
	for i, s := range samples {
		j := i * 4
		want := lut[s]
		if out[j] != want || out[j+1] != want || out[j+2] != want {
			t.Errorf("pixel %d = [%d %d %d], want luminance %d replicated",
				i, out[j], out[j+1], out[j+2], want)
		}
		if out[j+3] != 0xff {
			t.Errorf("pixel %d alpha = %d, want 255", i, out[j+3])
		}
	}

	// Default tuning maps sample 10000 to 151.
	if out[4] != 151 {
		t.Errorf("sample 10000 mapped to %d, want 151", out[4])
	}
}

func TestEngineTransformReusesBuffer(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	samples := make([]uint16, 512*424)
	a := e.Transform(samples)
	b := e.Transform(samples)
	if &a[0] != &b[0] {
		t.Error("Transform reallocated its output buffer for a fixed-size frame")
	}
}

func TestEngineRefreshThenTransformOrdering(t *testing.T) {
	e, s := newTestEngine(t, 0)

	writeTuning(t, s.Path(), `{
		"infrared_output_value_minimum": 0.0,
		"infrared_output_value_maximum": 1.0,
		"infrared_source_scale": 1.0
	}`)
	if _, ok := s.Poll(); !ok {
		t.Fatal("store did not pick up the tuning edit")
	}

	// The per-cycle sequence is refresh then transform; the transform must
	// see the refreshed table.
	e.MaybeRefresh(time.Now())
	out := e.Transform([]uint16{65535})
	if out[0] != 255 {
		t.Errorf("transform used a stale table: got %d, want 255", out[0])
	}
}
