package tonemap

import (
	"math"
	"testing"
)

func TestGenerateLUTDeterministic(t *testing.T) {
	p := DefaultParams()
	a := GenerateLUT(p)
	b := GenerateLUT(p)
	if a == b {
		t.Fatal("GenerateLUT returned the same table twice, expected fresh allocations")
	}
	if *a != *b {
		t.Fatal("two tables generated from identical parameters differ")
	}
}

func TestGenerateLUTBoundaries(t *testing.T) {
	p := DefaultParams()
	lut := GenerateLUT(p)

	// Raw zero always lands on the bottom of the output band.
	wantFloor := uint8(math.Round(p.OutputMin * 255))
	if lut[0] != wantFloor {
		t.Errorf("lut[0] = %d, want %d", lut[0], wantFloor)
	}

	// A sample far past the saturation point lands on the top of the band.
	wantCeil := uint8(math.Round(p.OutputMax * 255))
	if lut[30000] != wantCeil {
		t.Errorf("lut[30000] = %d, want %d (saturated)", lut[30000], wantCeil)
	}
	if lut[65535] != wantCeil {
		t.Errorf("lut[65535] = %d, want %d (saturated)", lut[65535], wantCeil)
	}
}

// TestGenerateLUTScenario pins the concrete default-tuning behavior:
// sample 10000 with (min=0.25, max=1.0, scale=3.0) maps to luminance 151.
func TestGenerateLUTScenario(t *testing.T) {
	lut := GenerateLUT(DefaultParams())
	if lut[10000] != 151 {
		t.Errorf("lut[10000] = %d, want 151", lut[10000])
	}
}

func TestGenerateLUTMonotonic(t *testing.T) {
	lut := GenerateLUT(Params{OutputMin: 0.1, OutputMax: 0.9, SourceScale: 1.5})
	for v := 1; v < len(lut); v++ {
		if lut[v] < lut[v-1] {
			t.Fatalf("lut not monotonic at %d: %d < %d", v, lut[v], lut[v-1])
		}
	}
}

func TestGenerateLUTFullBandWithoutScale(t *testing.T) {
	// scale=1 with the full [0,1] band is the identity-ish 16->8 bit squeeze.
	lut := GenerateLUT(Params{OutputMin: 0, OutputMax: 1, SourceScale: 1})
	if lut[0] != 0 {
		t.Errorf("lut[0] = %d, want 0", lut[0])
	}
	if lut[65535] != 255 {
		t.Errorf("lut[65535] = %d, want 255", lut[65535])
	}
	if lut[32768] != 128 {
		t.Errorf("lut[32768] = %d, want 128", lut[32768])
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Params
		wantErr bool
	}{
		{"defaults", DefaultParams(), false},
		{"full band", Params{OutputMin: 0, OutputMax: 1, SourceScale: 1}, false},
		{"min negative", Params{OutputMin: -0.1, OutputMax: 1, SourceScale: 1}, true},
		{"min at one", Params{OutputMin: 1, OutputMax: 1, SourceScale: 1}, true},
		{"max zero", Params{OutputMin: 0, OutputMax: 0, SourceScale: 1}, true},
		{"max above one", Params{OutputMin: 0, OutputMax: 1.1, SourceScale: 1}, true},
		{"min equals max", Params{OutputMin: 0.5, OutputMax: 0.5, SourceScale: 1}, true},
		{"min above max", Params{OutputMin: 0.8, OutputMax: 0.4, SourceScale: 1}, true},
		{"zero scale", Params{OutputMin: 0.25, OutputMax: 1, SourceScale: 0}, true},
		{"negative scale", Params{OutputMin: 0.25, OutputMax: 1, SourceScale: -3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
