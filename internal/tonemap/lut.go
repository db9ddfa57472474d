package tonemap

import "math"

// LUT maps every possible 16-bit infrared sample to an output luminance
// byte. A table is immutable once built; a parameter change always yields a
// wholly new table, never an in-place edit, so a reader holding a *LUT can
// never observe a half-written one.
type LUT [1 << 16]uint8

// GenerateLUT builds the lookup table for p.
//
// For every raw sample v the entry is
//
//	round(min + clamp(v/65535 * scale, 0, 1) * (max - min)) * 255
//
// quantized with math.Round, i.e. half away from zero. Identical parameters
// always produce a bit-identical table; the engine relies on that to skip
// regeneration when nothing changed.
func GenerateLUT(p Params) *LUT {
	lut := new(LUT)
	band := p.OutputMax - p.OutputMin
	for v := range lut {
		scaled := float64(v) / 65535.0 * p.SourceScale
		if scaled > 1 {
			scaled = 1
		} else if scaled < 0 {
			scaled = 0
		}
		mapped := p.OutputMin + scaled*band
		entry := math.Round(mapped * 255.0)
		if entry > 255 {
			entry = 255
		} else if entry < 0 {
			entry = 0
		}
		lut[v] = uint8(entry)
	}
	return lut
}
