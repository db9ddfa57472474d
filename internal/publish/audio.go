package publish

import "math"

// ConvertF32ToS16LE converts mono float32 samples in [-1, 1] to
// little-endian signed 16-bit interleaved bytes, the layout the audio
// encoder expects. Samples outside the unit range are clamped. buf is
// reused when large enough; the returned slice is always 2x the sample
// count.
func ConvertF32ToS16LE(samples []float32, buf []byte) []byte {
	n := len(samples) * 2
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	out := buf[:n]
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * math.MaxInt16)
		out[i*2] = byte(v)
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}
