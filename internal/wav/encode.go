// SPDX-License-Identifier: MIT
package wav

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode converts interleaved normalized samples into the byte layout of
// format f. Values outside [-1, 1] are not clamped and wrap in the integer
// formats.
//
//	PCM8    byte(round(127 * (x + 1)))
//	PCM16   int16(round(32767 * x)), little-endian
//	Float32 IEEE-754 bits, little-endian
func Encode(samples []float32, f Format) ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(f))
	}

	out := make([]byte, len(samples)*f.BytesPerSample())
	EncodeInto(out, samples, f)
	return out, nil
}

// EncodeInto is Encode without the allocation. dst must hold at least
// len(samples)*f.BytesPerSample() bytes and f must be valid.
func EncodeInto(dst []byte, samples []float32, f Format) {
	switch f {
	case PCM8:
		for i, x := range samples {
			v := int64(math.Round(127 * (float64(x) + 1)))
			dst[i] = byte(v)
		}
	case PCM16:
		for i, x := range samples {
			v := int64(math.Round(32767 * float64(x)))
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v)))
		}
	case Float32:
		for i, x := range samples {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(x))
		}
	}
}
