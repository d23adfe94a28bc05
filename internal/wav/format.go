// SPDX-License-Identifier: MIT
package wav

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned when a sample format outside the known
// set reaches the encoder or the writer. It indicates a programming error.
var ErrUnsupportedFormat = errors.New("unsupported sample format")

// Format selects how normalized float samples are stored on disk.
type Format int

const (
	PCM8    Format = iota // 8 bit unsigned PCM
	PCM16                 // 16 bit signed PCM, little-endian
	Float32               // 32 bit IEEE-754 float, little-endian
)

// WAVE format tags written into the fmt chunk.
const (
	TagPCM       uint16 = 1
	TagIEEEFloat uint16 = 3
)

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	return f >= PCM8 && f <= Float32
}

// BytesPerSample returns the storage size of one sample, or 0 for an
// unknown format.
func (f Format) BytesPerSample() int {
	switch f {
	case PCM8:
		return 1
	case PCM16:
		return 2
	case Float32:
		return 4
	default:
		return 0
	}
}

// BitsPerSample is 8 * BytesPerSample.
func (f Format) BitsPerSample() int {
	return 8 * f.BytesPerSample()
}

// Tag returns the fmt chunk audio format tag.
func (f Format) Tag() (uint16, error) {
	switch f {
	case PCM8, PCM16:
		return TagPCM, nil
	case Float32:
		return TagIEEEFloat, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(f))
	}
}

func (f Format) String() string {
	switch f {
	case PCM8:
		return "8 bit unsigned"
	case PCM16:
		return "16 bit signed"
	case Float32:
		return "32 bit float"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat accepts the short config names ("pcm8", "pcm16", "float32"),
// bit depths ("8", "16", "32") and the names produced by String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pcm8", "u8", "8", "8 bit unsigned":
		return PCM8, nil
	case "pcm16", "s16", "16", "16 bit signed":
		return PCM16, nil
	case "float32", "f32", "float", "32", "32 bit float":
		return Float32, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromHeader maps a fmt chunk tag and bit depth back to a Format.
func FormatFromHeader(tag uint16, bits int) (Format, error) {
	switch {
	case tag == TagPCM && bits == 8:
		return PCM8, nil
	case tag == TagPCM && bits == 16:
		return PCM16, nil
	case tag == TagIEEEFloat && bits == 32:
		return Float32, nil
	default:
		return 0, fmt.Errorf("%w: tag %d, %d bits", ErrUnsupportedFormat, tag, bits)
	}
}
