// SPDX-License-Identifier: MIT
package wav

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Info describes a parsed WAVE file.
type Info struct {
	Header
	Layout    Layout
	Tag       uint16
	ChunkSize uint32

	// Stored values of the derived fmt fields, as read from the file.
	StoredByteRate   uint32
	StoredBlockAlign uint16
}

// Duration returns the length of the payload in seconds.
func (i Info) Duration() float64 {
	if i.SampleRate == 0 {
		return 0
	}
	return float64(i.Frames) / float64(i.SampleRate)
}

// ReadFile reads path and returns its header and payload bytes.
func ReadFile(path string) (Info, []byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Info{}, nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return Parse(b)
}

// Parse accepts files in either layout. A legacy file has a RIFF size of
// len-4 (no data size field), a canonical file one of len-8.
func Parse(b []byte) (Info, []byte, error) {
	if len(b) < legacyHeaderSize {
		return Info{}, nil, fmt.Errorf("%w: %d bytes", ErrNotWave, len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" ||
		string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Info{}, nil, ErrNotWave
	}

	info := Info{
		ChunkSize:        binary.LittleEndian.Uint32(b[4:]),
		Tag:              binary.LittleEndian.Uint16(b[20:]),
		StoredByteRate:   binary.LittleEndian.Uint32(b[28:]),
		StoredBlockAlign: binary.LittleEndian.Uint16(b[32:]),
	}
	info.Channels = int(binary.LittleEndian.Uint16(b[22:]))
	info.SampleRate = int(binary.LittleEndian.Uint32(b[24:]))

	format, err := FormatFromHeader(info.Tag, int(binary.LittleEndian.Uint16(b[34:])))
	if err != nil {
		return Info{}, nil, err
	}
	info.Format = format

	var payload []byte
	switch {
	case len(b) >= canonicalHeaderSize && int(info.ChunkSize) == len(b)-8 &&
		int(binary.LittleEndian.Uint32(b[40:])) == len(b)-canonicalHeaderSize:
		info.Layout = LayoutCanonical
		payload = b[canonicalHeaderSize:]
	case int(info.ChunkSize) == len(b)-4:
		info.Layout = LayoutLegacy
		payload = b[legacyHeaderSize:]
	default:
		return Info{}, nil, fmt.Errorf("%w: RIFF size %d does not match file size %d",
			ErrNotWave, info.ChunkSize, len(b))
	}

	if info.Channels == 0 {
		return Info{}, nil, fmt.Errorf("%w: zero channels", ErrNotWave)
	}
	info.Frames = len(payload) / info.Header.BlockAlign()
	return info, payload, nil
}

// Decode is the inverse of Encode. Integer formats come back quantized.
func Decode(data []byte, f Format) ([]float32, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(f))
	}

	out := make([]float32, len(data)/f.BytesPerSample())
	switch f {
	case PCM8:
		for i := range out {
			out[i] = float32(data[i])/127 - 1
		}
	case PCM16:
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32767
		}
	case Float32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	}
	return out, nil
}
