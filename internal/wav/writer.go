// SPDX-License-Identifier: MIT
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Layout selects the data chunk framing.
type Layout int

const (
	// LayoutLegacy writes the "data" tag followed directly by the payload,
	// with no data size field. The payload starts at offset 40.
	LayoutLegacy Layout = iota
	// LayoutCanonical writes the 4-byte data size after the "data" tag.
	// The payload starts at offset 44.
	LayoutCanonical
)

func (l Layout) String() string {
	if l == LayoutCanonical {
		return "canonical"
	}
	return "legacy"
}

const (
	legacyHeaderSize    = 40
	canonicalHeaderSize = 44
	fmtChunkSize        = 16
)

var (
	ErrSizeMismatch = errors.New("payload size does not match header")
	ErrNotWave      = errors.New("not a RIFF/WAVE file")
)

// IOError reports a failure to open, write or close the destination file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("wav: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Header holds everything the RIFF header is derived from.
type Header struct {
	Format     Format
	Channels   int
	SampleRate int
	Frames     int
}

// BlockAlign is the number of bytes in one frame across all channels.
func (h Header) BlockAlign() int { return h.Channels * h.Format.BytesPerSample() }

func (h Header) ByteRate() int { return h.BlockAlign() * h.SampleRate }

func (h Header) DataSize() int { return h.Frames * h.BlockAlign() }

// ChunkSize is the RIFF chunk size field: 36 plus the payload size.
func (h Header) ChunkSize() int { return 36 + h.DataSize() }

func (h Header) validate() error {
	if !h.Format.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(h.Format))
	}
	if h.Channels < 1 || h.Channels > 0xFFFF {
		return fmt.Errorf("wav: invalid channel count %d", h.Channels)
	}
	if h.SampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d", h.SampleRate)
	}
	if h.Frames < 0 {
		return fmt.Errorf("wav: invalid frame count %d", h.Frames)
	}
	return nil
}

// MarshalLegacy returns the 40 byte header used by LayoutLegacy.
func (h Header) MarshalLegacy() ([]byte, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	tag, _ := h.Format.Tag()

	b := make([]byte, legacyHeaderSize)
	copy(b[0:], "RIFF")
	binary.LittleEndian.PutUint32(b[4:], uint32(h.ChunkSize()))
	copy(b[8:], "WAVE")
	copy(b[12:], "fmt ")
	binary.LittleEndian.PutUint32(b[16:], fmtChunkSize)
	binary.LittleEndian.PutUint16(b[20:], tag)
	binary.LittleEndian.PutUint16(b[22:], uint16(h.Channels))
	binary.LittleEndian.PutUint32(b[24:], uint32(h.SampleRate))
	binary.LittleEndian.PutUint32(b[28:], uint32(h.ByteRate()))
	binary.LittleEndian.PutUint16(b[32:], uint16(h.BlockAlign()))
	binary.LittleEndian.PutUint16(b[34:], uint16(h.Format.BitsPerSample()))
	copy(b[36:], "data")
	return b, nil
}

// Write emits a complete WAVE file for the encoded payload data to w.
// len(data) must equal h.DataSize().
func Write(w io.WriteSeeker, data []byte, h Header, layout Layout) error {
	if err := h.validate(); err != nil {
		return err
	}
	if len(data) != h.DataSize() {
		return fmt.Errorf("%w: %d bytes for %d frames of %d bytes",
			ErrSizeMismatch, len(data), h.Frames, h.BlockAlign())
	}

	if layout == LayoutCanonical {
		return writeCanonical(w, data, h)
	}

	hdr, err := h.MarshalLegacy()
	if err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// writeCanonical routes the payload through go-audio/wav, which writes the
// data size field and patches the RIFF size on Close. The payload bytes are
// lifted back to the integer widths the encoder expects so the emitted bytes
// are identical to data.
func writeCanonical(w io.WriteSeeker, data []byte, h Header) error {
	tag, _ := h.Format.Tag()
	bits := h.Format.BitsPerSample()

	enc := gowav.NewEncoder(w, h.SampleRate, bits, h.Channels, int(tag))
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: h.Channels,
			SampleRate:  h.SampleRate,
		},
		Data:           payloadInts(data, h.Format),
		SourceBitDepth: bits,
	}

	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func payloadInts(data []byte, f Format) []int {
	n := len(data) / f.BytesPerSample()
	out := make([]int, n)
	switch f {
	case PCM8:
		for i := range out {
			out[i] = int(data[i])
		}
	case PCM16:
		for i := range out {
			out[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
	case Float32:
		for i := range out {
			out[i] = int(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return out
}

// WriteFile creates path and writes a WAVE file into it. Failures to
// create, write or close the file are returned as *IOError.
func WriteFile(path string, data []byte, h Header, layout Layout) error {
	if err := h.validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	return WriteAndClose(f, data, h, layout)
}

// WriteAndClose writes to an already created file and closes it. The file
// is closed even when the write fails.
func WriteAndClose(f *os.File, data []byte, h Header, layout Layout) error {
	if err := Write(f, data, h, layout); err != nil {
		f.Close()
		if errors.Is(err, ErrSizeMismatch) || errors.Is(err, ErrUnsupportedFormat) {
			return err
		}
		return &IOError{Op: "write", Path: f.Name(), Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: f.Name(), Err: err}
	}
	return nil
}
