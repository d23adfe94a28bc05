// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChannelSummary describes one channel of a finished recording, in
// normalized units (1.0 is the nominal peak voltage).
type ChannelSummary struct {
	Peak    float64 // largest absolute sample
	RMS     float64
	Mean    float64 // DC offset
	Clipped int     // samples outside [-1, 1], which wrap in integer formats
}

// Summary is computed off the audio thread once a recording is handed to
// the writer.
type Summary struct {
	Frames   int
	Channels []ChannelSummary
}

// Peak returns the largest channel peak.
func (s Summary) Peak() float64 {
	var p float64
	for _, c := range s.Channels {
		p = math.Max(p, c.Peak)
	}
	return p
}

// Clipped returns the clipped sample count across channels.
func (s Summary) Clipped() int {
	var n int
	for _, c := range s.Channels {
		n += c.Clipped
	}
	return n
}

// Summarize de-interleaves samples into channels and measures each one.
func Summarize(samples []float32, channels int) Summary {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	s := Summary{Frames: frames, Channels: make([]ChannelSummary, channels)}
	if frames == 0 {
		return s
	}

	ch := make([]float64, frames)
	for c := 0; c < channels; c++ {
		clipped := 0
		for i := 0; i < frames; i++ {
			v := float64(samples[i*channels+c])
			ch[i] = v
			if v > 1 || v < -1 {
				clipped++
			}
		}

		s.Channels[c] = ChannelSummary{
			Peak:    math.Max(math.Abs(floats.Max(ch)), math.Abs(floats.Min(ch))),
			RMS:     math.Sqrt(floats.Dot(ch, ch) / float64(frames)),
			Mean:    stat.Mean(ch, nil),
			Clipped: clipped,
		}
	}
	return s
}
