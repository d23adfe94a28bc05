// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestSummarizeStereo(t *testing.T) {
	// Left alternates +-1, right is a constant -0.5.
	var samples []float32
	for i := 0; i < 100; i++ {
		l := float32(1)
		if i%2 == 1 {
			l = -1
		}
		samples = append(samples, l, -0.5)
	}

	s := Summarize(samples, 2)
	if s.Frames != 100 || len(s.Channels) != 2 {
		t.Fatalf("Shape: got %d frames x %d channels, want 100 x 2", s.Frames, len(s.Channels))
	}

	left, right := s.Channels[0], s.Channels[1]
	if left.Peak != 1 || math.Abs(left.RMS-1) > 1e-12 || math.Abs(left.Mean) > 1e-12 {
		t.Errorf("Left summary: got %+v", left)
	}
	if right.Peak != 0.5 || math.Abs(right.RMS-0.5) > 1e-12 || math.Abs(right.Mean+0.5) > 1e-12 {
		t.Errorf("Right summary: got %+v", right)
	}
	if s.Peak() != 1 {
		t.Errorf("Peak: got %v, want 1", s.Peak())
	}
	if s.Clipped() != 0 {
		t.Errorf("Clipped: got %d, want 0", s.Clipped())
	}
}

func TestSummarizeClipped(t *testing.T) {
	s := Summarize([]float32{0.2, 1.5, -1.25, 1}, 1)
	if s.Clipped() != 2 {
		t.Errorf("Clipped: got %d, want 2", s.Clipped())
	}
	if s.Peak() != 1.5 {
		t.Errorf("Peak: got %v, want 1.5", s.Peak())
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 2)
	if s.Frames != 0 || s.Peak() != 0 {
		t.Errorf("Empty summary: got %+v", s)
	}
}
