// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"microtools/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultFFTSize is the analysis window used by Analyze.
const DefaultFFTSize = 1024

// WindowFunc selects the taper applied to each analysis window.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
)

func (w WindowFunc) String() string {
	switch w {
	case Hamming:
		return "hamming"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	default:
		return "hann"
	}
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. Unknown
// names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	default:
		return Hann, fmt.Errorf("unknown window function %q", name)
	}
}

func applyWindow(coeffs []float64, w WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1
	}
	switch w {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}

// Band is a named frequency range and the share of the total power that
// falls inside it.
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
	Share  float64
}

// DefaultBands split the audible range the way a mixing desk would. The
// top band is extended to Nyquist.
var DefaultBands = []Band{
	{Name: "sub", LowHz: 0, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// Spectrum describes the averaged power spectrum of one channel.
type Spectrum struct {
	Windows  int
	Centroid float64 // Hz
	// Flatness is the ratio of geometric to arithmetic mean power: near 1
	// for white noise, near 0 for a tone.
	Flatness float64
	Bands    []Band
}

// SpectrumAnalyzer accumulates the power spectrum of successive windows.
// Add does not allocate.
type SpectrumAnalyzer struct {
	fft        *fourier.FFT
	size       int
	sampleRate float64

	input  []float64
	coeffs []complex128
	window []float64
	power  []float64 // summed |X|^2 per bin
	freqs  []float64
	frames int
}

func NewSpectrumAnalyzer(size int, sampleRate float64, w WindowFunc) (*SpectrumAnalyzer, error) {
	if size < 2 || !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	bins := size/2 + 1
	a := &SpectrumAnalyzer{
		fft:        fourier.NewFFT(size),
		size:       size,
		sampleRate: sampleRate,
		input:      make([]float64, size),
		coeffs:     make([]complex128, bins),
		window:     make([]float64, size),
		power:      make([]float64, bins),
		freqs:      make([]float64, bins),
	}
	applyWindow(a.window, w)
	for i := range a.freqs {
		a.freqs[i] = a.BinFrequency(i)
	}
	return a, nil
}

// Size is the number of points per window.
func (a *SpectrumAnalyzer) Size() int { return a.size }

// BinFrequency returns the centre frequency of bin i in Hz.
func (a *SpectrumAnalyzer) BinFrequency(i int) float64 {
	if i < 0 || i >= len(a.power) {
		return 0
	}
	return float64(i) * a.sampleRate / float64(a.size)
}

// Add windows one block of mono samples and adds its power spectrum.
// Short blocks are zero padded; samples past Size are ignored.
func (a *SpectrumAnalyzer) Add(samples []float32) {
	for i := range a.input {
		if i < len(samples) {
			a.input[i] = float64(samples[i]) * a.window[i]
		} else {
			a.input[i] = 0
		}
	}
	a.fft.Coefficients(a.coeffs, a.input)
	for i, c := range a.coeffs {
		m := cmplx.Abs(c)
		a.power[i] += m * m
	}
	a.frames++
}

// Reset clears the accumulated spectrum.
func (a *SpectrumAnalyzer) Reset() {
	clear(a.power)
	a.frames = 0
}

// Spectrum summarises what has been added so far. The DC bin is excluded.
func (a *SpectrumAnalyzer) Spectrum() Spectrum {
	s := Spectrum{Windows: a.frames, Bands: append([]Band(nil), DefaultBands...)}
	if a.frames == 0 {
		return s
	}

	power, freqs := a.power[1:], a.freqs[1:]
	total := floats.Sum(power)
	if total == 0 {
		return s
	}
	s.Centroid = floats.Dot(freqs, power) / total

	logs := make([]float64, len(power))
	for i, p := range power {
		logs[i] = math.Log(p + 1e-300)
	}
	s.Flatness = math.Exp(stat.Mean(logs, nil)) / stat.Mean(power, nil)

	for i, f := range freqs {
		for b := range s.Bands {
			if f >= s.Bands[b].LowHz && f < s.Bands[b].HighHz {
				s.Bands[b].Share += power[i] / total
				break
			}
		}
	}
	return s
}

// Analyze computes the spectrum of every channel of an interleaved
// recording using non-overlapping Hann windows of DefaultFFTSize.
func Analyze(samples []float32, channels int, sampleRate float64) ([]Spectrum, error) {
	if channels <= 0 {
		return nil, errors.New("analysis: channel count must be positive")
	}

	out := make([]Spectrum, channels)
	block := make([]float32, DefaultFFTSize)
	frames := len(samples) / channels

	for ch := range channels {
		a, err := NewSpectrumAnalyzer(DefaultFFTSize, sampleRate, Hann)
		if err != nil {
			return nil, err
		}
		for start := 0; start < frames; start += DefaultFFTSize {
			n := min(DefaultFFTSize, frames-start)
			for i := range n {
				block[i] = samples[(start+i)*channels+ch]
			}
			a.Add(block[:n])
		}
		out[ch] = a.Spectrum()
	}
	return out, nil
}
