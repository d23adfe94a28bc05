// SPDX-License-Identifier: MIT
/*
Package rack runs the noise generator and the recorder side by side, one
frame at a time, and is what the audio callback drives.

Controls reach the rack through an atomic snapshot written by the panel or
the control transport; status leaves through atomics. Nothing here blocks,
allocates per frame or depends on the host audio library, so the same rack
is driven by the PortAudio engine and by offline rendering.
*/
package rack

import (
	"math"
	"sync/atomic"

	"microtools/internal/noise"
	"microtools/internal/recorder"
	"microtools/internal/wav"
)

// Controls are the panel settings. They are written by the UI or the
// control transport and read once per audio block.
type Controls struct {
	Mode       noise.Mode
	PeriodKnob float32 // volts, 0..10
	Multiplier int
	VolumeKnob float32 // volts, 0..10

	Record bool
	Stereo bool
	Format wav.Format
	// RecordNoise routes the generator output to the recorder instead of
	// the input jacks.
	RecordNoise bool
}

// Frame holds the input voltages for one frame.
type Frame struct {
	Left     float32
	Right    float32
	PeriodCV float32
	VolumeCV float32
}

// Input channel layout of the hardware stream, in volts scaled by
// recorder.PeakVolts.
const (
	ChannelLeft = iota
	ChannelRight
	ChannelPeriodCV
	ChannelVolumeCV
	MaxInputChannels
)

// Status is a snapshot of the rack that is safe to take from any
// goroutine.
type Status struct {
	Controls Controls
	Recorder recorder.Status
	Period   int
	Output   float32 // volts, last generated sample
	Blocks   uint64
}

// Rack runs the noise generator and the recorder side by side, one frame
// at a time.
type Rack struct {
	gen     *noise.Generator
	session *recorder.Session

	controls atomic.Pointer[Controls]

	period atomic.Int64
	output atomic.Uint32 // float32 bits
	blocks atomic.Uint64
}

// New returns a rack publishing initial as its first control snapshot.
func New(gen *noise.Generator, session *recorder.Session, initial Controls) *Rack {
	r := &Rack{gen: gen, session: session}
	r.SetControls(initial)
	r.period.Store(1)
	return r
}

// Controls returns the current control snapshot.
func (r *Rack) Controls() Controls { return *r.controls.Load() }

// SetControls replaces the control snapshot.
func (r *Rack) SetControls(c Controls) { r.controls.Store(&c) }

// UpdateControls applies fn to a copy of the current controls and
// publishes the result. Concurrent updates are retried, never lost.
func (r *Rack) UpdateControls(fn func(*Controls)) Controls {
	for {
		old := r.controls.Load()
		next := *old
		fn(&next)
		if r.controls.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// ProcessFrame advances the generator and the recorder by one frame and
// returns the generator output in volts.
func (r *Rack) ProcessFrame(in Frame) float32 {
	return r.processFrame(r.controls.Load(), in)
}

func (r *Rack) processFrame(c *Controls, in Frame) float32 {
	out := r.gen.Process(noise.Inputs{
		Mode:       c.Mode,
		PeriodKnob: c.PeriodKnob,
		PeriodCV:   in.PeriodCV,
		Multiplier: c.Multiplier,
		VolumeKnob: c.VolumeKnob,
		VolumeCV:   in.VolumeCV,
	})

	left, right := in.Left, in.Right
	if c.RecordNoise {
		left, right = out, out
	}
	r.session.Process(recorder.Inputs{
		Record: c.Record,
		Stereo: c.Stereo,
		Format: c.Format,
		Left:   left,
		Right:  right,
	})
	return out
}

// ProcessBlock runs one interleaved hardware buffer. Inputs and outputs
// are normalised samples; a full-scale sample is recorder.PeakVolts.
// Controls are sampled once for the whole block.
func (r *Rack) ProcessBlock(in []float32, inChannels int, out []float32, outChannels int) {
	c := r.controls.Load()

	frames := 0
	if outChannels > 0 {
		frames = len(out) / outChannels
	} else if inChannels > 0 {
		frames = len(in) / inChannels
	}

	for i := 0; i < frames; i++ {
		var f Frame
		if inChannels > 0 {
			base := i * inChannels
			f.Left = in[base+ChannelLeft] * recorder.PeakVolts
			if inChannels > ChannelRight {
				f.Right = in[base+ChannelRight] * recorder.PeakVolts
			}
			if inChannels > ChannelPeriodCV {
				f.PeriodCV = in[base+ChannelPeriodCV] * recorder.PeakVolts
			}
			if inChannels > ChannelVolumeCV {
				f.VolumeCV = in[base+ChannelVolumeCV] * recorder.PeakVolts
			}
		}

		v := r.processFrame(c, f) / recorder.PeakVolts
		for ch := 0; ch < outChannels; ch++ {
			out[i*outChannels+ch] = v
		}
	}

	r.period.Store(int64(r.gen.Counter().Period()))
	r.output.Store(math.Float32bits(r.gen.Engine().Last()))
	r.blocks.Add(1)
}

// Status can be called from any goroutine.
func (r *Rack) Status() Status {
	return Status{
		Controls: r.Controls(),
		Recorder: r.session.Status(),
		Period:   int(r.period.Load()),
		Output:   math.Float32frombits(r.output.Load()),
		Blocks:   r.blocks.Load(),
	}
}

func (r *Rack) Session() *recorder.Session { return r.session }
