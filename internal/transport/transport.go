// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"math"
	"time"

	"microtools/internal/rack"
	"microtools/internal/noise"
	"microtools/internal/recorder"
	"microtools/internal/wav"
)

// Transport defines a generic interface for sending status or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Status is the snapshot published to every transport.
type Status struct {
	Seq       uint64     `json:"seq"`
	Time      time.Time  `json:"time"`
	Recording bool       `json:"recording"`
	Channels  int        `json:"channels"`
	Format    wav.Format `json:"-"`
	Mode      noise.Mode `json:"-"`
	Frames    int64      `json:"frames"`
	Elapsed   float64    `json:"elapsed_seconds"`
	Sessions  uint64     `json:"sessions"`
	Dropped   uint64     `json:"dropped"`
	Period    int        `json:"period"`
	Output    float32    `json:"output_volts"`
	LastFile  string     `json:"last_file,omitempty"`
	LastError string     `json:"last_error,omitempty"`

	FormatName string `json:"format"`
	ModeName   string `json:"mode"`
}

// NewStatus combines the rack snapshot with the writer's last outcome.
func NewStatus(rs rack.Status, last recorder.Outcome) Status {
	s := Status{
		Time:       time.Now(),
		Recording:  rs.Recorder.Recording(),
		Channels:   rs.Recorder.Channels,
		Format:     rs.Recorder.Format,
		Mode:       rs.Controls.Mode,
		Frames:     rs.Recorder.Frames,
		Elapsed:    rs.Recorder.ElapsedSeconds,
		Sessions:   rs.Recorder.Sessions,
		Dropped:    rs.Recorder.Dropped,
		Period:     rs.Period,
		Output:     rs.Output,
		LastFile:   last.Path,
		FormatName: rs.Recorder.Format.String(),
		ModeName:   rs.Controls.Mode.String(),
	}
	if last.Err != nil {
		s.LastError = last.Err.Error()
	}
	return s
}

// StatusFunc produces the current status. It is called off the audio
// thread.
type StatusFunc func() Status

// Control is a partial update of the rack controls. Nil fields are left
// unchanged.
type Control struct {
	Record      *bool    `json:"record,omitempty"`
	Stereo      *bool    `json:"stereo,omitempty"`
	RecordNoise *bool    `json:"record_noise,omitempty"`
	Format      *string  `json:"format,omitempty"`
	Mode        *string  `json:"mode,omitempty"`
	Multiplier  *int     `json:"multiplier,omitempty"`
	PeriodKnob  *float32 `json:"period_knob,omitempty"`
	VolumeKnob  *float32 `json:"volume_knob,omitempty"`
}

// KnobMax is the top of a panel knob's travel, in volts.
const KnobMax = 10

var ErrBadControl = errors.New("invalid control")

// Apply validates c and, if it is valid, writes it into dst.
func (c Control) Apply(dst *rack.Controls) error {
	next := *dst

	if c.Format != nil {
		f, err := wav.ParseFormat(*c.Format)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadControl, err)
		}
		next.Format = f
	}
	if c.Mode != nil {
		m, err := noise.ParseMode(*c.Mode)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadControl, err)
		}
		next.Mode = m
	}
	if c.Multiplier != nil {
		if *c.Multiplier < 0 {
			return fmt.Errorf("%w: multiplier %d", ErrBadControl, *c.Multiplier)
		}
		next.Multiplier = *c.Multiplier
	}
	if c.PeriodKnob != nil {
		next.PeriodKnob = clampKnob(*c.PeriodKnob)
	}
	if c.VolumeKnob != nil {
		next.VolumeKnob = clampKnob(*c.VolumeKnob)
	}
	if c.Record != nil {
		next.Record = *c.Record
	}
	if c.Stereo != nil {
		next.Stereo = *c.Stereo
	}
	if c.RecordNoise != nil {
		next.RecordNoise = *c.RecordNoise
	}

	*dst = next
	return nil
}

// ApplyTo publishes c to the rack.
func (c Control) ApplyTo(r *rack.Rack) error {
	var err error
	r.UpdateControls(func(rc *rack.Controls) {
		err = c.Apply(rc)
	})
	return err
}

func clampKnob(v float32) float32 {
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	return min(v, KnobMax)
}
