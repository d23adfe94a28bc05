// SPDX-License-Identifier: MIT
/*
Package recorder implements the recording session state machine and the
background writer that turns finished sessions into WAV files.

Session.Process runs on the audio callback once per frame. It only appends
to a buffer it owns and flips atomics; when a session ends the buffer is
moved into a Payload and handed to a Sink without blocking. The Writer is
the Sink used in production: a single goroutine that allocates a file name,
encodes the payload and writes it.
*/
package recorder

import (
	"errors"
	"sync/atomic"

	"microtools/internal/wav"
	"microtools/pkg/bitint"

	"github.com/go-audio/audio"
)

// PeakVolts is the nominal peak of a modular audio signal. Inputs are
// divided by it so that +-12V maps to +-1.0.
const PeakVolts = 12.0

// State of the session state machine.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Inputs are the recorder controls and input voltages sampled every frame.
type Inputs struct {
	Record bool
	Stereo bool
	Format wav.Format
	Left   float32 // volts
	Right  float32 // volts
}

// Payload is a finished session. It owns its buffer; nothing else holds a
// reference once it has been handed to a Sink.
type Payload struct {
	Seq    uint64
	Buffer *audio.Float32Buffer // interleaved samples, Format carries channels and rate
	Format wav.Format
	Frames int
}

func (p Payload) Channels() int   { return p.Buffer.Format.NumChannels }
func (p Payload) SampleRate() int { return p.Buffer.Format.SampleRate }

// Seconds is the recorded length.
func (p Payload) Seconds() float64 {
	if p.SampleRate() == 0 {
		return 0
	}
	return float64(p.Frames) / float64(p.SampleRate())
}

func (p Payload) Header() wav.Header {
	return wav.Header{
		Format:     p.Format,
		Channels:   p.Channels(),
		SampleRate: p.SampleRate(),
		Frames:     p.Frames,
	}
}

// Sink receives finished sessions. Submit is called from the audio
// callback and must not block; it returns false if the payload was refused.
type Sink interface {
	Submit(p Payload) bool
}

// MaxPreallocFrames bounds the buffer a session allocates when it starts,
// which happens on the audio callback. Longer sessions grow the buffer.
const MaxPreallocFrames = 1 << 22

// Options tune a Session.
type Options struct {
	// MaxFrames ends a session once it holds this many frames. 0 means no
	// limit.
	MaxFrames int
	// PreallocFrames sizes the buffer allocated at the start of a session,
	// capped at MaxPreallocFrames.
	PreallocFrames int
}

// Status is a snapshot safe to take from any goroutine.
type Status struct {
	State          State
	Channels       int
	Format         wav.Format
	Frames         int64
	ElapsedSeconds float64
	Sessions       uint64 // sessions started
	Dropped        uint64 // finished sessions the sink refused
}

func (s Status) Recording() bool { return s.State == Recording }

// Session is the record/idle state machine for one recorder instance.
type Session struct {
	sampleRate int
	opts       Options
	sink       Sink

	// Owned by the audio callback.
	state      State
	prevRecord bool
	channels   int
	format     wav.Format
	buf        *audio.Float32Buffer
	frames     int
	seq        uint64

	// Published for Status.
	stateFlag  atomic.Int32
	latched    atomic.Int64 // channels<<8 | format
	frameCount atomic.Int64
	sessions   atomic.Uint64
	dropped    atomic.Uint64
}

// NewSession returns an idle session latched to mono and format.
func NewSession(sampleRate int, format wav.Format, sink Sink, opts Options) (*Session, error) {
	if sampleRate <= 0 {
		return nil, errors.New("recorder: sample rate must be positive")
	}
	if !format.Valid() {
		return nil, wav.ErrUnsupportedFormat
	}
	if sink == nil {
		return nil, errors.New("recorder: nil sink")
	}
	if opts.MaxFrames < 0 {
		opts.MaxFrames = 0
	}
	if opts.PreallocFrames <= 0 {
		opts.PreallocFrames = sampleRate
	}
	opts.PreallocFrames = min(opts.PreallocFrames, MaxPreallocFrames)

	s := &Session{
		sampleRate: sampleRate,
		opts:       opts,
		sink:       sink,
		channels:   1,
		format:     format,
	}
	s.publishLatch()
	return s, nil
}

func (s *Session) SampleRate() int { return s.sampleRate }

// Process advances the state machine by one frame. Edges are detected by
// comparing in.Record with the previous frame, so each transition fires
// once no matter how long the control is held.
func (s *Session) Process(in Inputs) {
	if s.state == Idle {
		s.latch(in)
	}

	switch {
	case in.Record && !s.prevRecord && s.state == Idle:
		s.start()
	case !in.Record && s.prevRecord && s.state == Recording:
		s.finish()
	}
	s.prevRecord = in.Record

	// A session that just ended picks up the controls on the same frame.
	if s.state == Idle {
		s.latch(in)
	}

	if s.state != Recording {
		return
	}

	s.buf.Data = append(s.buf.Data, in.Left/PeakVolts)
	if s.channels == 2 {
		s.buf.Data = append(s.buf.Data, in.Right/PeakVolts)
	}
	s.frames++
	s.frameCount.Store(int64(s.frames))

	if s.opts.MaxFrames > 0 && s.frames >= s.opts.MaxFrames {
		s.finish()
	}
}

func (s *Session) latch(in Inputs) {
	channels := 1
	if in.Stereo {
		channels = 2
	}
	format := s.format
	if in.Format.Valid() {
		format = in.Format
	}
	if channels != s.channels || format != s.format {
		s.channels, s.format = channels, format
		s.publishLatch()
	}
}

func (s *Session) publishLatch() {
	s.latched.Store(int64(s.channels)<<8 | int64(s.format))
}

func (s *Session) start() {
	s.seq++
	s.buf = &audio.Float32Buffer{
		Format: &audio.Format{
			NumChannels: s.channels,
			SampleRate:  s.sampleRate,
		},
		Data: make([]float32, 0, bitint.NextPowerOfTwo(s.opts.PreallocFrames*s.channels)),
	}
	s.frames = 0
	s.state = Recording

	s.frameCount.Store(0)
	s.sessions.Add(1)
	s.stateFlag.Store(int32(Recording))
}

func (s *Session) finish() {
	p := Payload{
		Seq:    s.seq,
		Buffer: s.buf,
		Format: s.format,
		Frames: s.frames,
	}
	s.buf = nil
	s.state = Idle
	s.stateFlag.Store(int32(Idle))

	if !s.sink.Submit(p) {
		s.dropped.Add(1)
	}
}

// Status can be called from any goroutine.
func (s *Session) Status() Status {
	frames := s.frameCount.Load()
	latched := s.latched.Load()
	return Status{
		State:          State(s.stateFlag.Load()),
		Channels:       int(latched >> 8),
		Format:         wav.Format(latched & 0xff),
		Frames:         frames,
		ElapsedSeconds: float64(frames) / float64(s.sampleRate),
		Sessions:       s.sessions.Load(),
		Dropped:        s.dropped.Load(),
	}
}

// BufferLen returns the number of samples held by the active session. It
// must only be called from the goroutine driving Process.
func (s *Session) BufferLen() int {
	if s.buf == nil {
		return 0
	}
	return len(s.buf.Data)
}
