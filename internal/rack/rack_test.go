// SPDX-License-Identifier: MIT
package rack

import (
	"path/filepath"
	"sync"
	"testing"

	"microtools/internal/noise"
	"microtools/internal/recorder"
	"microtools/internal/wav"
)

const testSampleRate = 48000

type captureSink struct {
	mu       sync.Mutex
	payloads []recorder.Payload
}

func (c *captureSink) Submit(p recorder.Payload) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	return true
}

func newTestRack(t testing.TB, sink recorder.Sink, c Controls) *Rack {
	t.Helper()
	session, err := recorder.NewSession(testSampleRate, wav.PCM16, sink, recorder.Options{PreallocFrames: 1 << 16})
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	gen := noise.NewGenerator(noise.DefaultScales, c.Mode, noise.NewSource(1))
	return New(gen, session, c)
}

func TestRackRecordsInputs(t *testing.T) {
	sink := &captureSink{}
	r := newTestRack(t, sink, Controls{Format: wav.Float32, VolumeKnob: 5})

	r.UpdateControls(func(c *Controls) { c.Record = true })
	for i := range 4 {
		r.ProcessFrame(Frame{Left: float32(i), Right: 99})
	}
	r.UpdateControls(func(c *Controls) { c.Record = false })
	r.ProcessFrame(Frame{})

	if len(sink.payloads) != 1 {
		t.Fatalf("Payloads: got %d, want 1", len(sink.payloads))
	}
	p := sink.payloads[0]
	if p.Channels() != 1 || p.Format != wav.Float32 {
		t.Errorf("Latched: got %d channels %v", p.Channels(), p.Format)
	}
	for i, v := range p.Buffer.Data {
		if want := float32(i) / recorder.PeakVolts; v != want {
			t.Errorf("Sample %d: got %v, want %v", i, v, want)
		}
	}
}

func TestRackRecordNoise(t *testing.T) {
	sink := &captureSink{}
	r := newTestRack(t, sink, Controls{
		Mode:        noise.ModeWhite,
		VolumeKnob:  10,
		Stereo:      true,
		Format:      wav.Float32,
		RecordNoise: true,
	})

	var outs []float32
	r.UpdateControls(func(c *Controls) { c.Record = true })
	for range 16 {
		outs = append(outs, r.ProcessFrame(Frame{Left: -12, Right: -12}))
	}
	r.UpdateControls(func(c *Controls) { c.Record = false })
	r.ProcessFrame(Frame{})

	p := sink.payloads[0]
	if len(p.Buffer.Data) != 32 {
		t.Fatalf("Samples: got %d, want 32", len(p.Buffer.Data))
	}
	for i, out := range outs {
		want := out / recorder.PeakVolts
		if p.Buffer.Data[2*i] != want || p.Buffer.Data[2*i+1] != want {
			t.Errorf("Frame %d: got %v/%v, want %v", i, p.Buffer.Data[2*i], p.Buffer.Data[2*i+1], want)
		}
		if out < 0 || out >= 10 {
			t.Errorf("Frame %d: white noise %v outside [0, 10)", i, out)
		}
	}
}

func TestRackProcessBlockChannelMap(t *testing.T) {
	sink := &captureSink{}
	r := newTestRack(t, sink, Controls{
		Mode:       noise.ModeWhite,
		PeriodKnob: 0,
		Record:     false,
		Stereo:     true,
		Format:     wav.Float32,
	})

	const frames = 8
	const inCh = MaxInputChannels
	in := make([]float32, frames*inCh)
	for i := range frames {
		in[i*inCh+ChannelLeft] = 0.5
		in[i*inCh+ChannelRight] = -0.25
		in[i*inCh+ChannelPeriodCV] = 0
		in[i*inCh+ChannelVolumeCV] = 0.5 // 6V on the volume CV
	}
	out := make([]float32, frames*2)

	// Press record at the block boundary, release on the next block.
	r.UpdateControls(func(c *Controls) { c.Record = true })
	r.ProcessBlock(in, inCh, out, 2)
	r.UpdateControls(func(c *Controls) { c.Record = false })
	r.ProcessBlock(in[:inCh], inCh, out[:2], 2)

	for i := range frames {
		if out[2*i] != out[2*i+1] {
			t.Errorf("Frame %d: channels differ %v/%v", i, out[2*i], out[2*i+1])
		}
		if out[2*i] < 0 || out[2*i] >= 6.0/recorder.PeakVolts {
			t.Errorf("Frame %d: output %v outside [0, 0.5)", i, out[2*i])
		}
	}

	if len(sink.payloads) != 1 {
		t.Fatalf("Payloads: got %d, want 1", len(sink.payloads))
	}
	data := sink.payloads[0].Buffer.Data
	if len(data) != 2*frames || data[0] != 0.5 || data[1] != -0.25 {
		t.Errorf("Recorded: got %d samples starting %v", len(data), data[:2])
	}

	st := r.Status()
	if st.Blocks != 2 || st.Period != 1 {
		t.Errorf("Status: got %d blocks period %d, want 2 blocks period 1", st.Blocks, st.Period)
	}
}

func TestRackProcessBlockOutputOnly(t *testing.T) {
	r := newTestRack(t, &captureSink{}, Controls{Mode: noise.ModeTrigger, VolumeKnob: 10})
	out := make([]float32, 64)
	r.ProcessBlock(nil, 0, out, 1)
	for i, v := range out {
		if v != 0 && v != 1/recorder.PeakVolts {
			t.Fatalf("Frame %d: trigger output %v", i, v)
		}
	}
}

func TestRackUpdateControlsConcurrent(t *testing.T) {
	r := newTestRack(t, &captureSink{}, Controls{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				r.UpdateControls(func(c *Controls) { c.Multiplier++ })
			}
		}()
	}
	wg.Wait()

	if got := r.Controls().Multiplier; got != 800 {
		t.Errorf("Multiplier: got %d, want 800", got)
	}
}

func TestRackProcessBlockZeroAllocs(t *testing.T) {
	r := newTestRack(t, &captureSink{}, Controls{Mode: noise.ModeBrownian, VolumeKnob: 5, Record: true, Stereo: true, Format: wav.PCM16})
	in := make([]float32, 64*MaxInputChannels)
	out := make([]float32, 64*2)
	r.ProcessBlock(in, MaxInputChannels, out, 2)

	allocs := testing.AllocsPerRun(100, func() {
		r.ProcessBlock(in, MaxInputChannels, out, 2)
	})
	if allocs != 0 {
		t.Errorf("ProcessBlock allocated %.1f times per block, want 0", allocs)
	}
}

func TestRenderWritesFile(t *testing.T) {
	dir := t.TempDir()
	w := recorder.NewWriter(wav.NewAllocator(dir, "noise"), recorder.WriterOptions{})
	w.Start()

	session, err := recorder.NewSession(testSampleRate, wav.Float32, w, recorder.Options{})
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	gen := noise.NewGenerator(noise.DefaultScales, noise.ModeBrownian, noise.NewSource(7))
	r := New(gen, session, Controls{Mode: noise.ModeBrownian, VolumeKnob: 8, Format: wav.Float32, Record: true})

	if err := Render(r, 1000); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	out := w.Last()
	if want := filepath.Join(dir, "noise0.wav"); out.Path != want {
		t.Fatalf("Path: got %q, want %q", out.Path, want)
	}
	info, data, err := wav.ReadFile(out.Path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if info.Frames != 1000 || info.Format != wav.Float32 {
		t.Errorf("Info: got %d frames %v", info.Frames, info.Format)
	}
	samples, err := wav.Decode(data, wav.Float32)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	for i, s := range samples {
		if s < 0 || s > 8.0/recorder.PeakVolts {
			t.Fatalf("Sample %d: %v outside brownian bounds", i, s)
		}
	}
	if r.Controls().Record {
		t.Error("Render must leave the record control released")
	}
}

func TestRenderRejectsZeroFrames(t *testing.T) {
	r := newTestRack(t, &captureSink{}, Controls{})
	if err := Render(r, 0); err == nil {
		t.Error("expected error for zero frames")
	}
}

func BenchmarkRackProcessBlock(b *testing.B) {
	r := newTestRack(b, &captureSink{}, Controls{Mode: noise.ModeWhite, VolumeKnob: 5})
	in := make([]float32, 512*MaxInputChannels)
	out := make([]float32, 512*2)

	for b.Loop() {
		r.ProcessBlock(in, MaxInputChannels, out, 2)
	}
}
