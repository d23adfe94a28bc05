// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"microtools/internal/rack"
	"microtools/internal/config"
	applog "microtools/internal/log"
	"microtools/internal/metrics"
	"microtools/internal/noise"
	"microtools/internal/recorder"
	"microtools/internal/transport"
	"microtools/internal/wav"
)

// host owns the processing graph shared by the run and render commands:
// the writer goroutine, the recording session, the generator and the rack.
// It implements tui.Backend.
type host struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	writer  *recorder.Writer
	rack    *rack.Rack
	seed    uint64
}

// newHost builds the graph from cfg. The writer is started; callers must
// call close once the rack is no longer processed.
func newHost(cfg *config.Config, m *metrics.Metrics, onResult func(recorder.Outcome)) (*host, error) {
	if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	dir, err := filepath.Abs(cfg.Recording.OutputDir)
	if err != nil {
		return nil, err
	}

	writer := recorder.NewWriter(wav.NewAllocator(dir, cfg.Recording.BaseName), recorder.WriterOptions{
		Layout:    cfg.Layout(),
		QueueSize: cfg.Recording.QueueSize,
		Metrics:   m,
		OnResult:  onResult,
	})

	session, err := recorder.NewSession(cfg.SampleRate(), cfg.RecordingFormat(), writer, recorder.Options{
		MaxFrames:      cfg.MaxFrames(),
		PreallocFrames: cfg.PreallocFrames(),
	})
	if err != nil {
		return nil, err
	}

	seed := cfg.Noise.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	gen := noise.NewGenerator(cfg.Scales(), cfg.NoiseMode(), noise.NewSource(seed))

	r := rack.New(gen, session, rack.Controls{
		Mode:       cfg.NoiseMode(),
		PeriodKnob: cfg.Noise.PeriodKnob,
		Multiplier: cfg.Noise.Multiplier,
		VolumeKnob: cfg.Noise.VolumeKnob,
		Stereo:     cfg.Recording.Stereo,
		Format:     cfg.RecordingFormat(),
	})

	writer.Start()
	applog.Debugf("Host: output %s, seed %d, %s layout", dir, seed, cfg.Layout())

	return &host{
		cfg:     cfg,
		metrics: m,
		writer:  writer,
		rack:    r,
		seed:    seed,
	}, nil
}

// Status implements tui.Backend and feeds the broadcasters.
func (h *host) Status() transport.Status {
	rs := h.rack.Status()
	h.metrics.SetRecording(rs.Recorder.Recording())
	h.metrics.SetQueueDepth(h.writer.Pending())
	return transport.NewStatus(rs, h.writer.Last())
}

func (h *host) Controls() rack.Controls { return h.rack.Controls() }

func (h *host) Apply(ctl transport.Control) error { return ctl.ApplyTo(h.rack) }

// finish releases the record control so a running session is handed to
// the writer. The audio stream must already be stopped.
func (h *host) finish() {
	if !h.rack.Status().Recorder.Recording() {
		return
	}
	h.rack.UpdateControls(func(c *rack.Controls) { c.Record = false })
	h.rack.ProcessFrame(rack.Frame{})
}

// close finalizes the running session and drains the writer.
func (h *host) close() error {
	h.finish()
	return h.writer.Close()
}
