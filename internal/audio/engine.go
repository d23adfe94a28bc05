// SPDX-License-Identifier: MIT
/*
Package audio binds the noise generator and the recorder to the host audio
system.

An Engine opens a PortAudio duplex stream and feeds a rack.Rack from the
stream callback:

  - input channels 0 and 1 are the recorder's left and right inputs,
    channels 2 and 3 (when the device has them) are the period and volume
    CVs
  - every output channel carries the noise signal

Thread Safety:
  - the callback never blocks, allocates or logs
  - controls reach the callback through an atomic snapshot
  - finished recordings leave through a non-blocking queue
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"microtools/internal/config"
	applog "microtools/internal/log"
	"microtools/internal/rack"

	"github.com/gordonklaus/portaudio"
)

// MaxOutputChannels caps the number of output channels the noise is
// copied to.
const MaxOutputChannels = 2

var ErrNotRunning = errors.New("audio: stream not running")

type Engine struct {
	cfg  config.AudioConfig
	rack *rack.Rack

	inputDevice  *portaudio.DeviceInfo
	outputDevice *portaudio.DeviceInfo
	inChannels   int
	outChannels  int

	stream  *portaudio.Stream
	running atomic.Bool
	blocks  atomic.Uint64
}

// NewEngine resolves the configured devices. Inputs are optional: if the
// input device cannot be opened the engine runs output-only and the
// recorder sees silence.
func NewEngine(cfg config.AudioConfig, r *rack.Rack) (*Engine, error) {
	outputDevice, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, fmt.Errorf("output device: %w", err)
	}

	e := &Engine{
		cfg:          cfg,
		rack:         r,
		outputDevice: outputDevice,
		outChannels:  min(outputDevice.MaxOutputChannels, MaxOutputChannels),
	}

	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		applog.Warnf("Engine: no input device (%v), running output only", err)
	} else {
		e.inputDevice = inputDevice
		e.inChannels = min(inputDevice.MaxInputChannels, rack.MaxInputChannels)
	}

	return e, nil
}

func (e *Engine) params() portaudio.StreamParameters {
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   e.outputDevice,
			Channels: e.outChannels,
			Latency:  e.outputDevice.DefaultHighOutputLatency,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.cfg.SampleRate,
	}
	if e.cfg.LowLatency {
		params.Output.Latency = e.outputDevice.DefaultLowOutputLatency
	}

	if e.inputDevice != nil && e.inChannels > 0 {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   e.inputDevice,
			Channels: e.inChannels,
			Latency:  e.inputDevice.DefaultHighInputLatency,
		}
		if e.cfg.LowLatency {
			params.Input.Latency = e.inputDevice.DefaultLowInputLatency
		}
	}
	return params
}

// Start opens and starts the duplex stream.
func (e *Engine) Start() error {
	if e.running.Load() {
		return nil
	}

	params := e.params()
	// PortAudio expects one buffer argument per direction.
	var callback any = e.process
	if params.Input.Channels == 0 {
		callback = e.processOutput
	}
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting stream: %w", err)
	}

	e.stream = stream
	e.running.Store(true)

	in := "none"
	if e.inputDevice != nil {
		in = e.inputDevice.Name
	}
	applog.Infof("Engine: started %.0f Hz, %d frames, in %q x%d, out %q x%d",
		params.SampleRate, params.FramesPerBuffer, in, e.inChannels, e.outputDevice.Name, e.outChannels)
	return nil
}

// Stop stops and closes the stream. The rack keeps its state.
func (e *Engine) Stop() error {
	if !e.running.Swap(false) || e.stream == nil {
		return nil
	}
	defer func() { e.stream = nil }()

	if err := e.stream.Stop(); err != nil {
		e.stream.Close()
		return fmt.Errorf("stopping stream: %w", err)
	}
	if err := e.stream.Close(); err != nil {
		return fmt.Errorf("closing stream: %w", err)
	}
	applog.Infof("Engine: stopped after %d blocks", e.blocks.Load())
	return nil
}

// Close is Stop; it exists so the engine can sit beside other closers.
func (e *Engine) Close() error { return e.Stop() }

func (e *Engine) Running() bool { return e.running.Load() }

// Latency reports the stream's output latency.
func (e *Engine) Latency() (time.Duration, error) {
	if !e.running.Load() || e.stream == nil {
		return 0, ErrNotRunning
	}
	return e.stream.Info().OutputLatency, nil
}

// process is the PortAudio callback.
// Performance Critical:
// - Runs on the PortAudio thread
// - Uses the caller's buffers only
// - No allocations, locks or logging
func (e *Engine) process(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.rack.ProcessBlock(in, e.inChannels, out, e.outChannels)
	e.blocks.Add(1)
}

func (e *Engine) processOutput(out []float32) {
	e.process(nil, out)
}
