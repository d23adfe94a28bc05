// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"microtools/internal/noise"
	"microtools/internal/wav"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.RecordingFormat() != wav.PCM16 || cfg.NoiseMode() != noise.ModeWhite {
		t.Errorf("defaults: got format %v mode %v", cfg.RecordingFormat(), cfg.NoiseMode())
	}
	if cfg.Layout() != wav.LayoutLegacy {
		t.Errorf("default layout: got %v, want legacy", cfg.Layout())
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
audio:
  sample_rate: 48000
  frames_per_buffer: 256
noise:
  mode: brownian
  seed: 42
  multiplier: 2
  multiplier_scales: [1, 4, 16]
recording:
  output_dir: /tmp/takes
  format: 32 bit float
  stereo: true
  canonical_header: true
  max_duration_seconds: 3
transport:
  websocket_addr: 127.0.0.1:8080
  udp_send_interval: 10ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.SampleRate() != 48000 || cfg.Audio.FramesPerBuffer != 256 {
		t.Errorf("audio: got %d/%d", cfg.SampleRate(), cfg.Audio.FramesPerBuffer)
	}
	if cfg.NoiseMode() != noise.ModeBrownian || cfg.Noise.Seed != 42 {
		t.Errorf("noise: got %v seed %d", cfg.NoiseMode(), cfg.Noise.Seed)
	}
	if got := cfg.Scales().Scale(cfg.Noise.Multiplier); got != 16 {
		t.Errorf("scale: got %v, want 16", got)
	}
	if cfg.RecordingFormat() != wav.Float32 || !cfg.Recording.Stereo {
		t.Errorf("recording: got %v stereo=%v", cfg.RecordingFormat(), cfg.Recording.Stereo)
	}
	if cfg.Layout() != wav.LayoutCanonical {
		t.Errorf("layout: got %v, want canonical", cfg.Layout())
	}
	if cfg.MaxFrames() != 3*48000 {
		t.Errorf("MaxFrames: got %d, want %d", cfg.MaxFrames(), 3*48000)
	}
	if cfg.Transport.UDPSendInterval != 10*time.Millisecond {
		t.Errorf("udp_send_interval: got %v", cfg.Transport.UDPSendInterval)
	}
	// Unset fields keep their defaults.
	if cfg.Recording.QueueSize != Default().Recording.QueueSize {
		t.Errorf("queue_size: got %d, want default", cfg.Recording.QueueSize)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Sample Rate Low", func(c *Config) { c.Audio.SampleRate = 100 }, "audio.sample_rate"},
		{"Frames Not Pow2", func(c *Config) { c.Audio.FramesPerBuffer = 500 }, "frames_per_buffer"},
		{"Frames Too Large", func(c *Config) { c.Audio.FramesPerBuffer = 16384 }, "frames_per_buffer"},
		{"Bad Device", func(c *Config) { c.Audio.InputDevice = -2 }, "device"},
		{"Bad Mode", func(c *Config) { c.Noise.Mode = "pink" }, "noise.mode"},
		{"Bad Scale", func(c *Config) { c.Noise.MultiplierScales = []float64{1, 0} }, "multiplier_scales[1]"},
		{"Bad Format", func(c *Config) { c.Recording.Format = "mp3" }, "recording.format"},
		{"Empty Dir", func(c *Config) { c.Recording.OutputDir = "" }, "output_dir"},
		{"Queue Zero", func(c *Config) { c.Recording.QueueSize = 0 }, "queue_size"},
		{"Prealloc Negative", func(c *Config) { c.Recording.PreallocSeconds = -1 }, "prealloc_seconds"},
		{"Prealloc Too Long", func(c *Config) { c.Recording.PreallocSeconds = 3600 }, "prealloc_seconds"},
		{"UDP Bad Addr", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "udp_target_address"},
		{"UDP Zero Interval", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}, "udp_send_interval"},
		{"WS Bad Addr", func(c *Config) { c.Transport.WebSocketAddr = "8080" }, "websocket_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error: got %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Noise.Mode = "pink"
	cfg.Recording.Format = "mp3"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"noise.mode", "recording.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_NOISE_MODE", "trigger")
	t.Setenv("ENV_NOISE_SEED", "7")
	t.Setenv("ENV_RECORDING_FORMAT", "pcm8")
	t.Setenv("ENV_RECORDING_STEREO", "not-a-bool")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "5ms")
	t.Setenv("ENV_AUDIO_SAMPLE_RATE", "22050")

	path := writeTempConfig(t, "noise:\n  mode: brownian\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if !cfg.Debug {
		t.Error("ENV_DEBUG not applied")
	}
	if cfg.NoiseMode() != noise.ModeTrigger {
		t.Errorf("env must override the file: got %v", cfg.NoiseMode())
	}
	if cfg.Noise.Seed != 7 {
		t.Errorf("seed: got %d, want 7", cfg.Noise.Seed)
	}
	if cfg.RecordingFormat() != wav.PCM8 {
		t.Errorf("format: got %v", cfg.RecordingFormat())
	}
	if cfg.Recording.Stereo {
		t.Error("unparseable bool must be ignored")
	}
	if cfg.Transport.UDPSendInterval != 5*time.Millisecond {
		t.Errorf("interval: got %v", cfg.Transport.UDPSendInterval)
	}
	if cfg.SampleRate() != 22050 {
		t.Errorf("sample rate: got %d", cfg.SampleRate())
	}
}
