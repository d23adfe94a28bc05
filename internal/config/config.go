// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	applog "microtools/internal/log"
	"microtools/internal/noise"
	"microtools/internal/wav"
	"microtools/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Hardware and processing limits.
const (
	MinDeviceID     = -1     // -1 represents the system default device
	MinSampleRate   = 8000   // Hz
	MaxSampleRate   = 192000 // Hz
	MaxBufferFrames = 8192   // power of 2
	MaxQueueSize    = 64
	MaxPrealloc     = 30 // seconds
)

// Config is the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
	Audio     AudioConfig     `yaml:"audio"`
	Noise     NoiseConfig     `yaml:"noise"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds the PortAudio stream settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`  // -1 for default
	OutputDevice    int     `yaml:"output_device"` // -1 for default
	SampleRate      float64 `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	LowLatency      bool    `yaml:"low_latency"`
}

// NoiseConfig holds the initial generator controls.
type NoiseConfig struct {
	Mode             string    `yaml:"mode"` // white, brownian, trigger
	Seed             uint64    `yaml:"seed"` // 0 picks a seed from the clock
	MultiplierScales []float64 `yaml:"multiplier_scales"`
	Multiplier       int       `yaml:"multiplier"`
	PeriodKnob       float32   `yaml:"period_knob"` // volts, 0..10
	VolumeKnob       float32   `yaml:"volume_knob"` // volts, 0..10
}

// RecordingConfig holds the recorder settings.
type RecordingConfig struct {
	OutputDir       string  `yaml:"output_dir"`
	BaseName        string  `yaml:"base_name"`
	Format          string  `yaml:"format"` // pcm8, pcm16, float32
	Stereo          bool    `yaml:"stereo"`
	CanonicalHeader bool    `yaml:"canonical_header"` // write the data chunk size field
	PreallocSeconds float64 `yaml:"prealloc_seconds"`
	MaxDuration     int     `yaml:"max_duration_seconds"` // 0 for unlimited
	QueueSize       int     `yaml:"queue_size"`
}

// TransportConfig holds the network surfaces.
type TransportConfig struct {
	WebSocketAddr    string        `yaml:"websocket_addr"` // empty disables the control surface
	MetricsEnabled   bool          `yaml:"metrics_enabled"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			OutputDevice:    MinDeviceID,
			SampleRate:      44100,
			FramesPerBuffer: 512,
		},
		Noise: NoiseConfig{
			Mode:             noise.ModeWhite.String(),
			MultiplierScales: append([]float64(nil), noise.DefaultScales...),
			PeriodKnob:       0,
			VolumeKnob:       5,
		},
		Recording: RecordingConfig{
			OutputDir:       "./recordings",
			BaseName:        wav.DefaultBaseName,
			Format:          "pcm16",
			PreallocSeconds: 10,
			QueueSize:       4,
		},
		Transport: TransportConfig{
			WebSocketAddr:    "",
			MetricsEnabled:   true,
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz
		},
	}
}

// LoadConfig loads configuration from the YAML file at path. An empty path
// looks for config.yaml in the working directory and falls back to the
// defaults if there is none. Environment overrides are applied after the
// file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration. Every problem is reported, not just
// the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %v outside [%d, %d]",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if n := c.Audio.FramesPerBuffer; n <= 0 || n > MaxBufferFrames || !bitint.IsPowerOfTwo(n) {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d must be a power of 2 up to %d", n, MaxBufferFrames))
	}
	if c.Audio.InputDevice < MinDeviceID || c.Audio.OutputDevice < MinDeviceID {
		errs = append(errs, errors.New("audio device ids must be -1 (default) or a device index"))
	}

	if _, err := noise.ParseMode(c.Noise.Mode); err != nil {
		errs = append(errs, fmt.Errorf("noise.mode: %w", err))
	}
	for i, s := range c.Noise.MultiplierScales {
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			errs = append(errs, fmt.Errorf("noise.multiplier_scales[%d] = %v must be positive", i, s))
		}
	}
	if c.Noise.Multiplier < 0 {
		errs = append(errs, fmt.Errorf("noise.multiplier %d must not be negative", c.Noise.Multiplier))
	}

	if _, err := wav.ParseFormat(c.Recording.Format); err != nil {
		errs = append(errs, fmt.Errorf("recording.format: %w", err))
	}
	if c.Recording.OutputDir == "" {
		errs = append(errs, errors.New("recording.output_dir must be set"))
	}
	if p := c.Recording.PreallocSeconds; p < 0 || p > MaxPrealloc || math.IsNaN(p) {
		errs = append(errs, fmt.Errorf("recording.prealloc_seconds %v outside [0, %d]", p, MaxPrealloc))
	}
	if c.Recording.MaxDuration < 0 {
		errs = append(errs, errors.New("recording.max_duration_seconds must not be negative"))
	}
	if c.Recording.QueueSize < 1 || c.Recording.QueueSize > MaxQueueSize {
		errs = append(errs, fmt.Errorf("recording.queue_size %d outside [1, %d]", c.Recording.QueueSize, MaxQueueSize))
	}

	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q: %w", c.Transport.UDPTargetAddress, err))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.WebSocketAddr != "" {
		if _, _, err := net.SplitHostPort(c.Transport.WebSocketAddr); err != nil {
			errs = append(errs, fmt.Errorf("transport.websocket_addr %q: %w", c.Transport.WebSocketAddr, err))
		}
	}

	return errors.Join(errs...)
}

// RecordingFormat returns the parsed recording format. Only meaningful on
// a validated config.
func (c *Config) RecordingFormat() wav.Format {
	f, _ := wav.ParseFormat(c.Recording.Format)
	return f
}

func (c *Config) NoiseMode() noise.Mode {
	m, _ := noise.ParseMode(c.Noise.Mode)
	return m
}

func (c *Config) Layout() wav.Layout {
	if c.Recording.CanonicalHeader {
		return wav.LayoutCanonical
	}
	return wav.LayoutLegacy
}

func (c *Config) Scales() noise.ScaleTable {
	if len(c.Noise.MultiplierScales) == 0 {
		return noise.DefaultScales
	}
	return noise.ScaleTable(c.Noise.MultiplierScales)
}

// SampleRate returns the configured rate as whole frames per second.
func (c *Config) SampleRate() int { return int(math.Round(c.Audio.SampleRate)) }

// MaxFrames converts the maximum recording duration to frames.
func (c *Config) MaxFrames() int { return c.Recording.MaxDuration * c.SampleRate() }

// PreallocFrames converts the preallocation window to frames.
func (c *Config) PreallocFrames() int {
	return int(c.Recording.PreallocSeconds * float64(c.SampleRate()))
}

// applyEnvOverrides reads ENV_* variables. Unparseable values are ignored
// with a warning.
func (c *Config) applyEnvOverrides() {
	envBool("ENV_DEBUG", &c.Debug)
	envString("ENV_LOG_LEVEL", &c.LogLevel)

	// ENV_AUDIO_{...}
	if val, ok := os.LookupEnv("ENV_AUDIO_SAMPLE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = f
			applog.Debugf("configuration: overriding audio.sample_rate from env: %v", f)
		} else {
			applog.Warnf("configuration: ignoring ENV_AUDIO_SAMPLE_RATE=%q: %v", val, err)
		}
	}

	// ENV_NOISE_{...}
	envString("ENV_NOISE_MODE", &c.Noise.Mode)
	if val, ok := os.LookupEnv("ENV_NOISE_SEED"); ok {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			c.Noise.Seed = n
			applog.Debugf("configuration: overriding noise.seed from env: %d", n)
		} else {
			applog.Warnf("configuration: ignoring ENV_NOISE_SEED=%q: %v", val, err)
		}
	}

	// ENV_RECORDING_{...}
	envString("ENV_RECORDING_OUTPUT_DIR", &c.Recording.OutputDir)
	envString("ENV_RECORDING_FORMAT", &c.Recording.Format)
	envBool("ENV_RECORDING_STEREO", &c.Recording.Stereo)

	// ENV_WS_{...}, ENV_METRICS_{...} and ENV_UDP_{...}
	// are specific to the transport layer.
	envString("ENV_WS_ADDR", &c.Transport.WebSocketAddr)
	envBool("ENV_METRICS_ENABLED", &c.Transport.MetricsEnabled)
	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Debugf("configuration: overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("configuration: ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
}

func envString(name string, dst *string) {
	if val, ok := os.LookupEnv(name); ok {
		*dst = val
		applog.Debugf("configuration: overriding from env %s=%s", name, val)
	}
}

func envBool(name string, dst *bool) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		applog.Warnf("configuration: ignoring %s=%q: %v", name, val, err)
		return
	}
	*dst = b
	applog.Debugf("configuration: overriding from env %s=%v", name, b)
}
