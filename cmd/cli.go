// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"

	"microtools/internal/config"
	applog "microtools/internal/log"
	"microtools/pkg/build"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	verbose    bool
}

// flagValues hold the config overrides accepted on the command line. Only
// flags the user actually set are applied.
type flagValues struct {
	inputDevice     int
	outputDevice    int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool

	mode       string
	seed       uint64
	multiplier int
	periodKnob float32
	volumeKnob float32

	outputDir   string
	baseName    string
	format      string
	stereo      bool
	canonical   bool
	maxDuration int

	wsAddr    string
	udp       bool
	udpTarget string
	metrics   bool
}

// Execute builds the command tree and runs it with args.
func Execute(args []string, out io.Writer) error {
	root := NewRootCommand(out)
	root.SetArgs(args)
	return root.Execute()
}

// NewRootCommand returns the root command. Running it without a
// subcommand is the same as "run".
func NewRootCommand(out io.Writer) *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to a YAML config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides the config file)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false,
		"Shorthand for --log-level debug")

	runCmd := newRunCommand(opts)
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())

	rootCmd.AddCommand(
		runCmd,
		newRenderCommand(opts),
		newDevicesCommand(),
		newInspectCommand(),
	)
	return rootCmd
}

func (o *globalOptions) setupLogging() error {
	level := o.logLevel
	if o.verbose {
		level = "debug"
	}
	if level == "" {
		return nil
	}
	l, ok := applog.ParseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	applog.SetLevel(l)
	return nil
}

// loadConfig reads the config file, applies changed flags and validates
// the result.
func (o *globalOptions) loadConfig(cmd *cobra.Command, fv *flagValues) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel == "" && !o.verbose {
		if l, ok := applog.ParseLevel(cfg.LogLevel); ok {
			applog.SetLevel(l)
		}
		if cfg.Debug {
			applog.SetLevel(applog.LevelDebug)
		}
	}

	if fv != nil {
		fv.apply(cmd, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func bindAudioFlags(cmd *cobra.Command, fv *flagValues) {
	f := cmd.Flags()
	f.IntVarP(&fv.inputDevice, "input-device", "i", config.MinDeviceID,
		"Input device ID, -1 for the system default. See the 'devices' command.")
	f.IntVarP(&fv.outputDevice, "output-device", "d", config.MinDeviceID,
		"Output device ID, -1 for the system default")
	f.Float64VarP(&fv.sampleRate, "sample-rate", "s", 44100,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", 512,
		"The number of frames per buffer (affects latency)")
	f.BoolVarP(&fv.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
}

func bindNoiseFlags(cmd *cobra.Command, fv *flagValues) {
	f := cmd.Flags()
	f.StringVarP(&fv.mode, "mode", "m", "white", "Noise mode: white, brownian, trigger")
	f.Uint64Var(&fv.seed, "seed", 0, "Random seed, 0 for a time based seed")
	f.IntVar(&fv.multiplier, "multiplier", 0, "Period multiplier selector (index into the scale table)")
	f.Float32Var(&fv.periodKnob, "period", 0, "Period knob in volts, 0..10")
	f.Float32Var(&fv.volumeKnob, "volume", 5, "Volume knob in volts, 0..10")
}

func bindRecordingFlags(cmd *cobra.Command, fv *flagValues) {
	f := cmd.Flags()
	f.StringVarP(&fv.outputDir, "output-dir", "o", "./recordings", "Directory recordings are written to")
	f.StringVar(&fv.baseName, "base-name", "recording", "File name prefix, files are <base><n>.wav")
	f.StringVarP(&fv.format, "format", "f", "pcm16", "Sample format: pcm8, pcm16, float32")
	f.BoolVar(&fv.stereo, "stereo", false, "Record two channels")
	f.BoolVar(&fv.canonical, "canonical", false, "Write the data chunk size field (44 byte header)")
	f.IntVar(&fv.maxDuration, "max-duration", 0, "Split recordings after this many seconds, 0 for no limit")
}

func bindTransportFlags(cmd *cobra.Command, fv *flagValues) {
	f := cmd.Flags()
	f.StringVar(&fv.wsAddr, "ws-addr", "", "Serve the websocket control surface and /metrics on this address")
	f.BoolVar(&fv.udp, "udp", false, "Send binary status packets over UDP")
	f.StringVar(&fv.udpTarget, "udp-target", "127.0.0.1:9090", "UDP status target address")
	f.BoolVar(&fv.metrics, "metrics", true, "Expose Prometheus metrics on the websocket server")
}

func (fv *flagValues) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("input-device") {
		cfg.Audio.InputDevice = fv.inputDevice
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = fv.outputDevice
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}

	if changed("mode") {
		cfg.Noise.Mode = fv.mode
	}
	if changed("seed") {
		cfg.Noise.Seed = fv.seed
	}
	if changed("multiplier") {
		cfg.Noise.Multiplier = fv.multiplier
	}
	if changed("period") {
		cfg.Noise.PeriodKnob = fv.periodKnob
	}
	if changed("volume") {
		cfg.Noise.VolumeKnob = fv.volumeKnob
	}

	if changed("output-dir") {
		cfg.Recording.OutputDir = fv.outputDir
	}
	if changed("base-name") {
		cfg.Recording.BaseName = fv.baseName
	}
	if changed("format") {
		cfg.Recording.Format = fv.format
	}
	if changed("stereo") {
		cfg.Recording.Stereo = fv.stereo
	}
	if changed("canonical") {
		cfg.Recording.CanonicalHeader = fv.canonical
	}
	if changed("max-duration") {
		cfg.Recording.MaxDuration = fv.maxDuration
	}

	if changed("ws-addr") {
		cfg.Transport.WebSocketAddr = fv.wsAddr
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = fv.udp
	}
	if changed("udp-target") {
		cfg.Transport.UDPTargetAddress = fv.udpTarget
	}
	if changed("metrics") {
		cfg.Transport.MetricsEnabled = fv.metrics
	}
}

// stdout is where subcommands print results.
func stdout(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
