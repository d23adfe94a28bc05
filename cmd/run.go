// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"microtools/internal/audio"
	"microtools/internal/config"
	applog "microtools/internal/log"
	"microtools/internal/metrics"
	"microtools/internal/transport"
	"microtools/internal/transport/udp"
	"microtools/internal/tui"

	"github.com/spf13/cobra"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	fv := &flagValues{}
	var headless bool
	var logFile string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the noise generator and recorder on the audio device",
		Long: `Opens a duplex stream on the selected devices. The noise signal is sent to
every output channel. Input channels 1 and 2 are recorded, channels 3 and 4
(if present) are the period and volume CVs.

By default a terminal control panel is shown. With --headless the program
runs until interrupted and is controlled over the websocket surface.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, headless, logFile)
		},
	}

	bindAudioFlags(runCmd, fv)
	bindNoiseFlags(runCmd, fv)
	bindRecordingFlags(runCmd, fv)
	bindTransportFlags(runCmd, fv)
	runCmd.Flags().BoolVar(&headless, "headless", false, "Run without the terminal panel until interrupted")
	runCmd.Flags().StringVar(&logFile, "log-file", "microtools.log", "Log destination while the panel owns the terminal")

	return runCmd
}

// run is the long-lived mode. Startup and shutdown are cold paths; only
// the PortAudio callback runs on the hot path.
func run(ctx context.Context, cfg *config.Config, headless bool, logFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// The panel owns the terminal, so logs go to a file.
	if !headless {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		applog.SetOutput(f)
		defer applog.SetOutput(os.Stderr)
	}

	m := metrics.New()
	h, err := newHost(cfg, m, nil)
	if err != nil {
		return err
	}

	if err := audio.Initialize(); err != nil {
		h.close()
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(cfg.Audio, h.rack)
	if err != nil {
		h.close()
		return err
	}

	broadcasters, err := startTransports(cfg, h)
	if err != nil {
		h.close()
		return err
	}

	if err := engine.Start(); err != nil {
		stopTransports(broadcasters)
		h.close()
		return err
	}
	if lat, err := engine.Latency(); err == nil {
		applog.Infof("Engine: output latency %v", lat)
	}

	if headless {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		<-ctx.Done()
		stop()
		applog.Infof("Shutting down")
	} else if err = tui.RunPanel(h, cfg.Scales()); err != nil {
		err = fmt.Errorf("control panel: %w", err)
	}

	// Stop the callback before touching the rack from this goroutine.
	if stopErr := engine.Stop(); stopErr != nil && !errors.Is(stopErr, audio.ErrNotRunning) {
		applog.Errorf("Error stopping audio engine: %v", stopErr)
	}
	closeErr := h.close()
	stopTransports(broadcasters)

	return errors.Join(err, closeErr)
}

// startTransports wires the status sinks: the log, the websocket surface
// (with /metrics beside it) and UDP packets.
func startTransports(cfg *config.Config, h *host) ([]*transport.Broadcaster, error) {
	var broadcasters []*transport.Broadcaster
	fail := func(err error) ([]*transport.Broadcaster, error) {
		stopTransports(broadcasters)
		return nil, err
	}

	logSink, err := transport.NewBroadcaster(transport.DefaultInterval, h.Status, transport.NewLoggingTransport())
	if err != nil {
		return fail(err)
	}
	broadcasters = append(broadcasters, logSink)

	if addr := cfg.Transport.WebSocketAddr; addr != "" {
		ws := transport.NewWebSocketTransport(addr, h.Apply)
		if cfg.Transport.MetricsEnabled {
			ws.Handle("/metrics", h.metrics.Handler())
		}
		if err := ws.Start(); err != nil {
			ws.Close()
			return fail(fmt.Errorf("websocket: %w", err))
		}
		b, err := transport.NewBroadcaster(transport.DefaultInterval, h.Status, ws)
		if err != nil {
			ws.Close()
			return fail(err)
		}
		broadcasters = append(broadcasters, b)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return fail(fmt.Errorf("udp: %w", err))
		}
		pub, err := udp.NewStatusPublisher(sender)
		if err != nil {
			sender.Close()
			return fail(err)
		}
		b, err := transport.NewBroadcaster(cfg.Transport.UDPSendInterval, h.Status, pub)
		if err != nil {
			pub.Close()
			return fail(err)
		}
		broadcasters = append(broadcasters, b)
		applog.Infof("Sending status packets to %s", sender.Target())
	}

	for _, b := range broadcasters {
		b.Start()
	}
	return broadcasters, nil
}

// stopTransports publishes a final snapshot, so sinks see the last write,
// then closes every broadcaster and its sinks.
func stopTransports(broadcasters []*transport.Broadcaster) {
	for _, b := range broadcasters {
		b.Stop()
		b.Publish()
		if err := b.Close(); err != nil {
			applog.Warnf("Error closing transport: %v", err)
		}
	}
}
