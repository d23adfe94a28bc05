// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"math"

	"microtools/internal/rack"
	"microtools/internal/metrics"
	"microtools/internal/recorder"

	"github.com/spf13/cobra"
)

// defaultRenderSeed keeps renders reproducible when no seed is configured.
const defaultRenderSeed = 1

func newRenderCommand(opts *globalOptions) *cobra.Command {
	fv := &flagValues{}
	var seconds float64

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Record the noise generator to a file without audio hardware",
		Long: `Runs the generator into the recorder for the given duration and writes the
result to the output directory. The same seed and settings always produce
the same file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			if seconds <= 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
				return fmt.Errorf("--seconds must be positive, got %v", seconds)
			}
			if cfg.Noise.Seed == 0 {
				cfg.Noise.Seed = defaultRenderSeed
			}

			var outcomes []recorder.Outcome
			h, err := newHost(cfg, metrics.New(), func(o recorder.Outcome) {
				outcomes = append(outcomes, o)
			})
			if err != nil {
				return err
			}

			frames := int(math.Round(seconds * float64(cfg.SampleRate())))
			renderErr := rack.Render(h.rack, max(frames, 1))
			// Close waits for the writer goroutine, so outcomes is complete.
			closeErr := h.close()

			w := stdout(cmd)
			for _, o := range outcomes {
				if o.Err != nil {
					continue
				}
				fmt.Fprintf(w, "%s\t%d frames\t%d ch\t%s\tpeak %.3f\n",
					o.Path, o.Header.Frames, o.Header.Channels, o.Header.Format, o.Summary.Peak())
			}
			if st := h.rack.Status().Recorder; st.Dropped > 0 {
				closeErr = errors.Join(closeErr, fmt.Errorf("%d recordings dropped, increase recording.queue_size", st.Dropped))
			}
			return errors.Join(renderErr, closeErr)
		},
	}

	bindNoiseFlags(renderCmd, fv)
	bindRecordingFlags(renderCmd, fv)
	renderCmd.Flags().Float64VarP(&fv.sampleRate, "sample-rate", "s", 44100, "Sample rate, measured in Hertz (Hz)")
	renderCmd.Flags().Float64Var(&seconds, "seconds", 5, "Length of the rendered recording")

	return renderCmd
}
