// SPDX-License-Identifier: MIT
package rack

import (
	"errors"
)

// Render drives the rack offline: it holds the record control for frames
// frames with the generator routed to the recorder, then releases it so
// the session is handed to its sink. Input CVs are zero.
//
// The rack's other controls are kept. Render must not run while an
// Engine is driving the same rack.
func Render(r *Rack, frames int) error {
	if frames <= 0 {
		return errors.New("rack: render needs at least one frame")
	}
	if r.Status().Recorder.Recording() {
		return errors.New("rack: rack is already recording")
	}

	// One idle frame first so a held record control still produces an edge.
	r.UpdateControls(func(c *Controls) {
		c.Record = false
		c.RecordNoise = true
	})
	r.ProcessFrame(Frame{})

	r.UpdateControls(func(c *Controls) { c.Record = true })
	for range frames {
		r.ProcessFrame(Frame{})
	}

	r.UpdateControls(func(c *Controls) { c.Record = false })
	r.ProcessFrame(Frame{})
	return nil
}
