// SPDX-License-Identifier: MIT
package noise

import "math"

// MaxPeriod caps the clock division so huge control voltages cannot
// overflow the counter.
const MaxPeriod = math.MaxInt32

// ScaleTable maps the multiplier selector to a period scale factor.
type ScaleTable []float64

// DefaultScales is off, x10, x100 and x1000.
var DefaultScales = ScaleTable{1, 10, 100, 1000}

// Scale returns the factor for selector i, clamped to the table bounds.
// An empty table scales by 1.
func (s ScaleTable) Scale(i int) float64 {
	if len(s) == 0 {
		return 1
	}
	if i < 0 {
		i = 0
	}
	if i >= len(s) {
		i = len(s) - 1
	}
	return s[i]
}

// PeriodCounter derives a clock-division period from control voltages and
// tracks a frame counter that wraps at that period.
type PeriodCounter struct {
	scales  ScaleTable
	period  int
	counter int
}

func NewPeriodCounter(scales ScaleTable) *PeriodCounter {
	if len(scales) == 0 {
		scales = DefaultScales
	}
	return &PeriodCounter{scales: scales, period: 1}
}

// Period computes max(1, floor((knob + cv) * 10 * scale)). NaN and
// non-positive results become 1.
func Period(knobVolts, cvVolts float32, scale float64) int {
	p := math.Floor((float64(knobVolts) + float64(cvVolts)) * 10 * scale)
	switch {
	case !(p >= 1):
		return 1
	case p > MaxPeriod:
		return MaxPeriod
	}
	return int(p)
}

// Set updates the period from this frame's controls. The counter is not
// resynchronised; the next Tick re-wraps it against the new period.
func (c *PeriodCounter) Set(knobVolts, cvVolts float32, multiplier int) {
	c.period = Period(knobVolts, cvVolts, c.scales.Scale(multiplier))
}

func (c *PeriodCounter) Period() int { return c.period }

func (c *PeriodCounter) Counter() int { return c.counter }

// Tick advances the counter by one frame and reports whether it landed on
// zero, which is an update instant.
func (c *PeriodCounter) Tick() bool {
	c.counter = (c.counter + 1) % c.period
	return c.counter == 0
}

func (c *PeriodCounter) Reset() { c.counter = 0 }
