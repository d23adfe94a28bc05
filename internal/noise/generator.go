// SPDX-License-Identifier: MIT
package noise

// Inputs are the generator controls sampled every frame.
type Inputs struct {
	Mode       Mode
	PeriodKnob float32 // volts, 0..10
	PeriodCV   float32 // volts, nominally -10..10
	Multiplier int     // index into the scale table
	VolumeKnob float32
	VolumeCV   float32
}

// Generator is the clock-divided noise source: a PeriodCounter deciding
// update instants and an Engine producing the held sample.
type Generator struct {
	counter *PeriodCounter
	engine  *Engine
}

func NewGenerator(scales ScaleTable, mode Mode, rng Source) *Generator {
	return &Generator{
		counter: NewPeriodCounter(scales),
		engine:  NewEngine(mode, rng),
	}
}

// Volume sums knob and CV. Negative and NaN sums are treated as silence.
func Volume(knob, cv float32) float32 {
	v := knob + cv
	if !(v > 0) {
		return 0
	}
	return v
}

// Process runs one frame and returns the output sample in volts.
func (g *Generator) Process(in Inputs) float32 {
	g.counter.Set(in.PeriodKnob, in.PeriodCV, in.Multiplier)
	g.engine.SetMode(in.Mode)
	return g.engine.Process(g.counter.Tick(), Volume(in.VolumeKnob, in.VolumeCV))
}

func (g *Generator) Counter() *PeriodCounter { return g.counter }

func (g *Generator) Engine() *Engine { return g.engine }
