// SPDX-License-Identifier: MIT
package noise

import "math/rand/v2"

// Source supplies uniform draws in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded PCG generator. Engines each own one so runs
// with the same seed are reproducible.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Engine produces one sample per frame, drawing a new value only at update
// instants and holding it in between.
type Engine struct {
	state State
	last  float32
	rng   Source
}

func NewEngine(mode Mode, rng Source) *Engine {
	if rng == nil {
		rng = NewSource(rand.Uint64())
	}
	return &Engine{state: NewState(mode), rng: rng}
}

// SetMode swaps the algorithm. Re-selecting the current mode keeps its state.
func (e *Engine) SetMode(m Mode) {
	if e.state.Mode() != m {
		e.state = NewState(m)
	}
}

func (e *Engine) State() State { return e.state }

// Last returns the held output.
func (e *Engine) Last() float32 { return e.last }

// Process returns this frame's output. Volume is used as given.
func (e *Engine) Process(update bool, volume float32) float32 {
	if !update {
		return e.last
	}

	r := e.rng.Float64()
	v := float64(volume)

	switch s := e.state.(type) {
	case White:
		e.last = float32(r * v)
	case *Brownian:
		step := 2 * (r - 0.5) * v / 10
		s.Level = float32(max(0, min(float64(s.Level)+step, v)))
		e.last = s.Level
	case Trigger:
		if r > v/10 {
			e.last = 1
		} else {
			e.last = 0
		}
	}
	return e.last
}
