// SPDX-License-Identifier: MIT
package noise

import (
	"fmt"
	"strings"
)

// Mode selects the noise algorithm.
type Mode int

const (
	ModeWhite Mode = iota
	ModeBrownian
	ModeTrigger
)

var modeNames = [...]string{"white", "brownian", "trigger"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode accepts the names produced by String.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown noise mode %q", s)
}

// State is the per-algorithm state. It is a closed set: White, *Brownian
// and Trigger are the only implementations.
type State interface {
	Mode() Mode
	state()
}

// White draws r * volume.
type White struct{}

// Brownian integrates steps of +-volume/10 into Level, which stays within
// [0, volume].
type Brownian struct {
	Level float32
}

// Trigger emits 1 when r > volume/10 and 0 otherwise.
type Trigger struct{}

func (White) Mode() Mode     { return ModeWhite }
func (*Brownian) Mode() Mode { return ModeBrownian }
func (Trigger) Mode() Mode   { return ModeTrigger }

func (White) state()     {}
func (*Brownian) state() {}
func (Trigger) state()   {}

// NewState returns a fresh state for m. Unknown modes fall back to White.
func NewState(m Mode) State {
	switch m {
	case ModeBrownian:
		return &Brownian{}
	case ModeTrigger:
		return Trigger{}
	default:
		return White{}
	}
}
