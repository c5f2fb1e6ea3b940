package condition

import (
	"math"

	"github.com/Alia5/dofstream/sample"
)

// DefaultSleepAfter is the number of consecutive zero states after which the
// Machine stops streaming.
const DefaultSleepAfter = 10

// Mode is the transmission mode of a session.
type Mode int

const (
	// ModeStreaming transmits every conditioned state.
	ModeStreaming Mode = iota
	// ModeSleeping transmits nothing until a wake condition is seen.
	ModeSleeping
)

func (m Mode) String() string {
	switch m {
	case ModeStreaming:
		return "streaming"
	case ModeSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// Transition describes a mode change caused by one observed state.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionSleep
	TransitionWake
)

// Decision is the outcome of observing one state.
type Decision struct {
	Transmit   bool
	Transition Transition
}

// IsZero reports whether every axis is within Epsilon of zero and no button
// is pressed.
func IsZero(s sample.State) bool {
	for _, v := range s.Array() {
		if math.Abs(v) > Epsilon {
			return false
		}
	}
	return !s.Buttons.Any()
}

// Machine toggles between streaming and sleeping based on a run of
// consecutive zero states. States must be observed in production order.
// A Machine is not safe for concurrent use.
type Machine struct {
	sleepAfter int
	mode       Mode
	zeroRun    int

	// buttons of the last non-zero (or waking) state, for edge detection
	refButtons sample.Buttons
	hasRef     bool
}

// NewMachine returns a Machine in streaming mode. sleepAfter <= 0 selects
// DefaultSleepAfter.
func NewMachine(sleepAfter int) *Machine {
	if sleepAfter <= 0 {
		sleepAfter = DefaultSleepAfter
	}
	return &Machine{sleepAfter: sleepAfter, mode: ModeStreaming}
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode { return m.mode }

// ZeroRun returns the number of consecutive zero states seen while streaming.
func (m *Machine) ZeroRun() int { return m.zeroRun }

// Observe classifies s, updates the mode and reports whether s must be sent.
func (m *Machine) Observe(s sample.State) Decision {
	zero := IsZero(s)

	if m.mode == ModeSleeping {
		if !zero || (m.hasRef && !s.Buttons.Equal(m.refButtons)) {
			m.mode = ModeStreaming
			m.zeroRun = 0
			m.remember(s)
			return Decision{Transmit: true, Transition: TransitionWake}
		}
		return Decision{}
	}

	if !zero {
		m.zeroRun = 0
		m.remember(s)
		return Decision{Transmit: true}
	}

	m.zeroRun++
	if m.zeroRun >= m.sleepAfter {
		m.mode = ModeSleeping
		return Decision{Transition: TransitionSleep}
	}
	return Decision{Transmit: true}
}

func (m *Machine) remember(s sample.State) {
	m.refButtons = s.Buttons.Clone()
	m.hasRef = true
}
