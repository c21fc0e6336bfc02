package protocol

import "github.com/chorus-fhe/ppcnn/ppcnnerr"

// State is a connection's position in the per-connection state machine
// (spec §4.10), mirroring the original's StateId_t.
type State int32

const (
	StateReady State = iota
	StateExit
)

func (s State) String() string {
	if s == StateExit {
		return "Exit"
	}
	return "Ready"
}

// Event is a transition trigger, mirroring the original's Event_t. Only
// Query and ResultRequest are accepted while Ready; both are no-ops with
// respect to the state itself (the original's StateReady::set is a no-op
// switch over these events) — what they gate is whether the connection's
// handler is allowed to process the frame at all.
type Event int

const (
	EventQuery Event = iota
	EventResultRequest
)

// Machine is one connection's state machine instance (spec's
// SUPPLEMENTED FEATURES: per-connection rather than per-process, since the
// Go server is single-process/multi-connection).
type Machine struct {
	state State
}

// NewMachine returns a Machine starting in StateReady.
func NewMachine() *Machine { return &Machine{state: StateReady} }

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// Allow reports whether event may be processed in the machine's current
// state, returning ppcnnerr.ErrProtocol if not.
func (m *Machine) Allow(event Event) error {
	if m.state != StateReady {
		return ppcnnerr.ErrProtocol
	}
	switch event {
	case EventQuery, EventResultRequest:
		return nil
	default:
		return ppcnnerr.ErrProtocol
	}
}

// Exit transitions the machine to StateExit; every subsequent Allow call
// fails. Called when the connection is closing.
func (m *Machine) Exit() { m.state = StateExit }
