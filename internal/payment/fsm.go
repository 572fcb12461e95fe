package payment

import "fmt"

var transitions = map[State][]State{
	StateInitiated: {StateConfirmed, StateFailed, StateTimeout},
}

// CanTransition reports whether a pending payment may move from one state to
// the other. Terminal states have no outgoing edges.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition is CanTransition as an error for store implementations.
func CheckTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Terminal reports whether no further transition is possible. CONFIRMED is
// terminal too; it only waits for its ledger row.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}
