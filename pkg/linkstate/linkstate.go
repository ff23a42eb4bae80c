// Package linkstate implements the trivial Link-State sub-state-machine:
// carrier Up/Down, derived directly from netlink/driver notifications
// (spec.md §4.4).
package linkstate

type Label int

const (
	Down Label = iota
	Up
)

func (l Label) String() string {
	if l == Up {
		return "Up"
	}
	return "Down"
}

type StateMachine struct {
	label Label
}

func New() *StateMachine {
	return &StateMachine{label: Down}
}

func (sm *StateMachine) Label() Label { return sm.label }

// Notify applies a carrier-state change, returning whether it actually
// changed (repeated notifications of the same state are a no-op).
func (sm *StateMachine) Notify(up bool) (changed bool) {
	next := Down
	if up {
		next = Up
	}
	if next == sm.label {
		return false
	}
	sm.label = next
	return true
}
