package workflows

import (
	"fmt"
	"sort"
)

// Transition describes one named operation: the statuses it may start from
// and the status it produces.
type Transition struct {
	Operation string
	From      []string
	To        string
}

// StateMachine enforces status transitions for a single aggregate type.
type StateMachine struct {
	initial     string
	terminal    map[string]bool
	transitions map[string]Transition
}

// NewStateMachine builds a state machine from its initial status, terminal
// statuses and operation table. Duplicate operation names panic.
func NewStateMachine(initial string, terminal []string, transitions ...Transition) *StateMachine {
	sm := &StateMachine{
		initial:     initial,
		terminal:    make(map[string]bool, len(terminal)),
		transitions: make(map[string]Transition, len(transitions)),
	}
	for _, t := range terminal {
		sm.terminal[t] = true
	}
	for _, t := range transitions {
		if _, exists := sm.transitions[t.Operation]; exists {
			panic(fmt.Sprintf("workflows: duplicate operation %q", t.Operation))
		}
		sm.transitions[t.Operation] = t
	}
	return sm
}

// Initial returns the status new records are created in.
func (sm *StateMachine) Initial() string {
	return sm.initial
}

// IsTerminal reports whether no operation may leave the status.
func (sm *StateMachine) IsTerminal(status string) bool {
	return sm.terminal[status]
}

// Target returns the status produced by operation when applied to from.
// ok is false when the operation is unknown or from is not a valid source.
func (sm *StateMachine) Target(operation, from string) (string, bool) {
	t, exists := sm.transitions[operation]
	if !exists || sm.terminal[from] {
		return "", false
	}
	for _, allowed := range t.From {
		if allowed == from {
			return t.To, true
		}
	}
	return "", false
}

// CanTransition checks if any operation moves from one status to another
func (sm *StateMachine) CanTransition(from, to string) bool {
	for _, t := range sm.transitions {
		if t.To != to {
			continue
		}
		if _, ok := sm.Target(t.Operation, from); ok {
			return true
		}
	}
	return false
}

// GetAllowedOperations returns the operations that may be applied to a
// status, sorted by name.
func (sm *StateMachine) GetAllowedOperations(from string) []string {
	var ops []string
	for name := range sm.transitions {
		if _, ok := sm.Target(name, from); ok {
			ops = append(ops, name)
		}
	}
	sort.Strings(ops)
	return ops
}

// Sources returns the statuses an operation may start from.
func (sm *StateMachine) Sources(operation string) []string {
	t, exists := sm.transitions[operation]
	if !exists {
		return nil
	}
	out := make([]string, len(t.From))
	copy(out, t.From)
	return out
}
