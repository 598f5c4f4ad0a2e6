package tickfsm

// Target supplies the state a transition leads to. It is called only when the
// transition fires, so it may refer to states declared later.
type Target func() *State

// transition is a (condition, target) rule evaluated in insertion order
type transition struct {
	cond    Condition
	to      Target
	trigger bool // cond reads an edge detector sampled by the machine
}

// Ref returns a Target for an already declared state
func Ref(s *State) Target {
	return func() *State {
		return s
	}
}

// Lookup returns a Target that resolves id in this machine's registry at fire
// time. An id that was never declared resolves to nil.
func (m *Machine) Lookup(id StateID) Target {
	return func() *State {
		return m.byID[id]
	}
}
