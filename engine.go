package tickfsm

// Action is an opaque handle to a schedulable unit of work. Handles must be
// comparable; pointer types are the usual choice.
type Action interface {
	String() string
}

// Engine executes actions on behalf of a machine. All calls are synchronous
// and must return without blocking.
type Engine interface {
	Start(a Action)
	Cancel(a Action)
	Requirements(a Action) []ResourceID
}

// Publisher receives the active state name once per tick when a machine has a
// publish key configured
type Publisher interface {
	Publish(key, value string)
}

// PhaseSignal delivers discrete external phase-change events, such as the
// robot leaving its disabled phase
type PhaseSignal interface {
	Subscribe(fn func())
}
