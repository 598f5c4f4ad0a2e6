package tickfsm

import "go.uber.org/zap"

// StateID is a unique identifier for a state within a machine
type StateID string

// ResourceID identifies an exclusive-ownership domain, such as an actuator
type ResourceID string

// Condition is a zero-argument predicate re-evaluated every tick
type Condition func() bool

// Phase tracks where a state is in its enter/exit lifecycle
type Phase int

const (
	// PhaseFresh means the state has not run its enter sequence since it was
	// created or since its action sets last changed
	PhaseFresh Phase = iota
	// PhaseActive means the enter sequence has run and exit has not
	PhaseActive
	// PhaseExited means the exit sequence ran last
	PhaseExited
)

func (p Phase) String() string {
	switch p {
	case PhaseFresh:
		return "fresh"
	case PhaseActive:
		return "active"
	case PhaseExited:
		return "exited"
	default:
		return "unknown"
	}
}

// DefaultTemplateKey is the reserved template key applied to untemplated declarations
const DefaultTemplateKey = ""

// PublishPrefix is prepended to every publish key
const PublishPrefix = "/Internal/State/"

// Logger is the default logger used when none is provided
var Logger = zap.NewNop()
