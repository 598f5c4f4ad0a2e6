package tickfsm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrResourceViolation is returned when an action requires a resource the
	// owning machine is not permitted to command
	ErrResourceViolation = errors.New("action requirements exceed machine resources")
	// ErrUnknownTemplate is returned when a declaration names an unregistered template
	ErrUnknownTemplate = errors.New("unknown template")
	// ErrMissingDefaultState is returned by a tick before a default state was declared
	ErrMissingDefaultState = errors.New("default state has not been configured")
	// ErrForeignState is returned when a transition resolves to a state owned by another machine
	ErrForeignState = errors.New("state belongs to a different machine")
	// ErrDuplicateState is returned when a state id is declared twice on one machine
	ErrDuplicateState = errors.New("duplicate state")
	// ErrUnknownState is returned when a transition target cannot be resolved
	ErrUnknownState = errors.New("unknown state")
	// ErrNilState is returned when a nil state is forced active
	ErrNilState = errors.New("nil state")
)

// ResourceError describes a rejected attach call
type ResourceError struct {
	State   StateID
	Action  string
	Missing []ResourceID
}

func (e *ResourceError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		missing[i] = string(r)
	}
	return fmt.Sprintf("state %q: action %q requires %s: %v",
		e.State, e.Action, strings.Join(missing, ","), ErrResourceViolation)
}

func (e *ResourceError) Unwrap() error {
	return ErrResourceViolation
}
