package tickfsm

import (
	"fmt"

	"go.uber.org/zap"
)

// State is a named node of a Machine. It owns the actions that run while it
// is active, the one-shot actions run on entry and exit, and an ordered list
// of outgoing transitions.
type State struct {
	id      StateID
	machine *Machine
	phase   Phase

	continuous actionSet
	onEnter    actionSet
	onExit     actionSet

	transitions []transition
	triggers    []*EdgeDetector
}

// StateOption configures a freshly declared state. Templates are lists of options.
type StateOption func(*State) error

// WithWhileRunning attaches continuous actions
func WithWhileRunning(actions ...Action) StateOption {
	return func(s *State) error {
		return s.WhileRunning(actions...)
	}
}

// WithOnEnter attaches one-shot entry actions
func WithOnEnter(actions ...Action) StateOption {
	return func(s *State) error {
		return s.OnEnter(actions...)
	}
}

// WithOnExit attaches one-shot exit actions
func WithOnExit(actions ...Action) StateOption {
	return func(s *State) error {
		return s.OnExit(actions...)
	}
}

// WithTransition appends a level-triggered transition
func WithTransition(cond Condition, to Target) StateOption {
	return func(s *State) error {
		s.AddTransition(cond, to)
		return nil
	}
}

// WithTrigger appends an edge-triggered transition
func WithTrigger(cond Condition, to Target) StateOption {
	return func(s *State) error {
		s.AddTriggerTransition(cond, to)
		return nil
	}
}

func newState(id StateID, m *Machine) *State {
	return &State{
		id:      id,
		machine: m,
		phase:   PhaseFresh,
	}
}

// ID returns the state's name
func (s *State) ID() StateID {
	return s.id
}

// Machine returns the machine that owns this state
func (s *State) Machine() *Machine {
	return s.machine
}

// Phase returns the lifecycle phase of the state
func (s *State) Phase() Phase {
	return s.phase
}

// Initialized reports whether the enter sequence has run since the last exit
// or action-set change
func (s *State) Initialized() bool {
	return s.phase == PhaseActive
}

// ContinuousActions returns the actions run while the state is active
func (s *State) ContinuousActions() []Action {
	return s.continuous.list()
}

// EnterActions returns the one-shot entry actions
func (s *State) EnterActions() []Action {
	return s.onEnter.list()
}

// ExitActions returns the one-shot exit actions
func (s *State) ExitActions() []Action {
	return s.onExit.list()
}

// WhileRunning adds actions that are started on entry and cancelled on exit.
// Repeated calls accumulate. If any action needs a resource outside the
// machine's resource set, nothing is attached. A successful call forces the
// state to re-run its enter sequence on the next tick, even if it is active.
func (s *State) WhileRunning(actions ...Action) error {
	if len(actions) == 0 {
		return nil
	}
	if err := s.admit(actions); err != nil {
		return err
	}
	s.continuous.add(actions...)
	s.phase = PhaseFresh
	return nil
}

// OnEnter adds one-shot actions started when the state becomes active.
// Same admission and re-initialization rules as WhileRunning.
func (s *State) OnEnter(actions ...Action) error {
	if len(actions) == 0 {
		return nil
	}
	if err := s.admit(actions); err != nil {
		return err
	}
	s.onEnter.add(actions...)
	s.phase = PhaseFresh
	return nil
}

// OnExit adds one-shot actions started when the state becomes inactive.
// It does not force re-initialization.
func (s *State) OnExit(actions ...Action) error {
	if len(actions) == 0 {
		return nil
	}
	if err := s.admit(actions); err != nil {
		return err
	}
	s.onExit.add(actions...)
	return nil
}

// AddTransition appends a transition taken on any tick cond is true while this
// state is active. The target is resolved only when the transition fires.
func (s *State) AddTransition(cond Condition, to Target) *State {
	s.transitions = append(s.transitions, transition{cond: cond, to: to})
	return s
}

// AddTriggerTransition appends a transition taken once per rising edge of
// cond, and never on the tick this state became active
func (s *State) AddTriggerTransition(cond Condition, to Target) *State {
	d := NewEdgeDetector(func() bool { return s.machine.active == s }, cond)
	s.triggers = append(s.triggers, d)
	s.transitions = append(s.transitions, transition{cond: d.Fired, to: to, trigger: true})
	return s
}

// admit checks every action before any of them is attached
func (s *State) admit(actions []Action) error {
	for _, a := range actions {
		if a == nil {
			return fmt.Errorf("state %q: nil action", s.id)
		}
		if missing := s.machine.missingResources(a); len(missing) > 0 {
			return &ResourceError{State: s.id, Action: a.String(), Missing: missing}
		}
	}
	return nil
}

// enter starts entry actions and continuous actions
func (s *State) enter() {
	s.machine.logger.Debug("entering state", zap.String("state", string(s.id)))
	for _, a := range s.onEnter.items {
		s.machine.engine.Start(a)
	}
	for _, a := range s.continuous.items {
		s.machine.engine.Start(a)
	}
	s.phase = PhaseActive
}

// exit cancels continuous actions, then starts exit actions
func (s *State) exit() {
	s.machine.logger.Debug("exiting state", zap.String("state", string(s.id)))
	for _, a := range s.continuous.items {
		s.machine.engine.Cancel(a)
	}
	for _, a := range s.onExit.items {
		s.machine.engine.Start(a)
	}
	s.phase = PhaseExited
}

// sampleTriggers advances every edge detector of this state by one tick
func (s *State) sampleTriggers() {
	for _, d := range s.triggers {
		d.Fire()
	}
}

// actionSet is a deduplicated, insertion-ordered set of actions
type actionSet struct {
	items []Action
	index map[Action]struct{}
}

func (as *actionSet) add(actions ...Action) {
	if as.index == nil {
		as.index = make(map[Action]struct{})
	}
	for _, a := range actions {
		if _, ok := as.index[a]; ok {
			continue
		}
		as.index[a] = struct{}{}
		as.items = append(as.items, a)
	}
}

func (as *actionSet) list() []Action {
	out := make([]Action, len(as.items))
	copy(out, as.items)
	return out
}
