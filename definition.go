package tickfsm

import (
	"fmt"

	"go.uber.org/zap"
)

// State declares a new state. If a default template is registered it is
// applied first, then opts. Nothing is registered if any option fails.
func (m *Machine) State(id StateID, opts ...StateOption) (*State, error) {
	return m.declare(m.templates[DefaultTemplateKey], id, opts)
}

// StateFrom declares a new state from the template registered under key
func (m *Machine) StateFrom(key string, id StateID, opts ...StateOption) (*State, error) {
	tmpl, ok := m.templates[key]
	if !ok {
		return nil, fmt.Errorf("state %q: %w %q", id, ErrUnknownTemplate, key)
	}
	return m.declare(tmpl, id, opts)
}

// DefaultState declares a new state like State and makes it the machine's
// initial state and fallback
func (m *Machine) DefaultState(id StateID, opts ...StateOption) (*State, error) {
	s, err := m.State(id, opts...)
	if err != nil {
		return nil, err
	}
	m.defaultState = s
	return s, nil
}

// Template registers the default template applied by State and DefaultState.
// It replaces any earlier default template and does not touch existing states.
func (m *Machine) Template(opts ...StateOption) *Machine {
	return m.NamedTemplate(DefaultTemplateKey, opts...)
}

// NamedTemplate registers a template used by StateFrom. It replaces any
// earlier template with the same key and does not touch existing states.
func (m *Machine) NamedTemplate(key string, opts ...StateOption) *Machine {
	tmpl := make([]StateOption, len(opts))
	copy(tmpl, opts)
	m.templates[key] = tmpl
	return m
}

func (m *Machine) declare(tmpl []StateOption, id StateID, opts []StateOption) (*State, error) {
	if _, ok := m.byID[id]; ok {
		return nil, fmt.Errorf("%w %q", ErrDuplicateState, id)
	}

	s := newState(id, m)
	for _, opt := range tmpl {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("state %q template: %w", id, err)
		}
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("state %q: %w", id, err)
		}
	}

	m.states = append(m.states, s)
	m.byID[id] = s
	m.logger.Debug("declared state", zap.String("state", string(id)))
	return s, nil
}
