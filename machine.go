package tickfsm

import (
	"fmt"

	"go.uber.org/zap"
)

// Machine is a tick-driven state machine. It owns a fixed set of resources,
// the states declared through it, and at most one active state. A machine is
// not safe for concurrent use; PreTick and PostTick are called from a single
// control loop.
type Machine struct {
	name      string
	engine    Engine
	resources map[ResourceID]struct{}
	resList   []ResourceID

	states       []*State
	byID         map[StateID]*State
	defaultState *State
	active       *State

	templates map[string][]StateOption

	publishKey string
	publisher  Publisher

	logger              *zap.Logger
	stateChangeCallback func(from, to StateID)
}

// MachineOption is a functional option for configuring a Machine
type MachineOption func(*Machine)

// WithName sets the name used in log lines
func WithName(name string) MachineOption {
	return func(m *Machine) {
		m.name = name
	}
}

// WithLogger sets the logger for the machine
func WithLogger(logger *zap.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithPublisher sets the sink used once a publish key is configured
func WithPublisher(p Publisher) MachineOption {
	return func(m *Machine) {
		m.publisher = p
	}
}

// WithStateChangeCallback sets a callback invoked after each state change
func WithStateChangeCallback(fn func(from, to StateID)) MachineOption {
	return func(m *Machine) {
		m.stateChangeCallback = fn
	}
}

// NewMachine creates a machine that may only command the given resources.
// The resource set cannot change afterwards.
func NewMachine(engine Engine, resources []ResourceID, opts ...MachineOption) *Machine {
	m := &Machine{
		engine:    engine,
		resources: make(map[ResourceID]struct{}, len(resources)),
		byID:      make(map[StateID]*State),
		templates: make(map[string][]StateOption),
		logger:    Logger,
	}
	for _, r := range resources {
		if _, ok := m.resources[r]; ok {
			continue
		}
		m.resources[r] = struct{}{}
		m.resList = append(m.resList, r)
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.name != "" {
		m.logger = m.logger.With(zap.String("machine", m.name))
	}

	return m
}

// OnStateChange sets a callback invoked after each state change
func (m *Machine) OnStateChange(fn func(from, to StateID)) {
	m.stateChangeCallback = fn
}

// PublishTo publishes the active state name under PublishPrefix+key once per tick
func (m *Machine) PublishTo(key string) *Machine {
	m.publishKey = key
	return m
}

// RestartOn forces the default state active every time sig fires
func (m *Machine) RestartOn(sig PhaseSignal) *Machine {
	sig.Subscribe(func() {
		if m.defaultState == nil {
			m.logger.Error("restart requested without a default state", zap.Error(ErrMissingDefaultState))
			return
		}
		if err := m.ForceState(m.defaultState); err != nil {
			m.logger.Error("restart to default state failed", zap.Error(err))
		}
	})
	return m
}

// Name returns the machine name
func (m *Machine) Name() string {
	return m.name
}

// Resources returns the resources this machine may command
func (m *Machine) Resources() []ResourceID {
	out := make([]ResourceID, len(m.resList))
	copy(out, m.resList)
	return out
}

// States returns every declared state in declaration order
func (m *Machine) States() []*State {
	out := make([]*State, len(m.states))
	copy(out, m.states)
	return out
}

// Default returns the default state, or nil if none was declared
func (m *Machine) Default() *State {
	return m.defaultState
}

// ActiveState returns the active state, or nil before the first tick
func (m *Machine) ActiveState() *State {
	return m.active
}

// PreTick runs before the tick's actions are dispatched. It activates the
// default state if nothing is active yet.
func (m *Machine) PreTick() error {
	if m.defaultState == nil {
		return ErrMissingDefaultState
	}
	if m.active == nil {
		m.active = m.defaultState
		m.active.enter()
		m.notify("", m.active.id)
	}
	return nil
}

// PostTick runs after the tick's actions were dispatched. It re-initializes
// the active state if its actions changed, then takes at most one transition:
// the first one whose condition is true.
func (m *Machine) PostTick() error {
	if m.active == nil {
		if err := m.PreTick(); err != nil {
			return err
		}
	}

	if m.active.phase != PhaseActive {
		m.logger.Debug("re-initializing state", zap.String("state", string(m.active.id)))
		m.active.exit()
		m.active.enter()
	}

	for _, s := range m.states {
		s.sampleTriggers()
	}

	var err error
	for _, t := range m.active.transitions {
		if t.cond() {
			err = m.transition(t.to)
			break
		}
	}

	m.publish()
	return err
}

// ForceState exits the active state and enters s, bypassing transitions
func (m *Machine) ForceState(s *State) error {
	if s == nil {
		return ErrNilState
	}
	if s.machine != m {
		return fmt.Errorf("force %q: %w", s.id, ErrForeignState)
	}

	var from StateID
	if m.active != nil {
		from = m.active.id
		m.active.exit()
	}
	m.logger.Debug("forcing state", zap.String("from", string(from)), zap.String("to", string(s.id)))
	m.active = s
	m.active.enter()
	m.notify(from, s.id)
	return nil
}

// transition exits the active state and enters the resolved target. A target
// that is missing or owned by another machine leaves the default state active
// and is reported as an error.
func (m *Machine) transition(to Target) error {
	from := m.active
	from.exit()

	var next *State
	if to != nil {
		next = to()
	}

	switch {
	case next == nil:
		m.fallback(from.id)
		return fmt.Errorf("transition from %q: %w", from.id, ErrUnknownState)
	case next.machine != m:
		m.fallback(from.id)
		m.logger.Error("transition to foreign state",
			zap.String("from", string(from.id)), zap.String("to", string(next.id)))
		return fmt.Errorf("transition from %q to %q: %w", from.id, next.id, ErrForeignState)
	}

	m.logger.Debug("executing transition", zap.String("from", string(from.id)), zap.String("to", string(next.id)))
	m.active = next
	m.active.enter()
	m.notify(from.id, next.id)
	return nil
}

func (m *Machine) fallback(from StateID) {
	m.active = m.defaultState
	if m.active == nil {
		return
	}
	m.active.enter()
	m.notify(from, m.active.id)
}

func (m *Machine) notify(from, to StateID) {
	if m.stateChangeCallback != nil {
		m.stateChangeCallback(from, to)
	}
}

func (m *Machine) publish() {
	if m.publishKey == "" || m.publisher == nil || m.active == nil {
		return
	}
	m.publisher.Publish(PublishPrefix+m.publishKey, string(m.active.id))
}

// missingResources returns the requirements of a that this machine does not own
func (m *Machine) missingResources(a Action) []ResourceID {
	var missing []ResourceID
	for _, r := range m.engine.Requirements(a) {
		if _, ok := m.resources[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}
