package tickfsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test resources
const (
	resMotor ResourceID = "motor"
	resArm   ResourceID = "arm"
)

// Test states
const (
	stateOff StateID = "OFF"
	stateRun StateID = "RUN"
	stateA   StateID = "A"
	stateB   StateID = "B"
	stateC   StateID = "C"
)

type testAction struct {
	name string
	reqs []ResourceID
}

func (a *testAction) String() string { return a.name }

func newAction(name string, reqs ...ResourceID) *testAction {
	return &testAction{name: name, reqs: reqs}
}

// recordingEngine logs every start and cancel in call order
type recordingEngine struct {
	calls     []string
	running   map[Action]bool
	cancelled map[Action]int
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{
		running:   make(map[Action]bool),
		cancelled: make(map[Action]int),
	}
}

func (e *recordingEngine) Start(a Action) {
	e.calls = append(e.calls, "start:"+a.String())
	e.running[a] = true
}

func (e *recordingEngine) Cancel(a Action) {
	e.calls = append(e.calls, "cancel:"+a.String())
	e.cancelled[a]++
	delete(e.running, a)
}

func (e *recordingEngine) Requirements(a Action) []ResourceID {
	return a.(*testAction).reqs
}

func (e *recordingEngine) reset() {
	e.calls = nil
}

type manualSignal struct {
	subs []func()
}

func (s *manualSignal) Subscribe(fn func()) { s.subs = append(s.subs, fn) }

func (s *manualSignal) fire() {
	for _, fn := range s.subs {
		fn()
	}
}

type recordingPublisher struct {
	keys   []string
	values []string
}

func (p *recordingPublisher) Publish(key, value string) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
}

func tick(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.PreTick())
	require.NoError(t, m.PostTick())
}

func TestTriggerTransitionOnFirstRisingEdge(t *testing.T) {
	eng := newRecordingEngine()
	m := NewMachine(eng, []ResourceID{resMotor})

	var c bool
	spin := newAction("spin", resMotor)

	_, err := m.DefaultState(stateOff, WithTrigger(func() bool { return c }, m.Lookup(stateRun)))
	require.NoError(t, err)
	_, err = m.State(stateRun, WithWhileRunning(spin))
	require.NoError(t, err)

	tick(t, m)
	assert.Equal(t, stateOff, m.ActiveState().ID())

	c = true
	tick(t, m)
	assert.Equal(t, stateRun, m.ActiveState().ID())
	assert.True(t, eng.running[spin])
}

func TestFirstMatchingTransitionWins(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)

	var p2Calls int
	a, err := m.DefaultState(stateA)
	require.NoError(t, err)
	_, err = m.State(stateB)
	require.NoError(t, err)
	_, err = m.State(stateC)
	require.NoError(t, err)

	a.AddTransition(func() bool { return true }, m.Lookup(stateB)).
		AddTransition(func() bool { p2Calls++; return true }, m.Lookup(stateC))

	tick(t, m)
	assert.Equal(t, stateB, m.ActiveState().ID())
	assert.Equal(t, 0, p2Calls)
}

func TestUnknownTemplate(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)

	s, err := m.StateFrom("missing_template", "X")
	require.ErrorIs(t, err, ErrUnknownTemplate)
	assert.Nil(t, s)

	for _, st := range m.States() {
		assert.NotEqual(t, StateID("X"), st.ID())
	}
	assert.Nil(t, m.Lookup("X")())
}

func TestRestartOnPhaseChange(t *testing.T) {
	eng := newRecordingEngine()
	sig := &manualSignal{}
	m := NewMachine(eng, []ResourceID{resMotor}).RestartOn(sig)

	var c bool
	spin := newAction("spin", resMotor)
	_, err := m.DefaultState(stateOff, WithTrigger(func() bool { return c }, m.Lookup(stateRun)))
	require.NoError(t, err)
	_, err = m.State(stateRun, WithWhileRunning(spin))
	require.NoError(t, err)

	tick(t, m)
	c = true
	tick(t, m)
	require.Equal(t, stateRun, m.ActiveState().ID())

	sig.fire()
	c = false

	require.NoError(t, m.PreTick())
	assert.Equal(t, stateOff, m.ActiveState().ID())
	require.NoError(t, m.PostTick())
	assert.Equal(t, stateOff, m.ActiveState().ID())
	assert.Equal(t, 1, eng.cancelled[spin])
	assert.False(t, eng.running[spin])
}

func TestRestartWithoutDefaultStateIsIgnored(t *testing.T) {
	sig := &manualSignal{}
	m := NewMachine(newRecordingEngine(), nil).RestartOn(sig)

	sig.fire()
	assert.Nil(t, m.ActiveState())
}

func TestMissingDefaultState(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)
	_, err := m.State(stateA)
	require.NoError(t, err)

	assert.ErrorIs(t, m.PreTick(), ErrMissingDefaultState)
	assert.ErrorIs(t, m.PostTick(), ErrMissingDefaultState)
	assert.Nil(t, m.ActiveState())
}

func TestActiveStateAfterFirstTick(t *testing.T) {
	eng := newRecordingEngine()
	enter := newAction("enter")
	m := NewMachine(eng, nil)
	_, err := m.DefaultState(stateA, WithOnEnter(enter))
	require.NoError(t, err)

	assert.Nil(t, m.ActiveState())
	require.NoError(t, m.PreTick())
	require.NotNil(t, m.ActiveState())
	assert.Equal(t, stateA, m.ActiveState().ID())
	assert.Equal(t, PhaseActive, m.ActiveState().Phase())
	assert.Equal(t, []string{"start:enter"}, eng.calls)

	// a second PreTick does not re-enter
	require.NoError(t, m.PreTick())
	assert.Equal(t, []string{"start:enter"}, eng.calls)
}

func TestResourceViolationIsAtomic(t *testing.T) {
	m := NewMachine(newRecordingEngine(), []ResourceID{resMotor})
	s, err := m.State(stateA)
	require.NoError(t, err)

	ok := newAction("ok", resMotor)
	bad := newAction("bad", resMotor, resArm)

	for _, attach := range []func(...Action) error{s.WhileRunning, s.OnEnter, s.OnExit} {
		err := attach(ok, bad)
		require.ErrorIs(t, err, ErrResourceViolation)

		var re *ResourceError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, stateA, re.State)
		assert.Equal(t, "bad", re.Action)
		assert.Equal(t, []ResourceID{resArm}, re.Missing)
	}

	assert.Empty(t, s.ContinuousActions())
	assert.Empty(t, s.EnterActions())
	assert.Empty(t, s.ExitActions())
}

func TestResourceViolationInOptionAbortsDeclaration(t *testing.T) {
	m := NewMachine(newRecordingEngine(), []ResourceID{resMotor})

	_, err := m.State(stateA, WithWhileRunning(newAction("bad", resArm)))
	require.ErrorIs(t, err, ErrResourceViolation)
	assert.Empty(t, m.States())
}

func TestEmptyAttachKeepsPhase(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)
	s, err := m.DefaultState(stateA)
	require.NoError(t, err)
	tick(t, m)
	require.True(t, s.Initialized())

	require.NoError(t, s.WhileRunning())
	require.NoError(t, s.OnEnter())
	require.NoError(t, s.OnExit())
	assert.True(t, s.Initialized())
}

func TestAttachReinitializesActiveState(t *testing.T) {
	eng := newRecordingEngine()
	m := NewMachine(eng, []ResourceID{resMotor})

	first := newAction("first", resMotor)
	second := newAction("second", resMotor)
	enter := newAction("enter")
	s, err := m.DefaultState(stateA, WithWhileRunning(first), WithOnEnter(enter))
	require.NoError(t, err)
	tick(t, m)
	eng.reset()

	require.NoError(t, s.WhileRunning(second))
	assert.False(t, s.Initialized())
	assert.Equal(t, PhaseFresh, s.Phase())

	tick(t, m)
	assert.True(t, s.Initialized())
	assert.Equal(t, []string{
		"cancel:first", "cancel:second",
		"start:enter", "start:first", "start:second",
	}, eng.calls)
}

func TestOnExitAttachDoesNotReinitialize(t *testing.T) {
	eng := newRecordingEngine()
	m := NewMachine(eng, nil)
	s, err := m.DefaultState(stateA)
	require.NoError(t, err)
	tick(t, m)
	eng.reset()

	require.NoError(t, s.OnExit(newAction("bye")))
	assert.True(t, s.Initialized())

	tick(t, m)
	assert.Empty(t, eng.calls)
}

func TestRepeatedAttachAccumulates(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)
	s, err := m.State(stateA)
	require.NoError(t, err)

	x, y := newAction("x"), newAction("y")
	require.NoError(t, s.WhileRunning(x))
	require.NoError(t, s.WhileRunning(y, x))

	assert.Equal(t, []Action{x, y}, s.ContinuousActions())
}

func TestEnterAndExitOrdering(t *testing.T) {
	eng := newRecordingEngine()
	m := NewMachine(eng, nil)

	var done bool
	_, err := m.DefaultState(stateA,
		WithWhileRunning(newAction("a-run")),
		WithOnEnter(newAction("a-enter")),
		WithOnExit(newAction("a-exit")),
		WithTransition(func() bool { return done }, m.Lookup(stateB)),
	)
	require.NoError(t, err)
	_, err = m.State(stateB,
		WithWhileRunning(newAction("b-run")),
		WithOnEnter(newAction("b-enter")),
	)
	require.NoError(t, err)

	tick(t, m)
	assert.Equal(t, []string{"start:a-enter", "start:a-run"}, eng.calls)
	eng.reset()

	done = true
	tick(t, m)
	assert.Equal(t, []string{
		"cancel:a-run", "start:a-exit",
		"start:b-enter", "start:b-run",
	}, eng.calls)
	assert.Equal(t, PhaseExited, m.Lookup(stateA)().Phase())
}

func TestAtMostOneTransitionPerTick(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)
	always := func() bool { return true }

	_, err := m.DefaultState(stateA, WithTransition(always, m.Lookup(stateB)))
	require.NoError(t, err)
	_, err = m.State(stateB, WithTransition(always, m.Lookup(stateA)))
	require.NoError(t, err)

	want := []StateID{stateB, stateA, stateB, stateA}
	for i, id := range want {
		tick(t, m)
		assert.Equal(t, id, m.ActiveState().ID(), "tick %d", i+1)

		active := 0
		for _, s := range m.States() {
			if s == m.ActiveState() {
				active++
			}
		}
		assert.Equal(t, 1, active)
	}
}

func TestTriggerIgnoresConditionHeldOnEntry(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)

	var c bool
	cond := func() bool { return c }
	_, err := m.DefaultState(stateA, WithTrigger(cond, m.Lookup(stateB)))
	require.NoError(t, err)
	_, err = m.State(stateB, WithTrigger(cond, m.Lookup(stateA)))
	require.NoError(t, err)

	tick(t, m)
	c = true
	tick(t, m)
	require.Equal(t, stateB, m.ActiveState().ID())

	// holding the condition does not bounce back
	for i := 0; i < 5; i++ {
		tick(t, m)
		assert.Equal(t, stateB, m.ActiveState().ID())
	}

	c = false
	tick(t, m)
	assert.Equal(t, stateB, m.ActiveState().ID())

	c = true
	tick(t, m)
	assert.Equal(t, stateA, m.ActiveState().ID())
}

func TestTriggerHistoryTracksInactiveTicks(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)

	var x, goB, back bool
	_, err := m.DefaultState(stateA,
		WithTrigger(func() bool { return x }, m.Lookup(stateC)),
		WithTransition(func() bool { return goB }, m.Lookup(stateB)),
	)
	require.NoError(t, err)
	_, err = m.State(stateB, WithTransition(func() bool { return back }, m.Lookup(stateA)))
	require.NoError(t, err)
	_, err = m.State(stateC)
	require.NoError(t, err)

	tick(t, m)

	goB = true
	tick(t, m)
	require.Equal(t, stateB, m.ActiveState().ID())

	// x rises while A is inactive
	goB, x, back = false, true, true
	tick(t, m)
	require.Equal(t, stateA, m.ActiveState().ID())

	back = false
	tick(t, m)
	tick(t, m)
	assert.Equal(t, stateA, m.ActiveState().ID())

	x = false
	tick(t, m)
	x = true
	tick(t, m)
	assert.Equal(t, stateC, m.ActiveState().ID())
}

func TestForeignStateRecoversToDefault(t *testing.T) {
	eng := newRecordingEngine()
	m := NewMachine(eng, nil)
	other := NewMachine(newRecordingEngine(), nil)

	foreign, err := other.State(stateC)
	require.NoError(t, err)

	var leave bool
	def := newAction("def-enter")
	_, err = m.DefaultState(stateA, WithOnEnter(def), WithTransition(func() bool { return leave }, m.Lookup(stateB)))
	require.NoError(t, err)
	_, err = m.State(stateB, WithTransition(func() bool { return true }, Ref(foreign)))
	require.NoError(t, err)

	tick(t, m)
	leave = true
	tick(t, m)
	require.Equal(t, stateB, m.ActiveState().ID())
	leave = false
	eng.reset()

	require.NoError(t, m.PreTick())
	err = m.PostTick()
	require.ErrorIs(t, err, ErrForeignState)
	assert.Equal(t, stateA, m.ActiveState().ID())
	assert.Equal(t, []string{"start:def-enter"}, eng.calls)
	assert.Equal(t, PhaseFresh, foreign.Phase())
}

func TestUnresolvedTargetRecoversToDefault(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)
	_, err := m.DefaultState(stateA)
	require.NoError(t, err)
	b, err := m.State(stateB, WithTransition(func() bool { return true }, m.Lookup("nowhere")))
	require.NoError(t, err)

	tick(t, m)
	require.NoError(t, m.ForceState(b))

	err = m.PostTick()
	require.ErrorIs(t, err, ErrUnknownState)
	assert.Equal(t, stateA, m.ActiveState().ID())
}

func TestForceState(t *testing.T) {
	eng := newRecordingEngine()
	m := NewMachine(eng, nil)
	run := newAction("a-run")
	_, err := m.DefaultState(stateA, WithWhileRunning(run))
	require.NoError(t, err)
	b, err := m.State(stateB)
	require.NoError(t, err)

	tick(t, m)
	require.NoError(t, m.ForceState(b))
	assert.Equal(t, stateB, m.ActiveState().ID())
	assert.Equal(t, 1, eng.cancelled[run])

	assert.ErrorIs(t, m.ForceState(nil), ErrNilState)

	other := NewMachine(newRecordingEngine(), nil)
	foreign, err := other.State(stateC)
	require.NoError(t, err)
	assert.ErrorIs(t, m.ForceState(foreign), ErrForeignState)
	assert.Equal(t, stateB, m.ActiveState().ID())
}

func TestTemplates(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)
	base := newAction("base")
	named := newAction("named")
	replaced := newAction("replaced")

	m.Template(WithOnExit(base))
	m.NamedTemplate("spin", WithWhileRunning(named))

	a, err := m.State(stateA)
	require.NoError(t, err)
	assert.Equal(t, []Action{base}, a.ExitActions())

	b, err := m.StateFrom("spin", stateB)
	require.NoError(t, err)
	assert.Equal(t, []Action{named}, b.ContinuousActions())
	assert.Empty(t, b.ExitActions())

	// overwriting a template is not retroactive
	m.NamedTemplate("spin", WithWhileRunning(replaced))
	c, err := m.StateFrom("spin", stateC)
	require.NoError(t, err)
	assert.Equal(t, []Action{replaced}, c.ContinuousActions())
	assert.Equal(t, []Action{named}, b.ContinuousActions())
}

func TestTemplateFailureAbortsDeclaration(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)
	boom := errors.New("boom")
	m.Template(func(*State) error { return boom })

	_, err := m.DefaultState(stateA)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, m.States())
	assert.Nil(t, m.Default())
}

func TestDuplicateState(t *testing.T) {
	m := NewMachine(newRecordingEngine(), nil)
	_, err := m.State(stateA)
	require.NoError(t, err)

	_, err = m.State(stateA)
	assert.ErrorIs(t, err, ErrDuplicateState)
	assert.Len(t, m.States(), 1)
}

func TestPublishOncePerTick(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewMachine(newRecordingEngine(), nil, WithPublisher(pub)).PublishTo("Shooter")

	_, err := m.DefaultState(stateA, WithTransition(func() bool { return true }, m.Lookup(stateB)))
	require.NoError(t, err)
	_, err = m.State(stateB)
	require.NoError(t, err)

	tick(t, m)
	tick(t, m)

	assert.Equal(t, []string{"/Internal/State/Shooter", "/Internal/State/Shooter"}, pub.keys)
	assert.Equal(t, []string{"B", "B"}, pub.values)
}

func TestNoPublishWithoutKey(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewMachine(newRecordingEngine(), nil, WithPublisher(pub))
	_, err := m.DefaultState(stateA)
	require.NoError(t, err)

	tick(t, m)
	assert.Empty(t, pub.values)
}

func TestStateChangeCallback(t *testing.T) {
	var changes [][2]StateID
	m := NewMachine(newRecordingEngine(), nil, WithStateChangeCallback(func(from, to StateID) {
		changes = append(changes, [2]StateID{from, to})
	}))
	_, err := m.DefaultState(stateA, WithTransition(func() bool { return true }, m.Lookup(stateB)))
	require.NoError(t, err)
	_, err = m.State(stateB)
	require.NoError(t, err)

	tick(t, m)
	assert.Equal(t, [][2]StateID{{"", stateA}, {stateA, stateB}}, changes)
}

func TestResourcesAreFixed(t *testing.T) {
	rs := []ResourceID{resMotor, resMotor, resArm}
	m := NewMachine(newRecordingEngine(), rs)
	rs[0] = "other"

	assert.Equal(t, []ResourceID{resMotor, resArm}, m.Resources())
}
