package flywheel

import (
	"github.com/librescoot/tickfsm"
)

// Flywheel states
const (
	StateOff    tickfsm.StateID = "OFF"
	StateIdle   tickfsm.StateID = "IDLE"
	StateSpinUp tickfsm.StateID = "SPIN_UP"
	StateReady  tickfsm.StateID = "READY"
)

// templateSpinning is applied to every state that drives the motor
const templateSpinning = "spinning"

// PublishKey is the key the flywheel machine publishes its state under
const PublishKey = "Flywheel"

// Controls are the operator inputs read by the flywheel machine. Each one is
// edge-triggered: holding it down causes a single transition.
type Controls struct {
	SpinUp tickfsm.Condition
	Idle   tickfsm.Condition
	Stop   tickfsm.Condition
}

func never() bool { return false }

func (c Controls) withDefaults() Controls {
	if c.SpinUp == nil {
		c.SpinUp = never
	}
	if c.Idle == nil {
		c.Idle = never
	}
	if c.Stop == nil {
		c.Stop = never
	}
	return c
}

// NewStateMachine declares the flywheel states on a new machine bound to the
// flywheel resource:
//
//	OFF --spin up--> SPIN_UP --at speed--> READY
//	OFF --idle-----> IDLE --spin up--> SPIN_UP
//	SPIN_UP, READY --idle--> IDLE
//	IDLE, SPIN_UP, READY --stop--> OFF
func NewStateMachine(f *Flywheel, engine tickfsm.Engine, ctl Controls, opts ...tickfsm.MachineOption) (*tickfsm.Machine, error) {
	ctl = ctl.withDefaults()
	m := tickfsm.NewMachine(engine, []tickfsm.ResourceID{Resource}, opts...)
	m.PublishTo(PublishKey)

	m.NamedTemplate(templateSpinning,
		tickfsm.WithOnExit(f.Stop()),
		tickfsm.WithTrigger(ctl.Stop, m.Lookup(StateOff)),
	)

	if _, err := m.DefaultState(StateOff,
		tickfsm.WithOnEnter(f.Stop()),
		tickfsm.WithTrigger(ctl.SpinUp, m.Lookup(StateSpinUp)),
		tickfsm.WithTrigger(ctl.Idle, m.Lookup(StateIdle)),
	); err != nil {
		return nil, err
	}

	cfg := f.Config()

	if _, err := m.StateFrom(templateSpinning, StateIdle,
		tickfsm.WithWhileRunning(f.RunVelocity("flywheel-idle", cfg.IdleRPM)),
		tickfsm.WithTrigger(ctl.SpinUp, m.Lookup(StateSpinUp)),
	); err != nil {
		return nil, err
	}

	if _, err := m.StateFrom(templateSpinning, StateSpinUp,
		tickfsm.WithWhileRunning(f.RunVelocity("flywheel-spin-up", cfg.ShootRPM)),
		tickfsm.WithTransition(func() bool { return f.AtVelocity(cfg.ShootRPM) }, m.Lookup(StateReady)),
		tickfsm.WithTrigger(ctl.Idle, m.Lookup(StateIdle)),
	); err != nil {
		return nil, err
	}

	if _, err := m.StateFrom(templateSpinning, StateReady,
		tickfsm.WithWhileRunning(f.RunVelocity("flywheel-hold", cfg.ShootRPM)),
		tickfsm.WithTrigger(ctl.Idle, m.Lookup(StateIdle)),
	); err != nil {
		return nil, err
	}

	return m, nil
}
