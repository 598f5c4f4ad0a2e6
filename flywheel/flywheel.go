// Package flywheel is the shooter flywheel subsystem: a thin adapter over the
// motor IO plus the commands and state machine that drive it.
package flywheel

import (
	"fmt"
	"math"
	"sync"

	"github.com/librescoot/tickfsm"
	"github.com/librescoot/tickfsm/scheduler"
	"go.uber.org/zap"
)

// Resource is the exclusive resource every flywheel command requires
const Resource tickfsm.ResourceID = "flywheel"

// Flywheel owns the motor IO and caches its inputs once per tick
type Flywheel struct {
	io     IO
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	inputs Inputs
}

// New configures io and returns the subsystem
func New(io IO, cfg Config, logger *zap.Logger) (*Flywheel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flywheel config: %w", err)
	}
	if err := io.Configure(cfg); err != nil {
		return nil, fmt.Errorf("configure flywheel: %w", err)
	}
	if logger == nil {
		logger = tickfsm.Logger
	}
	return &Flywheel{io: io, cfg: cfg, logger: logger}, nil
}

// PreTick refreshes the cached inputs
func (f *Flywheel) PreTick() error {
	var in Inputs
	f.io.UpdateInputs(&in)

	f.mu.Lock()
	f.inputs = in
	f.mu.Unlock()
	return nil
}

// PostTick does nothing
func (f *Flywheel) PostTick() error {
	return nil
}

// Inputs returns the readings from the last tick
func (f *Flywheel) Inputs() Inputs {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.inputs
}

// Config returns the subsystem configuration
func (f *Flywheel) Config() Config {
	return f.cfg
}

// SetVoltage commands an open-loop voltage, clamped to the configured maximum
func (f *Flywheel) SetVoltage(volts float64) {
	f.io.SetMotorVoltage(math.Max(-f.cfg.MaxVoltage, math.Min(f.cfg.MaxVoltage, volts)))
}

// SetVelocity commands a closed-loop velocity, clamped to the cruise velocity
func (f *Flywheel) SetVelocity(rpm float64) {
	f.io.SetVelocitySetpoint(math.Max(-f.cfg.CruiseVelocityRPM, math.Min(f.cfg.CruiseVelocityRPM, rpm)))
}

// AtVelocity reports whether the measured velocity is within tolerance of rpm
func (f *Flywheel) AtVelocity(rpm float64) bool {
	return math.Abs(f.Inputs().VelocityRPM-rpm) <= f.cfg.ToleranceRPM
}

// RunVelocity returns a command that holds rpm until cancelled, then coasts
func (f *Flywheel) RunVelocity(name string, rpm float64) *scheduler.Command {
	return scheduler.New(name,
		scheduler.WithRequirements(Resource),
		scheduler.WithInitialize(func() { f.SetVelocity(rpm) }),
		scheduler.WithExecute(func() { f.SetVelocity(rpm) }),
		scheduler.WithEnd(func(bool) { f.SetVoltage(0) }),
	)
}

// Stop returns a one-shot command that cuts motor output
func (f *Flywheel) Stop() *scheduler.Command {
	return scheduler.Instant("flywheel-stop", func() {
		f.logger.Debug("flywheel stopped")
		f.SetVoltage(0)
	}, Resource)
}
