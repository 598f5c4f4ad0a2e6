// Package loop drives machines and subsystems at a fixed period. Each tick
// runs every member's PreTick, then the engine, then every member's PostTick,
// all on the calling goroutine.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/librescoot/tickfsm"
	"github.com/librescoot/tickfsm/internal/metrics"
	"go.uber.org/zap"
)

// DefaultPeriod is the control period used when none is configured
const DefaultPeriod = 20 * time.Millisecond

// Member takes part in every tick. tickfsm.Machine satisfies it.
type Member interface {
	PreTick() error
	PostTick() error
}

// Engine runs the actions scheduled during a tick
type Engine interface {
	Run()
}

var _ Member = (*tickfsm.Machine)(nil)

// Loop is a fixed-period control loop
type Loop struct {
	name    string
	period  time.Duration
	engine  Engine
	members []Member
	tick    uint64
	logger  *zap.Logger
}

// Option is a functional option for configuring a Loop
type Option func(*Loop)

// WithPeriod sets the control period
func WithPeriod(period time.Duration) Option {
	return func(l *Loop) {
		if period > 0 {
			l.period = period
		}
	}
}

// WithName sets the loop name used in logs and metrics
func WithName(name string) Option {
	return func(l *Loop) {
		l.name = name
	}
}

// WithLogger sets the logger for the loop
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates a loop around engine
func New(engine Engine, opts ...Option) *Loop {
	l := &Loop{
		name:   "main",
		period: DefaultPeriod,
		engine: engine,
		logger: tickfsm.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register adds members. Members tick in registration order.
func (l *Loop) Register(members ...Member) {
	l.members = append(l.members, members...)
}

// Period returns the control period
func (l *Loop) Period() time.Duration {
	return l.period
}

// Ticks returns the number of completed ticks
func (l *Loop) Ticks() uint64 {
	return l.tick
}

// Step runs one tick. A PreTick error stops the tick before the engine runs;
// PostTick errors of all members are joined.
func (l *Loop) Step() error {
	l.tick++

	var errs []error
	for _, m := range l.members {
		if err := m.PreTick(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("tick %d pre: %w", l.tick, errors.Join(errs...))
	}

	l.engine.Run()

	for _, m := range l.members {
		if err := m.PostTick(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("tick %d post: %w", l.tick, errors.Join(errs...))
	}
	return nil
}

// Run ticks every period until ctx is done or a tick fails. Tick errors are
// configuration errors and end the loop.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	l.logger.Info("control loop started", zap.String("loop", l.name), zap.Duration("period", l.period))

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopped", zap.String("loop", l.name), zap.Uint64("ticks", l.tick))
			return nil
		case <-ticker.C:
			start := time.Now()
			err := l.Step()
			cycle := time.Since(start)

			metrics.ObserveTick(l.name, cycle)
			if cycle > l.period {
				metrics.IncOverrun(l.name)
				l.logger.Warn("loop overrun", zap.String("loop", l.name), zap.Duration("cycle", cycle))
			}

			if err != nil {
				metrics.IncTickError(l.name)
				l.logger.Error("control loop tick failed", zap.String("loop", l.name), zap.Error(err))
				return err
			}
		}
	}
}
