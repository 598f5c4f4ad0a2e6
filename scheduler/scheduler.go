// Package scheduler implements tickfsm.Engine as a cooperative command
// scheduler. Commands are started and cancelled synchronously; Run executes
// every scheduled command once and retires the ones that finished.
package scheduler

import (
	"github.com/librescoot/tickfsm"
	"github.com/librescoot/tickfsm/internal/metrics"
	"go.uber.org/zap"
)

// Scheduler runs commands once per tick. It is not safe for concurrent use.
type Scheduler struct {
	scheduled []*Command
	index     map[*Command]struct{}
	owners    map[tickfsm.ResourceID]*Command

	running    bool
	toSchedule []*Command
	toCancel   []*Command

	logger *zap.Logger
}

// SchedulerOption is a functional option for configuring a Scheduler
type SchedulerOption func(*Scheduler)

// WithLogger sets the logger for the scheduler
func WithLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates an empty scheduler
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		index:  make(map[*Command]struct{}),
		owners: make(map[tickfsm.ResourceID]*Command),
		logger: tickfsm.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ tickfsm.Engine = (*Scheduler)(nil)

// Start schedules a command. Starting a scheduled command is a no-op. Any
// scheduled command holding one of its resources is interrupted first.
func (s *Scheduler) Start(a tickfsm.Action) {
	c, ok := s.command(a)
	if !ok {
		return
	}
	if s.running {
		s.toSchedule = append(s.toSchedule, c)
		return
	}
	s.schedule(c)
}

// Cancel interrupts a scheduled command. Cancelling anything else is a no-op.
func (s *Scheduler) Cancel(a tickfsm.Action) {
	c, ok := s.command(a)
	if !ok {
		return
	}
	if s.running {
		s.toCancel = append(s.toCancel, c)
		return
	}
	s.retire(c, true)
}

// Requirements returns the resources a command needs
func (s *Scheduler) Requirements(a tickfsm.Action) []tickfsm.ResourceID {
	c, ok := a.(*Command)
	if !ok || c == nil {
		return nil
	}
	return c.Requirements()
}

// Run executes each scheduled command once, in scheduling order, and retires
// the ones that report finished. Starts and cancels issued by command hooks
// are applied after the pass.
func (s *Scheduler) Run() {
	s.running = true
	pass := make([]*Command, len(s.scheduled))
	copy(pass, s.scheduled)
	for _, c := range pass {
		if !s.IsScheduled(c) {
			continue
		}
		c.runExecute()
		if c.finished() {
			s.retire(c, false)
		}
	}
	s.running = false

	for _, c := range s.toSchedule {
		s.schedule(c)
	}
	for _, c := range s.toCancel {
		s.retire(c, true)
	}
	s.toSchedule = s.toSchedule[:0]
	s.toCancel = s.toCancel[:0]
}

// IsScheduled reports whether the action is currently scheduled
func (s *Scheduler) IsScheduled(a tickfsm.Action) bool {
	c, ok := a.(*Command)
	if !ok {
		return false
	}
	_, ok = s.index[c]
	return ok
}

// Scheduled returns the names of the scheduled commands in scheduling order
func (s *Scheduler) Scheduled() []string {
	names := make([]string, len(s.scheduled))
	for i, c := range s.scheduled {
		names[i] = c.name
	}
	return names
}

// Owner returns the command currently holding a resource
func (s *Scheduler) Owner(r tickfsm.ResourceID) (*Command, bool) {
	c, ok := s.owners[r]
	return c, ok
}

// CancelAll interrupts every scheduled command
func (s *Scheduler) CancelAll() {
	pass := make([]*Command, len(s.scheduled))
	copy(pass, s.scheduled)
	for _, c := range pass {
		s.Cancel(c)
	}
}

func (s *Scheduler) command(a tickfsm.Action) (*Command, bool) {
	c, ok := a.(*Command)
	if !ok || c == nil {
		s.logger.Warn("ignoring unsupported action", zap.Stringer("action", a))
		return nil, false
	}
	return c, true
}

func (s *Scheduler) schedule(c *Command) {
	if _, ok := s.index[c]; ok {
		return
	}
	for _, r := range c.requirements {
		if owner, ok := s.owners[r]; ok && owner != c {
			s.logger.Debug("interrupting command for resource",
				zap.String("command", owner.name), zap.String("by", c.name), zap.String("resource", string(r)))
			s.retire(owner, true)
		}
	}

	s.scheduled = append(s.scheduled, c)
	s.index[c] = struct{}{}
	for _, r := range c.requirements {
		s.owners[r] = c
	}
	metrics.SetScheduledCommands(len(s.scheduled))

	s.logger.Debug("command started", zap.String("command", c.name))
	c.runInitialize()
}

func (s *Scheduler) retire(c *Command, interrupted bool) {
	if _, ok := s.index[c]; !ok {
		return
	}
	delete(s.index, c)
	for i, sc := range s.scheduled {
		if sc == c {
			s.scheduled = append(s.scheduled[:i], s.scheduled[i+1:]...)
			break
		}
	}
	for _, r := range c.requirements {
		if s.owners[r] == c {
			delete(s.owners, r)
		}
	}
	metrics.SetScheduledCommands(len(s.scheduled))
	metrics.IncCommandEnd(c.name, interrupted)

	s.logger.Debug("command ended", zap.String("command", c.name), zap.Bool("interrupted", interrupted))
	c.runEnd(interrupted)
}
