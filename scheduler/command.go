package scheduler

import "github.com/librescoot/tickfsm"

// Command is a unit of work run by a Scheduler. Its hooks are optional.
type Command struct {
	name         string
	requirements []tickfsm.ResourceID

	initialize func()
	execute    func()
	isFinished func() bool
	end        func(interrupted bool)
}

// Option is a functional option for configuring a Command
type Option func(*Command)

// WithRequirements declares the resources the command needs exclusively
func WithRequirements(resources ...tickfsm.ResourceID) Option {
	return func(c *Command) {
		c.requirements = append(c.requirements, resources...)
	}
}

// WithInitialize sets the hook run when the command is started
func WithInitialize(fn func()) Option {
	return func(c *Command) {
		c.initialize = fn
	}
}

// WithExecute sets the hook run once per tick while the command is scheduled
func WithExecute(fn func()) Option {
	return func(c *Command) {
		c.execute = fn
	}
}

// WithIsFinished sets the completion check evaluated after each execute
func WithIsFinished(fn func() bool) Option {
	return func(c *Command) {
		c.isFinished = fn
	}
}

// WithEnd sets the hook run when the command finishes or is interrupted
func WithEnd(fn func(interrupted bool)) Option {
	return func(c *Command) {
		c.end = fn
	}
}

// New creates a command. Without WithIsFinished it runs until cancelled.
func New(name string, opts ...Option) *Command {
	c := &Command{name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Instant creates a one-shot command: fn runs when the command is started and
// the command retires on the next scheduler run
func Instant(name string, fn func(), resources ...tickfsm.ResourceID) *Command {
	return New(name,
		WithRequirements(resources...),
		WithInitialize(fn),
		WithIsFinished(func() bool { return true }),
	)
}

// Run creates a command that calls fn every tick until cancelled
func Run(name string, fn func(), resources ...tickfsm.ResourceID) *Command {
	return New(name,
		WithRequirements(resources...),
		WithExecute(fn),
	)
}

// StartEnd creates a command that calls start when started and stop when it ends
func StartEnd(name string, start, stop func(), resources ...tickfsm.ResourceID) *Command {
	return New(name,
		WithRequirements(resources...),
		WithInitialize(start),
		WithEnd(func(bool) { stop() }),
	)
}

func (c *Command) String() string {
	return c.name
}

// Requirements returns the resources the command needs
func (c *Command) Requirements() []tickfsm.ResourceID {
	out := make([]tickfsm.ResourceID, len(c.requirements))
	copy(out, c.requirements)
	return out
}

func (c *Command) runInitialize() {
	if c.initialize != nil {
		c.initialize()
	}
}

func (c *Command) runExecute() {
	if c.execute != nil {
		c.execute()
	}
}

func (c *Command) finished() bool {
	if c.isFinished == nil {
		return false
	}
	return c.isFinished()
}

func (c *Command) runEnd(interrupted bool) {
	if c.end != nil {
		c.end(interrupted)
	}
}
