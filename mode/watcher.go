package mode

import (
	"context"
	"fmt"

	"github.com/librescoot/tickfsm"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const eventPrefix = "to_"

// Watcher samples a mode source once per tick and notifies subscribers when a
// mode is entered. Transitions are tracked by a looplab/fsm instance.
type Watcher struct {
	source func() Mode
	fsm    *fsm.FSM
	subs   map[Mode][]func()
	logger *zap.Logger
}

// WatcherOption is a functional option for configuring a Watcher
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher
func WithLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher that starts in Disabled
func NewWatcher(source func() Mode, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source: source,
		subs:   make(map[Mode][]func()),
		logger: tickfsm.Logger,
	}
	for _, opt := range opts {
		opt(w)
	}

	all := make([]string, 0, len(names))
	for _, m := range All() {
		all = append(all, m.String())
	}
	events := make(fsm.Events, 0, len(names))
	for _, m := range All() {
		events = append(events, fsm.EventDesc{Name: eventPrefix + m.String(), Src: all, Dst: m.String()})
	}

	w.fsm = fsm.NewFSM(
		Disabled.String(),
		events,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m, err := Parse(e.Dst)
				if err != nil {
					return
				}
				w.logger.Info("mode changed", zap.String("from", e.Src), zap.String("to", e.Dst))
				for _, fn := range w.subs[m] {
					fn()
				}
			},
		},
	)
	return w
}

// Current returns the last mode the watcher observed
func (w *Watcher) Current() Mode {
	m, err := Parse(w.fsm.Current())
	if err != nil {
		return Disabled
	}
	return m
}

// Entering returns a signal that fires each time m is entered
func (w *Watcher) Entering(m Mode) tickfsm.PhaseSignal {
	return signal{w: w, mode: m}
}

// PreTick samples the mode source and fires enter notifications on change
func (w *Watcher) PreTick() error {
	next := w.source()
	if next == w.Current() {
		return nil
	}
	if err := w.fsm.Event(context.Background(), eventPrefix+next.String()); err != nil {
		return fmt.Errorf("mode %s: %w", next, err)
	}
	return nil
}

// PostTick does nothing; mode changes are observed before actions run
func (w *Watcher) PostTick() error {
	return nil
}

type signal struct {
	w    *Watcher
	mode Mode
}

func (s signal) Subscribe(fn func()) {
	s.w.subs[s.mode] = append(s.w.subs[s.mode], fn)
}
