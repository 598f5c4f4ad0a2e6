// Package mode tracks the robot operating mode and turns mode changes into
// phase signals machines can restart on.
package mode

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Mode is the robot operating mode
type Mode int32

const (
	Disabled Mode = iota
	Autonomous
	Teleop
	Test
)

var names = [...]string{
	Disabled:   "disabled",
	Autonomous: "autonomous",
	Teleop:     "teleop",
	Test:       "test",
}

// All returns every mode
func All() []Mode {
	return []Mode{Disabled, Autonomous, Teleop, Test}
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(names) {
		return "unknown"
	}
	return names[m]
}

// Parse converts a mode name, case-insensitively
func Parse(s string) (Mode, error) {
	for _, m := range All() {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return Disabled, fmt.Errorf("unknown mode %q", s)
}

// Switch holds the requested mode. It is safe for concurrent use; the
// control loop reads it while other goroutines set it.
type Switch struct {
	v atomic.Int32
}

// Set requests a mode
func (s *Switch) Set(m Mode) {
	s.v.Store(int32(m))
}

// Get returns the requested mode
func (s *Switch) Get() Mode {
	return Mode(s.v.Load())
}

// Latch is a boolean operator input shared between goroutines
type Latch struct {
	v atomic.Bool
}

// Set stores the latch value
func (l *Latch) Set(v bool) {
	l.v.Store(v)
}

// Get returns the latch value
func (l *Latch) Get() bool {
	return l.v.Load()
}

// Toggle flips the latch and returns the new value
func (l *Latch) Toggle() bool {
	for {
		old := l.v.Load()
		if l.v.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
