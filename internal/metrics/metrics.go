// Package metrics holds the process-wide Prometheus metrics of the control
// loop and command scheduler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "tickfsm"

	// End reasons.
	ReasonFinished    = "finished"
	ReasonInterrupted = "interrupted"
)

var (
	// Scheduler.
	scheduledCommands = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "scheduled_commands",
			Help:      "Number of commands currently scheduled",
		},
	)

	commandEnds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "command_ends_total",
			Help:      "Commands that stopped running, by reason",
		},
		[]string{"command", "reason"},
	)

	// Loop.
	tickDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "tick_duration_milliseconds",
			Help:      "Time taken by one control loop tick (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.01,
			},
		},
		[]string{"loop"},
	)

	tickOverruns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "overruns_total",
			Help:      "Ticks that took longer than the loop period",
		},
		[]string{"loop"},
	)

	tickErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "errors_total",
			Help:      "Ticks that returned an error",
		},
		[]string{"loop"},
	)

	// Machines.
	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "machine",
			Name:      "transitions_total",
			Help:      "State changes taken by a machine",
		},
		[]string{"machine", "from", "to"},
	)
)

// SetScheduledCommands records the current number of scheduled commands
func SetScheduledCommands(n int) {
	scheduledCommands.Set(float64(n))
}

// IncCommandEnd counts a command leaving the scheduler
func IncCommandEnd(command string, interrupted bool) {
	reason := ReasonFinished
	if interrupted {
		reason = ReasonInterrupted
	}
	commandEnds.WithLabelValues(command, reason).Inc()
}

// ObserveTick records the duration of one loop tick
func ObserveTick(loop string, d time.Duration) {
	tickDuration.WithLabelValues(loop).Observe(float64(d.Microseconds()) / 1000)
}

// IncOverrun counts a tick that exceeded the loop period
func IncOverrun(loop string) {
	tickOverruns.WithLabelValues(loop).Inc()
}

// IncTickError counts a tick that returned an error
func IncTickError(loop string) {
	tickErrors.WithLabelValues(loop).Inc()
}

// IncTransition counts a state change
func IncTransition(machine, from, to string) {
	transitions.WithLabelValues(machine, from, to).Inc()
}

// CommandEnds exposes the end counter for tests
func CommandEnds() *prometheus.CounterVec {
	return commandEnds
}

// TickOverruns exposes the overrun counter for tests
func TickOverruns() *prometheus.CounterVec {
	return tickOverruns
}

// Transitions exposes the transition counter for tests
func Transitions() *prometheus.CounterVec {
	return transitions
}
