// Package telemetry provides sinks for the state names machines publish each
// tick.
package telemetry

import (
	"sync"

	"github.com/librescoot/tickfsm"
	"go.uber.org/zap"
)

// Multi fans a published value out to several publishers
type Multi []tickfsm.Publisher

// Publish forwards to every publisher in order
func (m Multi) Publish(key, value string) {
	for _, p := range m {
		p.Publish(key, value)
	}
}

// LogPublisher logs a value only when it differs from the last one seen for
// its key
type LogPublisher struct {
	logger *zap.Logger

	mu   sync.Mutex
	last map[string]string
}

// NewLogPublisher creates a publisher writing to logger
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{
		logger: logger,
		last:   make(map[string]string),
	}
}

// Publish logs value if it changed
func (p *LogPublisher) Publish(key, value string) {
	p.mu.Lock()
	prev, seen := p.last[key]
	p.last[key] = value
	p.mu.Unlock()

	if seen && prev == value {
		return
	}
	p.logger.Info("state published", zap.String("key", key), zap.String("from", prev), zap.String("to", value))
}
