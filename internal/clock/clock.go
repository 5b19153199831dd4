// Package clock provides time sources for ledger operations.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current timestamp in integer seconds.
type Clock interface {
	Now() uint64
}

// System reads wall time.
type System struct{}

// Now returns the current unix time in seconds.
func (System) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Manual is a settable clock.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual initializes a manual clock starting at now.
func NewManual(now uint64) *Manual {
	return &Manual{now: now}
}

// Now returns the current manual timestamp.
func (m *Manual) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to now, including backwards.
func (m *Manual) Set(now uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Advance moves the clock forward by seconds.
func (m *Manual) Advance(seconds uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += seconds
}
