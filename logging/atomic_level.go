package logging

import "go.uber.org/atomic"

// AtomicLevel is a Level that may be read and updated concurrently.
type AtomicLevel struct {
	v atomic.Int32
}

// NewAtomicLevelAt returns an AtomicLevel initialized to l.
func NewAtomicLevelAt(l Level) *AtomicLevel {
	a := &AtomicLevel{}
	a.v.Store(int32(l))
	return a
}

// Get returns the current level.
func (a *AtomicLevel) Get() Level { return Level(a.v.Load()) }

// Set updates the current level.
func (a *AtomicLevel) Set(l Level) { a.v.Store(int32(l)) }
