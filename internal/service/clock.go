package service

import "time"

// Clock abstracts wall time so sweeps can be evaluated at fixed instants.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the UTC wall clock.
func SystemClock() Clock { return systemClock{} }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (f *FixedClock) Now() time.Time { return f.At }

// Advance moves the fixed clock forward.
func (f *FixedClock) Advance(d time.Duration) { f.At = f.At.Add(d) }
