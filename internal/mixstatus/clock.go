package mixstatus

import "time"

// Timer abstracts the subset of *time.Timer the processor needs, so tests
// can substitute a virtual clock instead of waiting out real seconds-scale
// thresholds (spec.md §8 scenarios S3/S4 run at BPM-derived intervals up to
// 128 seconds).
type Timer interface {
	Stop() bool
}

// Clock abstracts time for the processor. realClock is used in production;
// tests supply a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
