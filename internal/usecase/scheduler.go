package usecase

import "time"

// Scheduler runs callbacks after a delay. The returned function cancels the
// callback and reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func() bool)
}

type realScheduler struct{}

// NewRealScheduler schedules callbacks on the runtime timer heap.
func NewRealScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	timer := time.AfterFunc(d, f)
	return timer.Stop
}
