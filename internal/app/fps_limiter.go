package app

import (
	"time"

	"mini-gfx/internal/config"
)

// FPSLimiter paces frames to config.GetFPSLimit.
type FPSLimiter struct {
	next time.Time
	// limit overrides the configured cap when non-nil.
	limit func() int
}

func NewFPSLimiter() *FPSLimiter {
	return &FPSLimiter{limit: config.GetFPSLimit}
}

// Wait blocks until the next frame is due. It sleeps most of the way and
// spins for the last few hundred microseconds.
func (f *FPSLimiter) Wait() {
	limit := f.limit()
	if limit <= 0 {
		f.next = time.Time{}
		return
	}

	target := time.Second / time.Duration(limit)
	if f.next.IsZero() {
		f.next = time.Now().Add(target)
	} else {
		f.next = f.next.Add(target)
	}

	for {
		remaining := time.Until(f.next)
		if remaining <= 0 {
			break
		}
		if remaining > 200*time.Microsecond {
			time.Sleep(remaining - 200*time.Microsecond)
		}
		if time.Until(f.next) <= 0 {
			break
		}
	}

	// A hitch longer than a frame resyncs instead of rushing to catch up.
	if late := -time.Until(f.next); late > target {
		f.next = time.Now().Add(target)
	}
}
