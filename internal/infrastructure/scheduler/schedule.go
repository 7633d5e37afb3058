package scheduler

import (
	"fmt"
	"time"
)

// Every runs a job at a fixed interval. When Align is set, runs land on
// multiples of the interval (for example :00, :05, :10 for five minutes).
type Every struct {
	Interval time.Duration
	Align    bool
}

// NewIntervalSchedule returns an unaligned fixed-interval schedule.
// Intervals below one second are raised to one second.
func NewIntervalSchedule(interval time.Duration) *Every {
	if interval < time.Second {
		interval = time.Second
	}
	return &Every{Interval: interval}
}

// Next returns the first run strictly after t.
func (e *Every) Next(t time.Time) time.Time {
	if !e.Align {
		return t.Add(e.Interval)
	}
	return t.Truncate(e.Interval).Add(e.Interval)
}

func (e *Every) String() string {
	if e.Align {
		return fmt.Sprintf("@every %s aligned", e.Interval)
	}
	return fmt.Sprintf("@every %s", e.Interval)
}
