// Package schedule holds the activity-state inference and the cadence
// mapping that decides when the next capture happens. Both are pure
// functions over the monitor's latest observation; the scheduling loop
// itself lives in the capture orchestrator.
package schedule

import (
	"time"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

// Cadence maps activity states to capture intervals.
type Cadence struct {
	ActiveInterval    time.Duration
	IdleInterval      time.Duration
	DeepIdleInterval  time.Duration
	IdleThreshold     time.Duration
	DeepIdleThreshold time.Duration
	// SwitchDelay is the short settle delay before capturing after a window
	// switch, letting the new window finish painting.
	SwitchDelay time.Duration
}

// Infer derives the activity state from the raw monitor signals.
// Evaluation order matters: a lock always wins, even mid-switch; a fresh
// switch forces a capture even while otherwise idle.
func Infer(idleSeconds float64, locked, switched bool, c Cadence) event.ActivityState {
	idle := time.Duration(idleSeconds * float64(time.Second))
	switch {
	case locked:
		return event.StateScreenLocked
	case switched:
		return event.StateWindowSwitched
	case idle >= c.DeepIdleThreshold:
		return event.StateDeepIdle
	case idle >= c.IdleThreshold:
		return event.StateIdle
	default:
		return event.StateActive
	}
}

// IntervalFor returns the capture interval for a state. Zero is the
// suspension sentinel: no capture is scheduled, the loop waits for the
// next monitor event instead.
func IntervalFor(s event.ActivityState, c Cadence) time.Duration {
	switch s {
	case event.StateScreenLocked:
		return 0
	case event.StateWindowSwitched:
		return c.SwitchDelay
	case event.StateDeepIdle:
		return c.DeepIdleInterval
	case event.StateIdle:
		return c.IdleInterval
	default:
		return c.ActiveInterval
	}
}
