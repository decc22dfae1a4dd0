package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

func testCadence() Cadence {
	return Cadence{
		ActiveInterval:    60 * time.Second,
		IdleInterval:      120 * time.Second,
		DeepIdleInterval:  300 * time.Second,
		IdleThreshold:     120 * time.Second,
		DeepIdleThreshold: 300 * time.Second,
		SwitchDelay:       time.Second,
	}
}

func TestInfer(t *testing.T) {
	c := testCadence()

	tests := []struct {
		name     string
		idle     float64
		locked   bool
		switched bool
		want     event.ActivityState
	}{
		{"active below idle threshold", 10, false, false, event.StateActive},
		{"idle at threshold", 120, false, false, event.StateIdle},
		{"idle between thresholds", 200, false, false, event.StateIdle},
		{"deep idle at threshold", 300, false, false, event.StateDeepIdle},
		{"deep idle beyond threshold", 400, false, false, event.StateDeepIdle},
		{"lock wins over deep idle", 400, true, false, event.StateScreenLocked},
		{"lock wins over switch", 0, true, true, event.StateScreenLocked},
		{"switch wins over idle", 200, false, true, event.StateWindowSwitched},
		{"switch wins over deep idle", 500, false, true, event.StateWindowSwitched},
		{"switch while active", 0, false, true, event.StateWindowSwitched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Infer(tt.idle, tt.locked, tt.switched, c)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntervalFor(t *testing.T) {
	c := testCadence()

	assert.Equal(t, 60*time.Second, IntervalFor(event.StateActive, c))
	assert.Equal(t, 120*time.Second, IntervalFor(event.StateIdle, c))
	assert.Equal(t, 300*time.Second, IntervalFor(event.StateDeepIdle, c))
	assert.Equal(t, time.Second, IntervalFor(event.StateWindowSwitched, c))

	// Locked means suspended, not fast-polling.
	assert.Equal(t, time.Duration(0), IntervalFor(event.StateScreenLocked, c))
}

func TestSwitchDelayIndependentOfPriorState(t *testing.T) {
	c := testCadence()

	// A switch during deep idle still yields the settle delay, not the
	// deep-idle interval.
	s := Infer(500, false, true, c)
	assert.Equal(t, event.StateWindowSwitched, s)
	assert.Equal(t, c.SwitchDelay, IntervalFor(s, c))
}
