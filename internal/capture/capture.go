// Package capture ties the monitor and scheduler to the screen-grab
// primitive and the privacy filter, producing filtered frames on schedule.
package capture

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/privacy"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/schedule"
)

// Grabber is the external capture primitive. A nil media return means "no
// sample this cycle", not an error needing retry.
type Grabber interface {
	RequestPermission() bool
	CaptureScreen(ctx context.Context) (*event.CapturedMedia, error)
	ListVisibleWindows(ctx context.Context) ([]event.WindowInfo, error)
}

// Sink receives filtered media for downstream analysis. Suppressed media
// never reaches a sink.
type Sink interface {
	Submit(ctx context.Context, media event.FilteredMedia, snap event.MonitorSnapshot) error
}

// ActivityView is the slice of the monitor the orchestrator needs.
type ActivityView interface {
	Snapshot() event.MonitorSnapshot
	WindowJustSwitched() bool
	Updates() <-chan struct{}
}

// EventSaver persists capture events; optional.
type EventSaver interface {
	SaveEvent(ctx context.Context, e event.Event) (int64, error)
}

type Orchestrator struct {
	mon     ActivityView
	grabber Grabber
	sink    Sink
	cadence schedule.Cadence
	// privacyCfg is re-read on every cycle so exclusion-list hot reloads
	// take effect without restarting the loop.
	privacyCfg func() privacy.Config
	saver      EventSaver

	mu    sync.RWMutex
	state event.ActivityState

	captureNow chan struct{}
	entropy    *rand.Rand
}

func NewOrchestrator(mon ActivityView, grabber Grabber, sink Sink, cadence schedule.Cadence, privacyCfg func() privacy.Config, saver EventSaver) *Orchestrator {
	return &Orchestrator{
		mon:        mon,
		grabber:    grabber,
		sink:       sink,
		cadence:    cadence,
		privacyCfg: privacyCfg,
		saver:      saver,
		state:      event.StateActive,
		captureNow: make(chan struct{}, 1),
		entropy:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the most recently inferred activity state.
func (o *Orchestrator) State() event.ActivityState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// CaptureNow forces one capture cycle outside the schedule.
func (o *Orchestrator) CaptureNow() {
	select {
	case o.captureNow <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) Run(ctx context.Context) error {
	logrus.Info("Starting capture orchestrator.")

	if o.grabber != nil && !o.grabber.RequestPermission() {
		logrus.Warn("Capture permission not granted; cycles will yield no samples.")
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	var timerC <-chan time.Time

	reschedule := func(d time.Duration) {
		if timerC != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if d <= 0 {
			// Suspension sentinel: no capture scheduled, wait for the next
			// monitor event instead of busy-polling at zero delay.
			timerC = nil
			return
		}
		timer.Reset(d)
		timerC = timer.C
	}

	evaluate := func(force bool) {
		snap := o.mon.Snapshot()
		ns := schedule.Infer(snap.IdleSeconds, snap.ScreenLocked, o.mon.WindowJustSwitched(), o.cadence)
		o.mu.Lock()
		changed := ns != o.state
		o.state = ns
		o.mu.Unlock()
		if changed || force {
			logrus.Debugf("Activity state: %s (interval %s)", ns, schedule.IntervalFor(ns, o.cadence))
			reschedule(schedule.IntervalFor(ns, o.cadence))
		}
	}

	evaluate(true)

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Capture orchestrator stopping.")
			return ctx.Err()
		case <-o.mon.Updates():
			evaluate(false)
		case <-o.captureNow:
			o.captureOnce(ctx)
		case <-timerC:
			o.captureOnce(ctx)
			// Keep ticking at the current state's interval.
			reschedule(schedule.IntervalFor(o.State(), o.cadence))
		}
	}
}

func (o *Orchestrator) captureOnce(ctx context.Context) {
	snap := o.mon.Snapshot()
	if snap.ScreenLocked {
		logrus.Debug("Screen locked, skipping capture.")
		return
	}
	if o.grabber == nil {
		return
	}

	media, err := o.grabber.CaptureScreen(ctx)
	if err != nil || media == nil {
		// No sample this cycle; the scheduler keeps ticking.
		if err != nil {
			logrus.Debugf("Capture yielded no sample: %v", err)
		}
		return
	}

	filtered, err := privacy.Filter(*media, snap.WindowTitle, snap.AppID, o.privacyCfg())
	if err != nil {
		if errors.Is(err, privacy.ErrMediaDecode) || errors.Is(err, privacy.ErrMediaEncode) {
			logrus.Debugf("Filter abandoned capture cycle: %v", err)
		} else {
			logrus.Warnf("Filter failed: %v", err)
		}
		return
	}
	if filtered.Suppressed {
		// Suppression is never surfaced as an error; the frame is simply gone.
		logrus.Debug("Capture suppressed by privacy filter.")
		return
	}

	captureID := ulid.MustNew(ulid.Timestamp(time.Now()), o.entropy).String()

	if o.saver != nil {
		_, err := o.saver.SaveEvent(ctx, event.Event{
			Timestamp:   time.Now(),
			Type:        event.EventTypeCapture,
			AppID:       snap.AppID,
			WindowTitle: snap.WindowTitle,
			Value:       float64(filtered.SizeBytes),
			Tag:         captureID,
		})
		if err != nil {
			logrus.Warnf("Failed to save capture event: %v", err)
		}
	}

	if o.sink != nil {
		if err := o.sink.Submit(ctx, filtered, snap); err != nil {
			logrus.Warnf("Analysis sink rejected frame %s: %v", captureID, err)
		}
	}
}
