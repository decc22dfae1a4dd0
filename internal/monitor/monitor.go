// Package monitor maintains the freshest observation of the desktop session:
// foreground window identity, input idle time and screen-lock state. A single
// goroutine owns all state; OS sources feed it through a poll call and a push
// inbox, so notification threads never mutate anything directly.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

type SourceEventKind int

const (
	SourceWindowChanged SourceEventKind = iota
	SourceScreenLocked
	SourceScreenUnlocked
)

// SourceEvent is a push notification from an OS-level source.
type SourceEvent struct {
	Kind  SourceEventKind
	AppID string
	Title string
	PID   int
}

// Source provides the raw OS signals. Poll is called on the monitor's tick;
// Events delivers push notifications between polls.
type Source interface {
	Poll(ctx context.Context) (event.MonitorSnapshot, error)
	Events() <-chan SourceEvent
	Close() error
}

type Monitor struct {
	src          Source
	pollInterval time.Duration
	debounce     time.Duration

	mu       sync.RWMutex
	snap     event.MonitorSnapshot
	switched bool
	// switchGen invalidates pending debounce resets: arming a new debounce
	// bumps the generation, so an earlier AfterFunc finds a stale generation
	// and leaves the flag alone.
	switchGen uint64

	updates chan struct{}
	// eventsOut receives window-change events for persistence; optional.
	eventsOut  chan<- event.Event
	warnedIdle bool
}

func New(src Source, pollInterval, debounce time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	return &Monitor{
		src:          src,
		pollInterval: pollInterval,
		debounce:     debounce,
		updates:      make(chan struct{}, 1),
	}
}

// SetEventOutput directs window-change events to the given channel. Must be
// called before Run.
func (m *Monitor) SetEventOutput(ch chan<- event.Event) {
	m.eventsOut = ch
}

// Updates signals that the monitor's state changed. The channel coalesces:
// a slow consumer sees at least one signal for any burst of changes.
func (m *Monitor) Updates() <-chan struct{} {
	return m.updates
}

func (m *Monitor) Run(ctx context.Context) error {
	logrus.Infof("Starting monitor (poll: %s, debounce: %s)", m.pollInterval, m.debounce)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Monitor stopping due to context cancellation.")
			return ctx.Err()
		case ev, ok := <-m.src.Events():
			if !ok {
				logrus.Warn("Monitor source closed its event channel.")
				return nil
			}
			m.applySourceEvent(ev)
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context) {
	snap, err := m.src.Poll(ctx)
	if err != nil {
		logrus.Debugf("Monitor poll failed: %v", err)
		return
	}
	if !snap.IdleSourceOK {
		// Fail open: report zero idle rather than over-sampling into a
		// falsely idle state. Warn once so the degraded mode is visible.
		snap.IdleSeconds = 0
		if !m.warnedIdle {
			logrus.Warn("Idle-time source unavailable; treating session as active.")
			m.warnedIdle = true
		}
	}
	if snap.Taken.IsZero() {
		snap.Taken = time.Now()
	}

	m.mu.Lock()
	prev := m.snap
	m.snap = snap
	m.mu.Unlock()

	if prev.AppID != "" && snap.AppID != prev.AppID {
		m.armSwitch()
		m.emitWindowChange(prev, snap)
	}
	m.notify()
}

func (m *Monitor) applySourceEvent(ev SourceEvent) {
	m.mu.Lock()
	prev := m.snap
	switch ev.Kind {
	case SourceScreenLocked:
		m.snap.ScreenLocked = true
		m.snap.Taken = time.Now()
	case SourceScreenUnlocked:
		m.snap.ScreenLocked = false
		m.snap.Taken = time.Now()
	case SourceWindowChanged:
		m.snap.AppID = ev.AppID
		m.snap.WindowTitle = ev.Title
		m.snap.PID = ev.PID
		m.snap.Taken = time.Now()
	}
	snap := m.snap
	m.mu.Unlock()

	if ev.Kind == SourceWindowChanged && prev.AppID != "" && ev.AppID != prev.AppID {
		m.armSwitch()
		m.emitWindowChange(prev, snap)
	}
	m.notify()
}

// armSwitch sets the transient window-just-switched flag and arms its reset.
// A later switch supersedes an earlier pending reset, so only the most
// recent switch governs the flag's lifetime.
func (m *Monitor) armSwitch() {
	m.mu.Lock()
	m.switched = true
	m.switchGen++
	gen := m.switchGen
	m.mu.Unlock()

	time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		if m.switchGen == gen {
			m.switched = false
		}
		stale := m.switchGen != gen
		m.mu.Unlock()
		if !stale {
			m.notify()
		}
	})
}

func (m *Monitor) emitWindowChange(prev, cur event.MonitorSnapshot) {
	logrus.Debugf("Window changed: app='%s', title='%s'", cur.AppID, Truncate(cur.WindowTitle, 80))
	if m.eventsOut == nil {
		return
	}
	e := event.Event{
		Timestamp:   time.Now(),
		Type:        event.EventTypeWindowChange,
		AppID:       cur.AppID,
		WindowTitle: cur.WindowTitle,
		Notes:       "previous: " + prev.AppID,
	}
	select {
	case m.eventsOut <- e:
	default:
		logrus.Warn("Event channel full, dropping window-change event.")
	}
}

func (m *Monitor) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns the freshest observation. Callers tolerate torn reads
// across the independent accessors; no cross-field atomicity is promised
// beyond a single Snapshot call.
func (m *Monitor) Snapshot() event.MonitorSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

func (m *Monitor) IdleSeconds() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.IdleSeconds
}

func (m *Monitor) Locked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.ScreenLocked
}

func (m *Monitor) WindowJustSwitched() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.switched
}

func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
