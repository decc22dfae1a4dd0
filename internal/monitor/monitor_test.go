package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

type fakeSource struct {
	mu     sync.Mutex
	snap   event.MonitorSnapshot
	events chan SourceEvent
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan SourceEvent, 8)}
}

func (f *fakeSource) set(snap event.MonitorSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap.IdleSourceOK = true
	f.snap = snap
}

func (f *fakeSource) Poll(ctx context.Context) (event.MonitorSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func (f *fakeSource) Events() <-chan SourceEvent { return f.events }
func (f *fakeSource) Close() error               { return nil }

func TestSwitchFlagArmsAndClears(t *testing.T) {
	src := newFakeSource()
	m := New(src, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	src.set(event.MonitorSnapshot{AppID: "code", WindowTitle: "main.go"})
	m.pollOnce(ctx)
	assert.False(t, m.WindowJustSwitched(), "first observation is not a switch")

	src.set(event.MonitorSnapshot{AppID: "firefox", WindowTitle: "docs"})
	m.pollOnce(ctx)
	assert.True(t, m.WindowJustSwitched())

	assert.Eventually(t, func() bool {
		return !m.WindowJustSwitched()
	}, time.Second, 10*time.Millisecond, "flag should clear after debounce")
}

func TestTitleOnlyChangeDoesNotArm(t *testing.T) {
	src := newFakeSource()
	m := New(src, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	src.set(event.MonitorSnapshot{AppID: "code", WindowTitle: "main.go"})
	m.pollOnce(ctx)

	src.set(event.MonitorSnapshot{AppID: "code", WindowTitle: "other.go"})
	m.pollOnce(ctx)
	assert.False(t, m.WindowJustSwitched())
}

func TestRetriggerSupersedesPendingReset(t *testing.T) {
	src := newFakeSource()
	m := New(src, time.Second, 60*time.Millisecond)
	ctx := context.Background()

	src.set(event.MonitorSnapshot{AppID: "a"})
	m.pollOnce(ctx)
	src.set(event.MonitorSnapshot{AppID: "b"})
	m.pollOnce(ctx)

	// Switch again before the first debounce expires.
	time.Sleep(30 * time.Millisecond)
	src.set(event.MonitorSnapshot{AppID: "c"})
	m.pollOnce(ctx)

	// Past the first debounce deadline, the second switch still holds the flag.
	time.Sleep(45 * time.Millisecond)
	assert.True(t, m.WindowJustSwitched())

	assert.Eventually(t, func() bool {
		return !m.WindowJustSwitched()
	}, time.Second, 10*time.Millisecond)
}

func TestLockEventsApplied(t *testing.T) {
	src := newFakeSource()
	m := New(src, time.Second, 50*time.Millisecond)

	m.applySourceEvent(SourceEvent{Kind: SourceScreenLocked})
	assert.True(t, m.Locked())

	m.applySourceEvent(SourceEvent{Kind: SourceScreenUnlocked})
	assert.False(t, m.Locked())
}

func TestPushWindowChangeArmsSwitch(t *testing.T) {
	src := newFakeSource()
	m := New(src, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	src.set(event.MonitorSnapshot{AppID: "code"})
	m.pollOnce(ctx)

	m.applySourceEvent(SourceEvent{Kind: SourceWindowChanged, AppID: "firefox", Title: "docs"})
	assert.True(t, m.WindowJustSwitched())
	assert.Equal(t, "firefox", m.Snapshot().AppID)
	assert.Equal(t, "docs", m.Snapshot().WindowTitle)
}

func TestIdleFailOpen(t *testing.T) {
	src := newFakeSource()
	m := New(src, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	src.mu.Lock()
	src.snap = event.MonitorSnapshot{AppID: "code", IdleSeconds: 900, IdleSourceOK: false}
	src.mu.Unlock()

	m.pollOnce(ctx)
	assert.Zero(t, m.IdleSeconds(), "unavailable idle source must report zero idle")
}

func TestWindowChangeEmitsEvent(t *testing.T) {
	src := newFakeSource()
	m := New(src, time.Second, 50*time.Millisecond)
	out := make(chan event.Event, 4)
	m.SetEventOutput(out)
	ctx := context.Background()

	src.set(event.MonitorSnapshot{AppID: "code", WindowTitle: "main.go"})
	m.pollOnce(ctx)
	src.set(event.MonitorSnapshot{AppID: "firefox", WindowTitle: "docs"})
	m.pollOnce(ctx)

	select {
	case e := <-out:
		assert.Equal(t, event.EventTypeWindowChange, e.Type)
		assert.Equal(t, "firefox", e.AppID)
	default:
		t.Fatal("expected a window-change event")
	}
}

func TestUpdatesCoalesce(t *testing.T) {
	src := newFakeSource()
	m := New(src, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		src.set(event.MonitorSnapshot{AppID: "code"})
		m.pollOnce(ctx)
	}

	// A burst of changes yields at least one signal, never a blocked sender.
	select {
	case <-m.Updates():
	default:
		t.Fatal("expected at least one update signal")
	}
	select {
	case <-m.Updates():
		t.Fatal("updates channel should have coalesced to a single signal")
	default:
	}
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 10))
	require.Equal(t, "exactly10!", Truncate("exactly10!", 10))
	require.Equal(t, "this is...", Truncate("this is too long", 10))
	require.Equal(t, "ab", Truncate("abcdef", 2))
}
