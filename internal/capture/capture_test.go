package capture

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/privacy"
	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/schedule"
)

type fakeView struct {
	mu       sync.Mutex
	snap     event.MonitorSnapshot
	switched bool
	updates  chan struct{}
}

func newFakeView() *fakeView {
	return &fakeView{updates: make(chan struct{}, 1)}
}

func (v *fakeView) set(snap event.MonitorSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap = snap
}

func (v *fakeView) Snapshot() event.MonitorSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

func (v *fakeView) WindowJustSwitched() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.switched
}

func (v *fakeView) Updates() <-chan struct{} { return v.updates }

type fakeGrabber struct {
	media    *event.CapturedMedia
	captures int
}

func (g *fakeGrabber) RequestPermission() bool { return true }

func (g *fakeGrabber) CaptureScreen(ctx context.Context) (*event.CapturedMedia, error) {
	g.captures++
	return g.media, nil
}

func (g *fakeGrabber) ListVisibleWindows(ctx context.Context) ([]event.WindowInfo, error) {
	return nil, nil
}

type fakeSink struct {
	mu     sync.Mutex
	frames []event.FilteredMedia
}

func (s *fakeSink) Submit(ctx context.Context, media event.FilteredMedia, snap event.MonitorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, media)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type fakeSaver struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *fakeSaver) SaveEvent(ctx context.Context, e event.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return int64(len(s.events)), nil
}

func pngMedia(t *testing.T, w, h int) *event.CapturedMedia {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	now := time.Now()
	return &event.CapturedMedia{Data: buf.Bytes(), MIME: "image/png", Width: w, Height: h, Start: now.Add(-time.Second), End: now}
}

func testCadence() schedule.Cadence {
	return schedule.Cadence{
		ActiveInterval:    60 * time.Second,
		IdleInterval:      120 * time.Second,
		DeepIdleInterval:  300 * time.Second,
		IdleThreshold:     120 * time.Second,
		DeepIdleThreshold: 300 * time.Second,
		SwitchDelay:       time.Second,
	}
}

func privacyCfg() func() privacy.Config {
	return func() privacy.Config {
		return privacy.Config{
			TitleKeywords: []string{"password"},
			MaxWidth:      1280,
			JPEGQuality:   60,
		}
	}
}

func TestCaptureSubmitsFiltered(t *testing.T) {
	view := newFakeView()
	view.set(event.MonitorSnapshot{AppID: "code", WindowTitle: "main.go"})
	grabber := &fakeGrabber{media: pngMedia(t, 100, 80)}
	sink := &fakeSink{}
	saver := &fakeSaver{}

	o := NewOrchestrator(view, grabber, sink, testCadence(), privacyCfg(), saver)
	o.captureOnce(context.Background())

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "image/jpeg", sink.frames[0].MIME)
	assert.False(t, sink.frames[0].Suppressed)

	require.Len(t, saver.events, 1)
	assert.Equal(t, event.EventTypeCapture, saver.events[0].Type)
	assert.Equal(t, "code", saver.events[0].AppID)
	assert.NotEmpty(t, saver.events[0].Tag, "capture event carries the frame's ULID")
	assert.Equal(t, float64(sink.frames[0].SizeBytes), saver.events[0].Value)
}

func TestCaptureSkippedWhileLocked(t *testing.T) {
	view := newFakeView()
	view.set(event.MonitorSnapshot{AppID: "code", ScreenLocked: true})
	grabber := &fakeGrabber{media: pngMedia(t, 100, 80)}
	sink := &fakeSink{}

	o := NewOrchestrator(view, grabber, sink, testCadence(), privacyCfg(), nil)
	o.captureOnce(context.Background())

	assert.Zero(t, grabber.captures, "locked screen must not be grabbed at all")
	assert.Zero(t, sink.count())
}

func TestSuppressedFrameNeverReachesSink(t *testing.T) {
	view := newFakeView()
	view.set(event.MonitorSnapshot{AppID: "firefox", WindowTitle: "enter password"})
	grabber := &fakeGrabber{media: pngMedia(t, 100, 80)}
	sink := &fakeSink{}
	saver := &fakeSaver{}

	o := NewOrchestrator(view, grabber, sink, testCadence(), privacyCfg(), saver)
	o.captureOnce(context.Background())

	assert.Zero(t, sink.count())
	assert.Empty(t, saver.events, "suppressed frames leave no capture event")
}

func TestNilMediaIsNoSample(t *testing.T) {
	view := newFakeView()
	view.set(event.MonitorSnapshot{AppID: "code"})
	grabber := &fakeGrabber{media: nil}
	sink := &fakeSink{}

	o := NewOrchestrator(view, grabber, sink, testCadence(), privacyCfg(), nil)
	o.captureOnce(context.Background())

	assert.Equal(t, 1, grabber.captures)
	assert.Zero(t, sink.count())
}

func TestCaptureNowCoalesces(t *testing.T) {
	view := newFakeView()
	o := NewOrchestrator(view, nil, nil, testCadence(), privacyCfg(), nil)

	// Multiple requests collapse into one pending trigger.
	o.CaptureNow()
	o.CaptureNow()
	o.CaptureNow()

	assert.Len(t, o.captureNow, 1)
}

func TestStateTracksMonitor(t *testing.T) {
	view := newFakeView()
	view.set(event.MonitorSnapshot{AppID: "code", IdleSeconds: 400, IdleSourceOK: true})
	o := NewOrchestrator(view, nil, nil, testCadence(), privacyCfg(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()

	view.updates <- struct{}{}
	assert.Eventually(t, func() bool {
		return o.State() == event.StateDeepIdle
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
