package event

import "time"

type EventType string

const (
	EventTypeWindowChange EventType = "window_change"
	EventTypeCapture      EventType = "capture"
	EventTypeAnalysis     EventType = "analysis"
	EventTypeAppStart     EventType = "app_start"
	EventTypeAppStop      EventType = "app_stop"
)

// Event structure to store in DB
type Event struct {
	ID          int64     `db:"id"`
	Timestamp   time.Time `db:"timestamp"`
	Type        EventType `db:"type"`
	AppID       string    `db:"app_id"`       // For window_change / capture
	WindowTitle string    `db:"window_title"` // For window_change / capture
	Value       float64   `db:"value"`        // Generic value (e.g., filtered size in bytes)
	Tag         string    `db:"tag"`          // e.g., capture ULID, rule category
	Notes       string    `db:"notes"`
}

// ActivityState is the scheduler's inferred user-engagement mode. Derived
// from the latest MonitorSnapshot on every evaluation, never stored.
type ActivityState string

const (
	StateActive         ActivityState = "active"
	StateIdle           ActivityState = "idle"
	StateDeepIdle       ActivityState = "deep_idle"
	StateScreenLocked   ActivityState = "screen_locked"
	StateWindowSwitched ActivityState = "window_switched"
)

// MonitorSnapshot is an immutable observation of the desktop session.
// A newer snapshot supersedes an older one; snapshots are never mutated.
type MonitorSnapshot struct {
	AppID        string
	WindowTitle  string
	PID          int
	IdleSeconds  float64
	ScreenLocked bool
	// IdleSourceOK is false when the OS idle-time source is unavailable and
	// IdleSeconds has been failed open to zero.
	IdleSourceOK bool
	Taken        time.Time
}

// SameWindow reports whether two snapshots describe the same foreground
// window. Equality on (AppID, WindowTitle) gates window-change detection.
func (s MonitorSnapshot) SameWindow(o MonitorSnapshot) bool {
	return s.AppID == o.AppID && s.WindowTitle == o.WindowTitle
}

// CapturedMedia is a raw frame or clip straight from the capture primitive.
// It must pass through the privacy filter before crossing any other boundary.
type CapturedMedia struct {
	Data   []byte
	MIME   string // "image/jpeg", "image/png" or "video/mp4"
	Width  int
	Height int
	Start  time.Time
	End    time.Time
}

// FilteredMedia is a capture that has passed privacy suppression and
// compression. When Suppressed is true, Data is always nil: suppressed
// media is never retained, logged or transmitted.
type FilteredMedia struct {
	Data       []byte
	MIME       string
	SizeBytes  int
	Width      int
	Height     int
	Suppressed bool
	Start      time.Time
	End        time.Time
}

// WindowInfo describes one visible window as reported by the capture
// primitive.
type WindowInfo struct {
	ID    uint32 `json:"id"`
	AppID string `json:"app_id"`
	Title string `json:"title"`
}

// TranscriptionSegment is one timed observation from phase-1 analysis.
type TranscriptionSegment struct {
	StartOffset string `json:"startOffset"`
	EndOffset   string `json:"endOffset"`
	Description string `json:"description"`
}

// ActivityCard is a structured, time-bounded summary of user activity
// produced from a transcript by phase-2 analysis.
type ActivityCard struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Category  string    `json:"category"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
