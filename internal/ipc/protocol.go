package ipc

import "github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"

const SocketPath = "/tmp/sls.sock"

// Command represents a command sent over the socket
type Command struct {
	Name string      `json:"name"`
	Args interface{} `json:"args,omitempty"`
}

// Response represents a response sent back over the socket
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// --- Command Argument Structs ---

type GetCardsArgs struct {
	Limit int `json:"limit"`
}

// --- Command Names (Constants) ---

const (
	CmdPing           = "ping"
	CmdGetStatus      = "get_status"
	CmdGetCards       = "get_cards"
	CmdCaptureNow     = "capture_now"
	CmdTestConnection = "test_connection"
)

// --- Status Response Data ---

type StatusData struct {
	ActivityState      event.ActivityState `json:"activity_state"`
	AppID              string              `json:"app_id"`
	WindowTitle        string              `json:"window_title"`
	IdleSeconds        float64             `json:"idle_seconds"`
	ScreenLocked       bool                `json:"screen_locked"`
	WindowJustSwitched bool                `json:"window_just_switched"`
	IdleSourceOK       bool                `json:"idle_source_ok"`
	Provider           string              `json:"provider"`
	CardsGenerated     int                 `json:"cards_generated"`
}
