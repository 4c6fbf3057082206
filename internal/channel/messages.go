package channel

import (
	"encoding/json"
	"time"
)

// Message types exchanged with the desktop server.
const (
	TypeHardwareUpdate  = "hardware_update"
	TypeRequestData     = "request_data"
	TypeSetFPSSmoothing = "set_fps_smoothing"
)

// Envelope wraps every message on the socket.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SetFPSSmoothingMessage is the payload of a set_fps_smoothing request.
type SetFPSSmoothingMessage struct {
	Enabled bool `json:"enabled"`
}

// EventType enumerates channel lifecycle and data events.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventSnapshot
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Event is delivered to the consumer of a Client.
type Event struct {
	Type EventType
	// Payload is the raw hardware_update body for EventSnapshot.
	Payload json.RawMessage
	// Err is the reason for EventDisconnected, if known.
	Err error
	At  time.Time
}
