package session

import (
	"context"
	"time"
)

// MinSamples is the sample count a session must exceed to be summarized.
// Shorter sessions are treated as flicker in game detection and dropped.
const MinSamples = 5

// ManualName names a manually started session when no game is detected.
const ManualName = "Manual Session"

// Sample is one reading taken while a session is recording.
type Sample struct {
	Timestamp time.Time
	FPS       int
	CPUTemp   float64
	GPUTemp   float64
}

// Summary is the persisted record of a finished session.
type Summary struct {
	ID         string    `json:"id"`
	GameName   string    `json:"gameName"`
	DurationMS int64     `json:"duration"`
	AvgFPS     float64   `json:"avgFps"`
	MinFPS     int       `json:"minFps"`
	MaxFPS     int       `json:"maxFps"`
	AvgCPUTemp float64   `json:"avgCpuTemp"`
	MaxCPUTemp float64   `json:"maxCpuTemp"`
	AvgGPUTemp float64   `json:"avgGpuTemp"`
	MaxGPUTemp float64   `json:"maxGpuTemp"`
	Samples    int       `json:"samples"`
	StartedAt  time.Time `json:"startedAt"`
	SavedAt    time.Time `json:"savedAt"`
}

// Duration returns the session length.
func (s Summary) Duration() time.Duration {
	return time.Duration(s.DurationMS) * time.Millisecond
}

// Store persists session summaries.
type Store interface {
	// Save records summary, assigning its ID and SavedAt, and returns the
	// stored copy.
	Save(ctx context.Context, summary Summary) (Summary, error)
}

// State of the recorder.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Status describes the recorder for display.
type Status struct {
	State     State     `json:"-"`
	Recording bool      `json:"recording"`
	Manual    bool      `json:"manual"`
	GameName  string    `json:"gameName"`
	Samples   int       `json:"samples"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}
