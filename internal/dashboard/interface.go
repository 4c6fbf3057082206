package dashboard

import (
	"context"
	"time"

	"codeberg.org/mutker/ffdash/internal/alerts"
	"codeberg.org/mutker/ffdash/internal/channel"
	"codeberg.org/mutker/ffdash/internal/history"
	"codeberg.org/mutker/ffdash/internal/session"
	"codeberg.org/mutker/ffdash/internal/telemetry"
)

// Source is a stream of channel events: the live WebSocket client or the
// demo generator. Events must be closed when Run returns.
type Source interface {
	Events() <-chan channel.Event
	Run(ctx context.Context) error
	SetFPSSmoothing(ctx context.Context, enabled bool) error
}

// SettingsStore persists alert settings.
type SettingsStore interface {
	LoadAlertSettings(ctx context.Context) (alerts.Settings, error)
	SaveAlertSettings(ctx context.Context, settings alerts.Settings) error
}

// Probe measures latency to the server while connected.
type Probe interface {
	Run(ctx context.Context)
	Last() (int64, time.Time)
	Reset()
}

// Counters accumulate over the lifetime of the dashboard.
type Counters struct {
	Snapshots     uint64 `json:"snapshots"`
	Dropped       uint64 `json:"dropped"`
	Notifications uint64 `json:"notifications"`
	Sessions      uint64 `json:"sessions"`
	Disconnects   uint64 `json:"disconnects"`
}

// Status is a point-in-time copy of everything a front end renders.
type Status struct {
	Connected   bool               `json:"connected"`
	Latest      telemetry.Snapshot `json:"latest"`
	Alerts      alerts.State       `json:"alerts"`
	Settings    alerts.Settings    `json:"settings"`
	History     []history.Point    `json:"history"`
	Recording   session.Status     `json:"recording"`
	GameName    string             `json:"gameName"`
	LatencyMS   int64              `json:"latencyMs"`
	Pro         bool               `json:"pro"`
	Demo        bool               `json:"demo"`
	LastSession *session.Summary   `json:"lastSession,omitempty"`
	Counters    Counters           `json:"counters"`
}
