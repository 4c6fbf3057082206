package demo

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/ffdash/internal/channel"
	"codeberg.org/mutker/ffdash/internal/telemetry"
)

// DefaultInterval matches the desktop server's broadcast rate.
const DefaultInterval = time.Second

// Source produces synthetic hardware snapshots for demo mode. It speaks the
// same event stream as channel.Client.
type Source struct {
	interval time.Duration
	rng      *rand.Rand
	events   chan channel.Event

	mu        sync.Mutex
	smoothing bool
}

// New returns a Source emitting every interval, seeded with seed.
func New(interval time.Duration, seed int64) *Source {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Source{
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		events:   make(chan channel.Event, 1),
	}
}

func (s *Source) Events() <-chan channel.Event {
	return s.events
}

// Run emits a connected event followed by one snapshot per interval until ctx
// is canceled.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.events)

	if !s.emit(ctx, channel.Event{Type: channel.EventConnected, At: time.Now()}) {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		payload, err := json.Marshal(s.Snapshot())
		if err != nil {
			return err
		}
		if !s.emit(ctx, channel.Event{Type: channel.EventSnapshot, Payload: payload, At: time.Now()}) {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Snapshot returns one synthetic reading of a high-end gaming PC.
func (s *Source) Snapshot() telemetry.Snapshot {
	return telemetry.Snapshot{
		CPU: telemetry.CPU{
			Name:  "Intel Core i9-14900K",
			Load:  45 + s.rng.Float64()*20,
			Temp:  65 + s.rng.Float64()*10,
			Clock: 5800,
			Power: 125 + s.rng.Float64()*50,
		},
		GPUs: []telemetry.GPU{{
			ID:          "0",
			Name:        "NVIDIA GeForce RTX 4090",
			Load:        80 + s.rng.Float64()*20,
			Temperature: 70 + s.rng.Float64()*5,
			MemoryUsed:  12000 + s.rng.Float64()*2000,
			MemoryTotal: 24576,
			Clock:       2520,
			FanSpeed:    60,
		}},
		RAM: telemetry.RAM{
			UsedGB:  16 + s.rng.Float64()*2,
			TotalGB: 32,
			Percent: 50 + s.rng.Float64()*5,
		},
		FPS:           144 + s.rng.Intn(20),
		RTSSConnected: true,
		Game:          "Cyberpunk 2077",
		FPSSmoothing:  s.Smoothing(),
	}
}

// SetFPSSmoothing flips the smoothing flag reported in later snapshots.
func (s *Source) SetFPSSmoothing(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.smoothing = enabled
	return nil
}

func (s *Source) Smoothing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smoothing
}

func (s *Source) emit(ctx context.Context, ev channel.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
