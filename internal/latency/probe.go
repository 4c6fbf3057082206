package latency

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"codeberg.org/mutker/ffdash/internal/logger"
)

const (
	// DefaultInterval between two probes.
	DefaultInterval = 2 * time.Second
	defaultTimeout  = 2 * time.Second
	probePath       = "/api/server-info"
)

// NoMeasurement is reported when a probe fails or none has completed yet.
const NoMeasurement int64 = -1

// Probe measures round-trip time to the desktop server's HTTP endpoint.
type Probe struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      logger.Logger

	mu   sync.RWMutex
	last int64
	at   time.Time
}

// New returns a probe against http://<addr>/api/server-info. A non-positive
// interval uses DefaultInterval.
func New(addr string, interval time.Duration, log logger.Logger) *Probe {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Probe{
		url:      "http://" + addr + probePath,
		interval: interval,
		client:   &http.Client{Timeout: defaultTimeout},
		log:      log,
		last:     NoMeasurement,
	}
}

// Ping performs one round trip and returns its duration in milliseconds, or
// NoMeasurement on failure. Any HTTP response counts as a round trip.
func (p *Probe) Ping(ctx context.Context) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return NoMeasurement
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug().Err(err).Msg("Latency probe failed")
		return NoMeasurement
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return time.Since(start).Milliseconds()
}

// Run probes immediately and then on every interval until ctx is canceled.
// A failed probe clears the previous measurement.
func (p *Probe) Run(ctx context.Context) {
	p.record(p.Ping(ctx))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.record(p.Ping(ctx))
		}
	}
}

// Last returns the measurement from the latest probe in milliseconds and
// when it was taken, or NoMeasurement if that probe failed.
func (p *Probe) Last() (int64, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.at
}

// Reset forgets the last measurement.
func (p *Probe) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = NoMeasurement
	p.at = time.Time{}
}

func (p *Probe) record(ms int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = ms
	if ms == NoMeasurement {
		p.at = time.Time{}
		return
	}
	p.at = time.Now()
}
