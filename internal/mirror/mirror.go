package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/session"
	"golang.org/x/time/rate"
)

const (
	defaultQueueSize = 32
	defaultTimeout   = 10 * time.Second
	// At most one upload per second, with a small burst after reconnects.
	defaultRate  = rate.Limit(1)
	defaultBurst = 3
)

const (
	ErrInvalidURL   = errors.ErrorCode("mirror_invalid_url")
	ErrUploadFailed = errors.ErrorCode("mirror_upload_failed")
)

// Config configures the remote mirror.
type Config struct {
	// BaseURL of the remote document store; sessions are PUT to
	// <BaseURL>/sessions/<id>. Empty disables mirroring.
	BaseURL   string
	Token     string
	QueueSize int
	Timeout   time.Duration
}

// Mirror copies saved sessions to a remote document store. Uploads happen on
// a background worker; Enqueue never blocks and failed uploads are dropped.
type Mirror struct {
	base    *url.URL
	token   string
	client  *http.Client
	limiter *rate.Limiter
	log     logger.Logger
	queue   chan session.Summary

	mu       sync.Mutex
	dropped  int
	uploaded int
	failed   int
}

// New returns a Mirror, or nil when cfg.BaseURL is empty. A nil *Mirror is
// safe to use and does nothing.
func New(cfg Config, log logger.Logger) (*Mirror, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, nil
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New().WithData(ErrInvalidURL, cfg.BaseURL)
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Mirror{
		base:    base,
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
		log:     log,
		queue:   make(chan session.Summary, cfg.QueueSize),
	}, nil
}

// Enqueue schedules summary for upload, dropping it if the queue is full.
func (m *Mirror) Enqueue(summary session.Summary) {
	if m == nil {
		return
	}

	select {
	case m.queue <- summary:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		m.log.Warn().Str("id", summary.ID).Msg("Mirror queue full, session not mirrored")
	}
}

// Run uploads queued sessions until ctx is canceled.
func (m *Mirror) Run(ctx context.Context) {
	if m == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case summary := <-m.queue:
			if err := m.limiter.Wait(ctx); err != nil {
				return
			}
			if err := m.upload(ctx, summary); err != nil {
				m.mu.Lock()
				m.failed++
				m.mu.Unlock()
				m.log.Warn().Err(err).Str("id", summary.ID).Msg("Failed to mirror session")
				continue
			}
			m.mu.Lock()
			m.uploaded++
			m.mu.Unlock()
		}
	}
}

// Stats returns counts of uploaded, failed and dropped sessions.
func (m *Mirror) Stats() (uploaded, failed, dropped int) {
	if m == nil {
		return 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploaded, m.failed, m.dropped
}

func (m *Mirror) upload(ctx context.Context, summary session.Summary) error {
	errFactory := errors.New()

	body, err := json.Marshal(summary)
	if err != nil {
		return errFactory.Wrap(ErrUploadFailed, err)
	}

	target := m.base.JoinPath("sessions", summary.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), bytes.NewReader(body))
	if err != nil {
		return errFactory.Wrap(ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return errFactory.Wrap(ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errFactory.WithData(ErrUploadFailed, fmt.Sprintf("status %d", resp.StatusCode))
	}

	m.log.Debug().Str("id", summary.ID).Msg("Session mirrored")
	return nil
}
