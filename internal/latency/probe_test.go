package latency_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/ffdash/internal/latency"
	"codeberg.org/mutker/ffdash/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverAddr(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestPing(t *testing.T) {
	var path atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		time.Sleep(5 * time.Millisecond)
		_, _ = w.Write([]byte(`{"version":"1.0.0"}`))
	}))
	defer ts.Close()

	p := latency.New(serverAddr(ts), 0, logger.New(&bytes.Buffer{}))
	ms := p.Ping(context.Background())

	assert.GreaterOrEqual(t, ms, int64(5))
	assert.Equal(t, "/api/server-info", path.Load())
}

func TestPingFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := serverAddr(ts)
	ts.Close()

	p := latency.New(addr, 0, logger.New(&bytes.Buffer{}))
	assert.Equal(t, latency.NoMeasurement, p.Ping(context.Background()))
}

func TestRunClearsMeasurementOnFailure(t *testing.T) {
	var fail atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			// Hijack and drop the connection so the client sees an error.
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := latency.New(serverAddr(ts), 20*time.Millisecond, logger.New(&bytes.Buffer{}))
	last, _ := p.Last()
	require.Equal(t, latency.NoMeasurement, last)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		ms, _ := p.Last()
		return ms >= 0
	}, 2*time.Second, 5*time.Millisecond)

	fail.Store(true)
	require.Eventually(t, func() bool {
		ms, at := p.Last()
		return ms == latency.NoMeasurement && at.IsZero()
	}, 2*time.Second, 5*time.Millisecond)

	fail.Store(false)
	require.Eventually(t, func() bool {
		ms, _ := p.Last()
		return ms >= 0
	}, 2*time.Second, 5*time.Millisecond)

	p.Reset()
	ms, at := p.Last()
	assert.Equal(t, latency.NoMeasurement, ms)
	assert.True(t, at.IsZero())
}
