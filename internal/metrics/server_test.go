package metrics_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/mutker/ffdash/internal/alerts"
	"codeberg.org/mutker/ffdash/internal/dashboard"
	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/metrics"
	"codeberg.org/mutker/ffdash/internal/session"
	"codeberg.org/mutker/ffdash/internal/store"
	"codeberg.org/mutker/ffdash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus dashboard.Status

func (s staticStatus) Status() dashboard.Status { return dashboard.Status(s) }

type memSessions struct {
	list    []session.Summary
	cleared bool
}

func (m *memSessions) List(context.Context) ([]session.Summary, error) { return m.list, nil }

func (m *memSessions) Get(_ context.Context, id string) (session.Summary, error) {
	for _, s := range m.list {
		if s.ID == id {
			return s, nil
		}
	}
	return session.Summary{}, errors.New().WithData(store.ErrNotFound, id)
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	kept := m.list[:0]
	for _, s := range m.list {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	m.list = kept
	return nil
}

func (m *memSessions) Clear(context.Context) error {
	m.list = nil
	m.cleared = true
	return nil
}

type fakeControl struct {
	toggles   int
	smoothing []bool
	settings  *alerts.Settings
}

func (f *fakeControl) ToggleRecording(context.Context) (session.Summary, bool, error) {
	f.toggles++
	if f.toggles%2 == 0 {
		return session.Summary{ID: "done", GameName: session.ManualName, Samples: 9}, true, nil
	}
	return session.Summary{}, false, nil
}

func (f *fakeControl) SetFPSSmoothing(_ context.Context, enabled bool) error {
	f.smoothing = append(f.smoothing, enabled)
	return nil
}

func (f *fakeControl) UpdateAlertSettings(_ context.Context, settings alerts.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	f.settings = &settings
	return nil
}

type staticMirror struct{}

func (staticMirror) Stats() (int, int, int) { return 3, 1, 2 }

func do(t *testing.T, h http.Handler, method, path, body string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	out, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(out)
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	return do(t, h, http.MethodGet, path, "")
}

var quiet = logger.New(io.Discard)

func customSettings() alerts.Settings {
	s := alerts.DefaultSettings()
	s.FPSLowLimit = 45
	s.Sound = true
	return s
}

func connectedStatus() staticStatus {
	return staticStatus{
		Connected: true,
		Latest: telemetry.Snapshot{
			CPU:  telemetry.CPU{Temp: 71, Load: 40},
			GPUs: []telemetry.GPU{{Temperature: 66, Load: 90}},
			RAM:  telemetry.RAM{Percent: 52},
			FPS:  144,
		},
		Alerts:    alerts.State{GPU: true},
		Settings:  customSettings(),
		LatencyMS: 8,
		Counters:  dashboard.Counters{Snapshots: 10, Dropped: 1},
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := metrics.New("", connectedStatus(), metrics.Deps{Mirror: staticMirror{}}, quiet)

	code, body := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, code)

	for _, line := range []string{
		"ffdash_connected 1",
		"ffdash_fps 144",
		"ffdash_cpu_temperature_celsius 71",
		"ffdash_gpu_temperature_celsius 66",
		"ffdash_latency_milliseconds 8",
		"ffdash_alert_gpu_active 1",
		"ffdash_alert_cpu_active 0",
		"ffdash_snapshots_total 10",
		"ffdash_snapshots_dropped_total 1",
		"ffdash_mirror_uploaded_total 3",
		"ffdash_mirror_dropped_total 2",
	} {
		assert.Contains(t, body, line)
	}
}

func TestMetricsOmitReadingsWhenDisconnected(t *testing.T) {
	st := connectedStatus()
	st.Connected = false
	st.LatencyMS = -1
	srv := metrics.New("", st, metrics.Deps{}, quiet)

	_, body := get(t, srv.Handler(), "/metrics")
	assert.Contains(t, body, "ffdash_connected 0")
	assert.NotContains(t, body, "ffdash_fps ")
	assert.NotContains(t, body, "ffdash_latency_milliseconds ")
	assert.NotContains(t, body, "ffdash_mirror_")
}

func TestStatusEndpoint(t *testing.T) {
	srv := metrics.New("", connectedStatus(), metrics.Deps{}, quiet)

	code, body := get(t, srv.Handler(), "/api/status")
	require.Equal(t, http.StatusOK, code)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, true, got["connected"])
	assert.Equal(t, float64(8), got["latencyMs"])

	latest := got["latest"].(map[string]any)
	assert.Equal(t, float64(144), latest["fps"])
}

func TestSessionsEndpoints(t *testing.T) {
	sessions := &memSessions{list: []session.Summary{
		{ID: "a", GameName: "Foo", AvgFPS: 99.5},
		{ID: "b", GameName: "Bar"},
	}}
	h := metrics.New("", connectedStatus(), metrics.Deps{Sessions: sessions}, quiet).Handler()

	code, body := get(t, h, "/api/sessions")
	require.Equal(t, http.StatusOK, code)
	var got []session.Summary
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Foo", got[0].GameName)

	code, body = get(t, h, "/api/sessions/b")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"gameName":"Bar"`)

	code, body = get(t, h, "/api/sessions/zzz")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, string(store.ErrNotFound))

	code, _ = do(t, h, http.MethodDelete, "/api/sessions/a", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Len(t, sessions.list, 1)

	code, _ = do(t, h, http.MethodDelete, "/api/sessions", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.True(t, sessions.cleared)

	_, body = get(t, h, "/api/sessions")
	assert.JSONEq(t, "[]", body)
}

func TestCompareSessions(t *testing.T) {
	sessions := &memSessions{list: []session.Summary{
		{ID: "a", GameName: "Foo", AvgFPS: 100, MinFPS: 80, MaxCPUTemp: 80, MaxGPUTemp: 70},
		{ID: "b", GameName: "Foo", AvgFPS: 120, MinFPS: 80, MaxCPUTemp: 72, MaxGPUTemp: 70},
	}}
	h := metrics.New("", connectedStatus(), metrics.Deps{Sessions: sessions}, quiet).Handler()

	code, body := get(t, h, "/api/sessions/compare?a=a&b=b")
	require.Equal(t, http.StatusOK, code, body)

	var got session.Comparison
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "a", got.A.ID)
	assert.Equal(t, "b", got.B.ID)
	require.Len(t, got.Stats, 4)
	assert.Equal(t, session.StatAvgFPS, got.Stats[0].Stat)
	assert.Equal(t, 20.0, got.Stats[0].Diff)
	assert.True(t, got.Stats[2].Improved)

	code, body = get(t, h, "/api/sessions/compare?a=a")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, string(errors.ErrInvalidArgument))

	code, _ = get(t, h, "/api/sessions/compare?a=a&b=zzz")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSessionsEndpointsNeedStore(t *testing.T) {
	h := metrics.New("", connectedStatus(), metrics.Deps{}, quiet).Handler()

	code, _ := get(t, h, "/api/sessions")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestControlEndpoints(t *testing.T) {
	control := &fakeControl{}
	h := metrics.New("", connectedStatus(), metrics.Deps{Control: control}, quiet).Handler()

	t.Run("toggle recording", func(t *testing.T) {
		code, body := do(t, h, http.MethodPost, "/api/recording/toggle", "")
		require.Equal(t, http.StatusOK, code)
		assert.NotContains(t, body, "session")

		code, body = do(t, h, http.MethodPost, "/api/recording/toggle", "")
		require.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, `"id":"done"`)
		assert.Equal(t, 2, control.toggles)
	})

	t.Run("fps smoothing", func(t *testing.T) {
		code, _ := do(t, h, http.MethodPost, "/api/fps-smoothing", `{"enabled":true}`)
		assert.Equal(t, http.StatusNoContent, code)
		assert.Equal(t, []bool{true}, control.smoothing)

		code, body := do(t, h, http.MethodPost, "/api/fps-smoothing", `{}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, body, string(errors.ErrInvalidArgument))
	})

	t.Run("partial settings merge over current", func(t *testing.T) {
		code, body := do(t, h, http.MethodPut, "/api/settings", `{"cpuTempLimit": 70}`)
		require.Equal(t, http.StatusOK, code, body)
		require.NotNil(t, control.settings)

		want := customSettings()
		want.CPUTempLimit = 70
		assert.Equal(t, want, *control.settings)
	})

	t.Run("invalid settings", func(t *testing.T) {
		code, body := do(t, h, http.MethodPut, "/api/settings", `{"gpuTempLimit": -1}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, body, string(alerts.ErrInvalidSettings))
	})
}

func TestReadOnlyWithoutController(t *testing.T) {
	h := metrics.New("", connectedStatus(), metrics.Deps{}, quiet).Handler()

	code, _ := do(t, h, http.MethodPost, "/api/recording/toggle", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodPost, "/api/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := metrics.New("127.0.0.1:0", connectedStatus(), metrics.Deps{}, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
}
