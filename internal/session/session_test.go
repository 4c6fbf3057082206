package session_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/session"
	"codeberg.org/mutker/ffdash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	saved []session.Summary
	err   error
}

func (m *memStore) Save(_ context.Context, s session.Summary) (session.Summary, error) {
	if m.err != nil {
		return session.Summary{}, m.err
	}
	s.ID = "id-1"
	s.SavedAt = time.Unix(1_700_000_100, 0)
	m.saved = append(m.saved, s)
	return s, nil
}

type stepClock struct {
	t    time.Time
	step time.Duration
}

// now returns the current time and then advances by step.
func (c *stepClock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func newRecorder(store session.Store) *session.Recorder {
	clock := &stepClock{t: time.Unix(1_700_000_000, 0), step: time.Second}
	return session.NewRecorder(store,
		session.WithClock(clock.now),
		session.WithLogger(logger.New(&bytes.Buffer{})),
	)
}

func game(name string, fps int, cpu, gpu float64) telemetry.Snapshot {
	return telemetry.Snapshot{
		CPU:           telemetry.CPU{Temp: cpu},
		GPUs:          []telemetry.GPU{{Temperature: gpu}},
		FPS:           fps,
		RTSSConnected: true,
		Game:          name,
	}
}

func idle() telemetry.Snapshot {
	return telemetry.Snapshot{CPU: telemetry.CPU{Temp: 40}}
}

func TestSummarizeStats(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	rows := []struct {
		fps      int
		cpu, gpu float64
	}{
		{60, 70, 65}, {50, 75, 68}, {70, 72, 60}, {40, 80, 70}, {55, 71, 62}, {65, 69, 58},
	}
	samples := make([]session.Sample, 0, len(rows))
	for i, r := range rows {
		samples = append(samples, session.Sample{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			FPS:       r.fps,
			CPUTemp:   r.cpu,
			GPUTemp:   r.gpu,
		})
	}

	s, ok := session.Summarize("Foo", samples)
	require.True(t, ok)

	assert.Equal(t, "Foo", s.GameName)
	assert.InDelta(t, 56.67, s.AvgFPS, 0.005)
	assert.Equal(t, 40, s.MinFPS)
	assert.Equal(t, 70, s.MaxFPS)
	assert.InDelta(t, 72.83, s.AvgCPUTemp, 0.005)
	assert.Equal(t, 80.0, s.MaxCPUTemp)
	assert.InDelta(t, 63.83, s.AvgGPUTemp, 0.005)
	assert.Equal(t, 70.0, s.MaxGPUTemp)
	assert.Equal(t, int64(5000), s.DurationMS)
	assert.Equal(t, 5*time.Second, s.Duration())
	assert.Equal(t, 6, s.Samples)
	assert.Equal(t, base, s.StartedAt)
}

func TestSummarizeMinimumSamples(t *testing.T) {
	samples := make([]session.Sample, 5)
	_, ok := session.Summarize("Foo", samples)
	assert.False(t, ok)

	_, ok = session.Summarize("Foo", nil)
	assert.False(t, ok)
}

func TestRecorderSampleFloor(t *testing.T) {
	tests := []struct {
		name      string
		snapshots int
		wantSaved int
	}{
		{"three snapshots", 3, 0},
		{"five snapshots", 5, 0},
		{"six snapshots", 6, 1},
		{"twenty snapshots", 20, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			r := newRecorder(store)
			ctx := context.Background()

			_, done := r.Observe(ctx, idle())
			require.False(t, done)
			for i := 0; i < tt.snapshots; i++ {
				_, done = r.Observe(ctx, game("Foo", 60, 70, 65))
				require.False(t, done)
			}
			summary, done := r.Observe(ctx, idle())

			assert.Len(t, store.saved, tt.wantSaved)
			assert.Equal(t, tt.wantSaved == 1, done)
			if tt.wantSaved == 1 {
				assert.Equal(t, "Foo", summary.GameName)
				assert.Equal(t, "id-1", summary.ID)
				assert.Equal(t, tt.snapshots, summary.Samples)
				assert.Equal(t, int64(tt.snapshots-1)*1000, summary.DurationMS)
			}
			assert.Equal(t, session.Idle, r.Status().State)
			assert.Zero(t, r.Status().Samples)
		})
	}
}

func TestRecorderStatus(t *testing.T) {
	r := newRecorder(nil)
	ctx := context.Background()

	assert.False(t, r.Status().Recording)

	r.Observe(ctx, game("Foo", 60, 70, 65))
	r.Observe(ctx, game("Foo", 60, 70, 65))

	st := r.Status()
	assert.True(t, st.Recording)
	assert.False(t, st.Manual)
	assert.Equal(t, "Foo", st.GameName)
	assert.Equal(t, 2, st.Samples)
	assert.Equal(t, "recording", st.State.String())
}

func TestRecorderGameSwitch(t *testing.T) {
	store := &memStore{}
	r := newRecorder(store)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		r.Observe(ctx, game("Foo", 60, 70, 65))
	}
	summary, done := r.Observe(ctx, game("Bar", 90, 60, 55))

	require.True(t, done)
	assert.Equal(t, "Foo", summary.GameName)
	assert.Equal(t, "Bar", r.Status().GameName)
	assert.Equal(t, 1, r.Status().Samples)
}

func TestRecorderManualToggle(t *testing.T) {
	store := &memStore{}
	r := newRecorder(store)
	ctx := context.Background()

	_, done := r.Toggle(ctx, "")
	require.False(t, done)
	st := r.Status()
	assert.True(t, st.Recording)
	assert.True(t, st.Manual)
	assert.Equal(t, session.ManualName, st.GameName)

	// Idle snapshots do not end a manual session.
	for i := 0; i < 6; i++ {
		r.Observe(ctx, idle())
	}
	assert.True(t, r.Status().Recording)

	summary, done := r.Toggle(ctx, "")
	require.True(t, done)
	assert.Equal(t, session.ManualName, summary.GameName)
	assert.Len(t, store.saved, 1)
	assert.False(t, r.Status().Recording)
}

func TestRecorderManualAdoptsDetectedGame(t *testing.T) {
	r := newRecorder(nil)
	ctx := context.Background()

	r.Toggle(ctx, "")
	r.Observe(ctx, game("Foo", 60, 70, 65))

	assert.Equal(t, "Foo", r.Status().GameName)
}

func TestRecorderManualStopBelowFloor(t *testing.T) {
	store := &memStore{}
	r := newRecorder(store)
	ctx := context.Background()

	r.Toggle(ctx, "Foo")
	for i := 0; i < 5; i++ {
		r.Observe(ctx, game("Foo", 60, 70, 65))
	}
	_, done := r.Toggle(ctx, "Foo")

	assert.False(t, done)
	assert.Empty(t, store.saved)
}

func TestRecorderToggleStopsAutoSession(t *testing.T) {
	store := &memStore{}
	r := newRecorder(store)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		r.Observe(ctx, game("Foo", 60, 70, 65))
	}
	summary, done := r.Toggle(ctx, "Foo")

	require.True(t, done)
	assert.Equal(t, "Foo", summary.GameName)
}

func TestRecorderToggleStopHoldsUntilGameChanges(t *testing.T) {
	store := &memStore{}
	r := newRecorder(store)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		r.Observe(ctx, game("Foo", 60, 70, 65))
	}
	_, done := r.Toggle(ctx, "Foo")
	require.True(t, done)

	r.Observe(ctx, game("Foo", 60, 70, 65))
	assert.Equal(t, session.Idle, r.Status().State)

	r.Observe(ctx, game("Bar", 60, 70, 65))
	assert.Equal(t, session.Recording, r.Status().State)
	assert.Equal(t, "Bar", r.Status().GameName)
}

func TestRecorderToggleStopClearsOnIdle(t *testing.T) {
	r := newRecorder(&memStore{})
	ctx := context.Background()

	r.Observe(ctx, game("Foo", 60, 70, 65))
	r.Toggle(ctx, "Foo")
	r.Observe(ctx, idle())
	r.Observe(ctx, game("Foo", 60, 70, 65))

	assert.Equal(t, session.Recording, r.Status().State)
	assert.False(t, r.Status().Manual)
}

func TestRecorderPersistFailureStillReturnsSummary(t *testing.T) {
	store := &memStore{err: stderrors.New("disk full")}
	r := newRecorder(store)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		r.Observe(ctx, game("Foo", 60, 70, 65))
	}
	summary, done := r.Observe(ctx, idle())

	require.True(t, done)
	assert.Equal(t, "Foo", summary.GameName)
	assert.Empty(t, summary.ID)
	assert.Equal(t, session.Idle, r.Status().State)
}

func TestCompare(t *testing.T) {
	a := session.Summary{
		ID: "a", AvgFPS: 100.4, MinFPS: 80,
		MaxCPUTemp: 80, MaxGPUTemp: 70.2, DurationMS: 60_000,
	}
	b := session.Summary{
		ID: "b", AvgFPS: 120.2, MinFPS: 60,
		MaxCPUTemp: 72, MaxGPUTemp: 70.4, DurationMS: 90_000,
	}

	cmp := session.Compare(a, b)
	require.Len(t, cmp.Stats, 4)
	assert.Equal(t, int64(30_000), cmp.DurationDiffMS)
	assert.Equal(t, "a", cmp.A.ID)
	assert.Equal(t, "b", cmp.B.ID)

	tests := []struct {
		stat     string
		diff     float64
		percent  float64
		improved bool
	}{
		{session.StatAvgFPS, 20, 20, true},
		{session.StatMinFPS, -20, -25, false},
		{session.StatMaxCPUTemp, -8, -10, true},
		{session.StatMaxGPUTemp, 0, 0, false},
	}

	for i, tt := range tests {
		t.Run(tt.stat, func(t *testing.T) {
			got := cmp.Stats[i]
			assert.Equal(t, tt.stat, got.Stat)
			assert.InDelta(t, tt.diff, got.Diff, 1e-9)
			assert.InDelta(t, tt.percent, got.Percent, 1e-9)
			assert.Equal(t, tt.improved, got.Improved)
		})
	}
}

func TestCompareZeroBase(t *testing.T) {
	cmp := session.Compare(session.Summary{}, session.Summary{AvgFPS: 60})

	assert.Equal(t, 60.0, cmp.Stats[0].Diff)
	assert.Zero(t, cmp.Stats[0].Percent)
	assert.True(t, cmp.Stats[0].Improved)
}
