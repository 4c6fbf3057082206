package demo_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/ffdash/internal/channel"
	"codeberg.org/mutker/ffdash/internal/demo"
	"codeberg.org/mutker/ffdash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRanges(t *testing.T) {
	src := demo.New(0, 42)

	for i := 0; i < 100; i++ {
		s := src.Snapshot()
		assert.GreaterOrEqual(t, s.FPS, 144)
		assert.Less(t, s.FPS, 164)
		assert.GreaterOrEqual(t, s.CPU.Temp, 65.0)
		assert.Less(t, s.CPU.Temp, 75.0)
		assert.False(t, s.Idle())
		assert.Equal(t, "Cyberpunk 2077", s.Game)
	}
}

func TestSetFPSSmoothing(t *testing.T) {
	src := demo.New(0, 7)
	assert.False(t, src.Snapshot().FPSSmoothing)

	require.NoError(t, src.SetFPSSmoothing(context.Background(), true))
	assert.True(t, src.Snapshot().FPSSmoothing)
}

func TestRunEmitsNormalizableSnapshots(t *testing.T) {
	src := demo.New(5*time.Millisecond, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go src.Run(ctx)

	ev := <-src.Events()
	require.Equal(t, channel.EventConnected, ev.Type)

	for i := 0; i < 3; i++ {
		ev = <-src.Events()
		require.Equal(t, channel.EventSnapshot, ev.Type)
		s, err := telemetry.Normalize(ev.Payload)
		require.NoError(t, err)
		assert.Equal(t, "NVIDIA GeForce RTX 4090", s.PrimaryGPU().Name)
	}

	cancel()
	for range src.Events() {
	}
}
