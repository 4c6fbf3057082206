package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DebugLevel},
		{"INFO", logger.InfoLevel},
		{"", logger.InfoLevel},
		{"warning", logger.WarnLevel},
		{"warn", logger.WarnLevel},
		{"error", logger.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestComponentLogger(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)

	var buf bytes.Buffer
	log := logger.New(&buf).With("recorder")
	log.Info().Str("game", "Foo").Msg("session started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "recorder", line["component"])
	assert.Equal(t, "Foo", line["game"])
	assert.Equal(t, "session started", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestErrorWithCode(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)

	var buf bytes.Buffer
	log := logger.New(&buf)
	log.ErrorWithCode(errors.New().New(errors.ErrTimeout)).Msg("ping failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "operation_timeout", line["error_code"])
	assert.Equal(t, "Operation timed out", line["error_message"])
}
