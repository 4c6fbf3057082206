package telemetry

import "codeberg.org/mutker/ffdash/internal/errors"

const (
	ErrInvalidSnapshot = errors.ErrorCode("telemetry_invalid_snapshot")
	ErrMissingCPU      = errors.ErrorCode("telemetry_missing_cpu")
	ErrNegativeFPS     = errors.ErrorCode("telemetry_negative_fps")
)
