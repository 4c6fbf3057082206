package channel

import "codeberg.org/mutker/ffdash/internal/errors"

const (
	ErrNotConnected = errors.ErrorCode("channel_not_connected")
	ErrDialFailed   = errors.ErrorCode("channel_dial_failed")
	ErrWriteFailed  = errors.ErrorCode("channel_write_failed")
	ErrReadFailed   = errors.ErrorCode("channel_read_failed")
)
