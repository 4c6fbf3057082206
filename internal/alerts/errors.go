package alerts

import "codeberg.org/mutker/ffdash/internal/errors"

const (
	ErrDecodeSettings  = errors.ErrorCode("alerts_decode_settings_failed")
	ErrInvalidSettings = errors.ErrorCode("alerts_invalid_settings")
)
