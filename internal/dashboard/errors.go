package dashboard

import "codeberg.org/mutker/ffdash/internal/errors"

const (
	ErrNotRunning   = errors.ErrorCode("dashboard_not_running")
	ErrLoadSettings = errors.ErrorCode("dashboard_load_settings_failed")
	ErrSaveSettings = errors.ErrorCode("dashboard_save_settings_failed")
	ErrFPSSmoothing = errors.ErrorCode("dashboard_fps_smoothing_failed")
)
