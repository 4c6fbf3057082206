package alerts

import (
	"encoding/json"

	"codeberg.org/mutker/ffdash/internal/errors"
)

const (
	defaultCPUTempLimit    = 85
	defaultGPUTempLimit    = 85
	defaultFPSLowLimit     = 30
	defaultCooldownSeconds = 30
)

// Settings are the user-configured alert thresholds.
type Settings struct {
	Enabled         bool    `json:"enabled"`
	CPUTempLimit    float64 `json:"cpuTempLimit"`
	GPUTempLimit    float64 `json:"gpuTempLimit"`
	FPSLowLimit     int     `json:"fpsLowLimit"`
	Vibrate         bool    `json:"vibrate"`
	Sound           bool    `json:"sound"`
	CPUAlertEnabled bool    `json:"cpuAlertEnabled"`
	GPUAlertEnabled bool    `json:"gpuAlertEnabled"`
	FPSAlertEnabled bool    `json:"fpsAlertEnabled"`
	// CooldownSeconds is how long an alert that stays active waits before
	// it is announced again.
	CooldownSeconds int `json:"cooldownSeconds"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:         true,
		CPUTempLimit:    defaultCPUTempLimit,
		GPUTempLimit:    defaultGPUTempLimit,
		FPSLowLimit:     defaultFPSLowLimit,
		Vibrate:         true,
		Sound:           false,
		CPUAlertEnabled: true,
		GPUAlertEnabled: true,
		FPSAlertEnabled: true,
		CooldownSeconds: defaultCooldownSeconds,
	}
}

// DecodeSettings merges a stored settings document over the defaults: keys
// missing from data keep their default value. Empty data yields the defaults.
func DecodeSettings(data []byte) (Settings, error) {
	return MergeSettings(DefaultSettings(), data)
}

// MergeSettings applies a full or partial settings document over base. On
// error base is returned unchanged.
func MergeSettings(base Settings, data []byte) (Settings, error) {
	if len(data) == 0 {
		return base, nil
	}

	settings := base
	if err := json.Unmarshal(data, &settings); err != nil {
		return base, errors.New().Wrap(ErrDecodeSettings, err)
	}

	if err := settings.Validate(); err != nil {
		return base, err
	}

	return settings, nil
}

// Validate rejects thresholds that can never be meaningful.
func (s Settings) Validate() error {
	errFactory := errors.New()

	switch {
	case s.CPUTempLimit <= 0:
		return errFactory.WithData(ErrInvalidSettings, struct {
			Field string
			Value float64
		}{"cpuTempLimit", s.CPUTempLimit})
	case s.GPUTempLimit <= 0:
		return errFactory.WithData(ErrInvalidSettings, struct {
			Field string
			Value float64
		}{"gpuTempLimit", s.GPUTempLimit})
	case s.FPSLowLimit < 0:
		return errFactory.WithData(ErrInvalidSettings, struct {
			Field string
			Value int
		}{"fpsLowLimit", s.FPSLowLimit})
	case s.CooldownSeconds < 0:
		return errFactory.WithData(ErrInvalidSettings, struct {
			Field string
			Value int
		}{"cooldownSeconds", s.CooldownSeconds})
	}

	return nil
}
