package alerts

import "codeberg.org/mutker/ffdash/internal/telemetry"

// fpsNoiseFloor keeps a briefly idle or alt-tabbed game, which reports 0-5
// fps, from raising a low-fps alert.
const fpsNoiseFloor = 5

// State is the derived alert state for the latest snapshot.
type State struct {
	CPU bool `json:"cpu"`
	GPU bool `json:"gpu"`
	FPS bool `json:"fps"`
}

// Any reports whether at least one alert is active.
func (s State) Any() bool {
	return s.CPU || s.GPU || s.FPS
}

// Active reports whether the alert of the given kind is set.
func (s State) Active(k Kind) bool {
	switch k {
	case KindFPS:
		return s.FPS
	case KindCPU:
		return s.CPU
	case KindGPU:
		return s.GPU
	default:
		return false
	}
}

// Evaluate compares a snapshot against the settings. It has no side effects.
func Evaluate(s telemetry.Snapshot, settings Settings) State {
	if !settings.Enabled {
		return State{}
	}

	return State{
		CPU: settings.CPUAlertEnabled && s.CPU.Temp > settings.CPUTempLimit,
		GPU: settings.GPUAlertEnabled && s.PrimaryGPU().Temperature > settings.GPUTempLimit,
		FPS: settings.FPSAlertEnabled && s.FPS > fpsNoiseFloor && s.FPS < settings.FPSLowLimit,
	}
}
