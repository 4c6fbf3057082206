package telemetry

import (
	"encoding/json"
	"math"

	"codeberg.org/mutker/ffdash/internal/errors"
)

// rawSnapshot mirrors Snapshot with pointer fields so presence can be checked.
// The server has shipped the CPU clock as both "freq" and "clock".
type rawSnapshot struct {
	CPU *struct {
		Load  float64  `json:"load"`
		Temp  float64  `json:"temp"`
		Clock *float64 `json:"clock"`
		Freq  *float64 `json:"freq"`
		Power float64  `json:"power"`
		Name  string   `json:"name"`
	} `json:"cpu"`
	GPUs          []GPU  `json:"gpus"`
	RAM           *RAM   `json:"ram"`
	FPS           *int   `json:"fps"`
	RTSSConnected bool   `json:"rtss_connected"`
	Game          string `json:"game"`
	FPSSmoothing  bool   `json:"fps_smoothing"`
}

// Normalize decodes a hardware_update payload into a Snapshot. Payloads
// without a cpu object or with a negative fps are rejected; the caller is
// expected to drop them and keep its last good state. Absent optional fields
// default to their zero values.
func Normalize(raw []byte) (Snapshot, error) {
	errFactory := errors.New()

	var in rawSnapshot
	if err := json.Unmarshal(raw, &in); err != nil {
		return Snapshot{}, errFactory.Wrap(ErrInvalidSnapshot, err)
	}

	if in.CPU == nil {
		return Snapshot{}, errFactory.New(ErrMissingCPU)
	}

	fps := 0
	if in.FPS != nil {
		fps = *in.FPS
	}
	if fps < 0 {
		return Snapshot{}, errFactory.WithData(ErrNegativeFPS, fps)
	}

	out := Snapshot{
		CPU: CPU{
			Load:  clampPercent(in.CPU.Load),
			Temp:  in.CPU.Temp,
			Power: in.CPU.Power,
			Name:  in.CPU.Name,
		},
		FPS:           fps,
		RTSSConnected: in.RTSSConnected,
		Game:          in.Game,
		FPSSmoothing:  in.FPSSmoothing,
	}

	switch {
	case in.CPU.Clock != nil:
		out.CPU.Clock = *in.CPU.Clock
	case in.CPU.Freq != nil:
		out.CPU.Clock = *in.CPU.Freq
	}

	if in.RAM != nil {
		out.RAM = *in.RAM
		out.RAM.Percent = clampPercent(out.RAM.Percent)
	}

	if len(in.GPUs) > 0 {
		out.GPUs = make([]GPU, len(in.GPUs))
		for i, g := range in.GPUs {
			g.Load = clampPercent(g.Load)
			out.GPUs[i] = g
		}
	}

	return out, nil
}

// Disconnected returns the zeroed snapshot published once when the channel
// drops. Temperatures, loads and fps are zeroed, the overlay is marked
// disconnected and the game cleared; hardware identity and RAM capacity are
// kept so the dashboard can still label its gauges.
func Disconnected(last Snapshot) Snapshot {
	out := Snapshot{
		CPU: CPU{Name: last.CPU.Name},
		RAM: RAM{TotalGB: last.RAM.TotalGB},
	}

	if len(last.GPUs) > 0 {
		out.GPUs = make([]GPU, len(last.GPUs))
		for i, g := range last.GPUs {
			out.GPUs[i] = GPU{ID: g.ID, Name: g.Name, MemoryTotal: g.MemoryTotal}
		}
	}

	return out
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

