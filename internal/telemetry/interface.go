package telemetry

// Snapshot is one periodic hardware reading as reported by the desktop server.
type Snapshot struct {
	CPU           CPU   `json:"cpu"`
	GPUs          []GPU `json:"gpus"`
	RAM           RAM   `json:"ram"`
	FPS           int   `json:"fps"`
	RTSSConnected bool  `json:"rtss_connected"`
	// Game is the detected foreground game, empty when none.
	Game         string `json:"game"`
	FPSSmoothing bool   `json:"fps_smoothing"`
}

type CPU struct {
	Load  float64 `json:"load"`
	Temp  float64 `json:"temp"`
	Clock float64 `json:"clock"`
	Power float64 `json:"power"`
	Name  string  `json:"name"`
}

type GPU struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Load        float64 `json:"load"`
	Temperature float64 `json:"temperature"`
	MemoryUsed  float64 `json:"memory_used"`
	MemoryTotal float64 `json:"memory_total"`
	Clock       float64 `json:"clock"`
	FanSpeed    float64 `json:"fan_speed"`
}

type RAM struct {
	UsedGB  float64 `json:"used_gb"`
	TotalGB float64 `json:"total_gb"`
	Percent float64 `json:"percent"`
}

// PrimaryGPU returns the first reported GPU, or a zero GPU when none is present.
func (s Snapshot) PrimaryGPU() GPU {
	if len(s.GPUs) == 0 {
		return GPU{}
	}
	return s.GPUs[0]
}

// Idle reports whether no game is being measured.
func (s Snapshot) Idle() bool {
	return s.FPS == 0 || !s.RTSSConnected
}
