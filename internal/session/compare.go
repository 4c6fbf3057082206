package session

import "math"

// Stat names used in a Comparison.
const (
	StatAvgFPS     = "avgFps"
	StatMinFPS     = "minFps"
	StatMaxCPUTemp = "maxCpuTemp"
	StatMaxGPUTemp = "maxGpuTemp"
)

// StatDiff compares one statistic of two sessions. Values are rounded to
// whole units before the difference is taken.
type StatDiff struct {
	Stat          string  `json:"stat"`
	A             float64 `json:"a"`
	B             float64 `json:"b"`
	Diff          float64 `json:"diff"`
	Percent       float64 `json:"percent"`
	LowerIsBetter bool    `json:"lowerIsBetter"`
	Improved      bool    `json:"improved"`
}

// Comparison describes how session B performed relative to session A.
type Comparison struct {
	A              Summary    `json:"a"`
	B              Summary    `json:"b"`
	Stats          []StatDiff `json:"stats"`
	DurationDiffMS int64      `json:"durationDiff"`
}

// Compare derives the per-stat differences of b against a.
func Compare(a, b Summary) Comparison {
	return Comparison{
		A: a,
		B: b,
		Stats: []StatDiff{
			diffStat(StatAvgFPS, a.AvgFPS, b.AvgFPS, false),
			diffStat(StatMinFPS, float64(a.MinFPS), float64(b.MinFPS), false),
			diffStat(StatMaxCPUTemp, a.MaxCPUTemp, b.MaxCPUTemp, true),
			diffStat(StatMaxGPUTemp, a.MaxGPUTemp, b.MaxGPUTemp, true),
		},
		DurationDiffMS: b.DurationMS - a.DurationMS,
	}
}

func diffStat(stat string, a, b float64, lowerIsBetter bool) StatDiff {
	d := StatDiff{
		Stat:          stat,
		A:             math.Round(a),
		B:             math.Round(b),
		LowerIsBetter: lowerIsBetter,
	}

	diff := d.B - d.A
	// Differences under half a unit are noise.
	if math.Abs(diff) < 0.5 {
		return d
	}

	d.Diff = diff
	if d.A != 0 {
		d.Percent = diff / d.A * 100
	}
	if lowerIsBetter {
		d.Improved = diff < 0
	} else {
		d.Improved = diff > 0
	}
	return d
}
