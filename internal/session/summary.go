package session

// Summarize computes the statistics of a finished session. It returns false
// when there are not more than MinSamples samples.
func Summarize(gameName string, samples []Sample) (Summary, bool) {
	count := len(samples)
	if count <= MinSamples {
		return Summary{}, false
	}

	first, last := samples[0], samples[count-1]
	summary := Summary{
		GameName:   gameName,
		DurationMS: last.Timestamp.Sub(first.Timestamp).Milliseconds(),
		MinFPS:     first.FPS,
		MaxFPS:     first.FPS,
		MaxCPUTemp: first.CPUTemp,
		MaxGPUTemp: first.GPUTemp,
		Samples:    count,
		StartedAt:  first.Timestamp,
	}

	var fpsSum, cpuSum, gpuSum float64
	for _, s := range samples {
		fpsSum += float64(s.FPS)
		cpuSum += s.CPUTemp
		gpuSum += s.GPUTemp

		summary.MinFPS = min(summary.MinFPS, s.FPS)
		summary.MaxFPS = max(summary.MaxFPS, s.FPS)
		summary.MaxCPUTemp = max(summary.MaxCPUTemp, s.CPUTemp)
		summary.MaxGPUTemp = max(summary.MaxGPUTemp, s.GPUTemp)
	}

	n := float64(count)
	summary.AvgFPS = fpsSum / n
	summary.AvgCPUTemp = cpuSum / n
	summary.AvgGPUTemp = gpuSum / n

	return summary, true
}
