package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"codeberg.org/mutker/ffdash/internal/dashboard"
)

const namespace = "ffdash"

// StatusSource is satisfied by *dashboard.Dashboard.
type StatusSource interface {
	Status() dashboard.Status
}

type statusCollector struct {
	source  StatusSource
	metrics []statusMetric
}

type statusMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	extract   func(st dashboard.Status) (float64, bool)
}

func newStatusCollector(source StatusSource) prometheus.Collector {
	desc := func(subsystem, name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}

	connected := func(st dashboard.Status) bool { return st.Connected }

	return &statusCollector{
		source: source,
		metrics: []statusMetric{
			{
				desc:      desc("", "connected", "Whether the telemetry channel is connected."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return boolValue(st.Connected), true
				},
			},
			{
				desc:      desc("", "fps", "Latest frames per second."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return float64(st.Latest.FPS), connected(st)
				},
			},
			{
				desc:      desc("cpu", "temperature_celsius", "Latest CPU temperature."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return st.Latest.CPU.Temp, connected(st)
				},
			},
			{
				desc:      desc("cpu", "load_percent", "Latest CPU load."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return st.Latest.CPU.Load, connected(st)
				},
			},
			{
				desc:      desc("gpu", "temperature_celsius", "Latest primary GPU temperature."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return st.Latest.PrimaryGPU().Temperature, connected(st) && len(st.Latest.GPUs) > 0
				},
			},
			{
				desc:      desc("gpu", "load_percent", "Latest primary GPU load."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return st.Latest.PrimaryGPU().Load, connected(st) && len(st.Latest.GPUs) > 0
				},
			},
			{
				desc:      desc("ram", "used_percent", "Latest RAM usage."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return st.Latest.RAM.Percent, connected(st)
				},
			},
			{
				desc:      desc("", "latency_milliseconds", "Last measured round trip to the server."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return float64(st.LatencyMS), st.LatencyMS >= 0
				},
			},
			{
				desc:      desc("alert", "cpu_active", "Whether the CPU temperature alert is active."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return boolValue(st.Alerts.CPU), true
				},
			},
			{
				desc:      desc("alert", "gpu_active", "Whether the GPU temperature alert is active."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return boolValue(st.Alerts.GPU), true
				},
			},
			{
				desc:      desc("alert", "fps_active", "Whether the low fps alert is active."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return boolValue(st.Alerts.FPS), true
				},
			},
			{
				desc:      desc("session", "recording", "Whether a session is being recorded."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return boolValue(st.Recording.Recording), true
				},
			},
			{
				desc:      desc("session", "samples", "Samples in the session being recorded."),
				valueType: prometheus.GaugeValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return float64(st.Recording.Samples), true
				},
			},
			{
				desc:      desc("", "snapshots_total", "Snapshots applied to the dashboard."),
				valueType: prometheus.CounterValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return float64(st.Counters.Snapshots), true
				},
			},
			{
				desc:      desc("", "snapshots_dropped_total", "Malformed snapshots dropped."),
				valueType: prometheus.CounterValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return float64(st.Counters.Dropped), true
				},
			},
			{
				desc:      desc("alert", "notifications_total", "Alert notifications delivered."),
				valueType: prometheus.CounterValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return float64(st.Counters.Notifications), true
				},
			},
			{
				desc:      desc("session", "recorded_total", "Sessions recorded."),
				valueType: prometheus.CounterValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return float64(st.Counters.Sessions), true
				},
			},
			{
				desc:      desc("", "disconnects_total", "Times the telemetry channel dropped."),
				valueType: prometheus.CounterValue,
				extract: func(st dashboard.Status) (float64, bool) {
					return float64(st.Counters.Disconnects), true
				},
			},
		},
	}
}

func (c *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range c.metrics {
		ch <- metric.desc
	}
}

func (c *statusCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Status()
	for _, metric := range c.metrics {
		value, ok := metric.extract(st)
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(metric.desc, metric.valueType, value)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
