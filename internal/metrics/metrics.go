// Package metrics collects per-run counters and writes them in the
// node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	Sections        *prometheus.CounterVec
	LLMCallDuration *prometheus.HistogramVec
	FilesDiscovered prometheus.Gauge
	RunDuration     prometheus.Gauge
	LastRunSuccess  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mentorreport",
			Name:      "sections_total",
			Help:      "Generated report sections by outcome.",
		}, []string{"status"}),
		LLMCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mentorreport",
			Name:      "llm_call_duration_seconds",
			Help:      "Duration of model calls by step.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}, []string{"step"}),
		FilesDiscovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mentorreport",
			Name:      "files_discovered",
			Help:      "Business documents found in the last run.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mentorreport",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mentorreport",
			Name:      "last_run_success",
			Help:      "1 when the last run produced an HTML report.",
		}),
	}
	m.registry.MustRegister(m.Sections, m.LLMCallDuration, m.FilesDiscovered, m.RunDuration, m.LastRunSuccess)
	return m
}

func (m *Metrics) SectionDone(ok bool) {
	if ok {
		m.Sections.WithLabelValues("ok").Inc()
		return
	}
	m.Sections.WithLabelValues("failed").Inc()
}

func (m *Metrics) ObserveLLM(step string, d time.Duration) {
	m.LLMCallDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) RunFinished(d time.Duration, success bool) {
	m.RunDuration.Set(d.Seconds())
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes all metrics to path atomically. An empty path is a
// no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
